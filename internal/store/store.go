// Package store is the typed repository over the kv persistence layer.
// Every collection lives in an in-memory mirror loaded once at startup;
// each mutation rewrites the affected collection through the kv store
// before the mirror is updated, so memory never claims a write that was
// not durably committed.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bizboss/pos/internal/domain"
	"bizboss/pos/internal/kv"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidRecord     = errors.New("invalid record")
)

const (
	productsKey = "bizboss-products"
	salesKey    = "bizboss-sales"
	expensesKey = "bizboss-expenses"
	receiptsKey = "bizboss-receipts"
	settingsKey = "bizboss-settings"
)

type Repository struct {
	kv  kv.Store
	log *zap.Logger

	// Guarded state below. A single logical actor drives this process, but
	// the mutex keeps the compound sale commit indivisible regardless.
	mu       sync.Mutex
	products []domain.Product
	sales    []domain.Sale
	expenses []domain.Expense
	receipts []domain.Receipt
	settings *domain.BusinessSettings

	// First-run defaults for the settings singleton; only consulted when
	// no settings record has ever been persisted.
	defaultLanguage string
	defaultCurrency string
}

// Open loads every collection from the kv store, writing back an empty
// default for any key that has never been persisted.
func Open(ctx context.Context, store kv.Store, log *zap.Logger) (*Repository, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Repository{kv: store, log: log, defaultLanguage: "en", defaultCurrency: "UGX"}

	if err := loadCollection(ctx, store, productsKey, &r.products); err != nil {
		return nil, err
	}
	if err := loadCollection(ctx, store, salesKey, &r.sales); err != nil {
		return nil, err
	}
	if err := loadCollection(ctx, store, expensesKey, &r.expenses); err != nil {
		return nil, err
	}
	if err := loadCollection(ctx, store, receiptsKey, &r.receipts); err != nil {
		return nil, err
	}

	var settings domain.BusinessSettings
	found, err := store.Get(ctx, settingsKey, &settings)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", settingsKey, err)
	}
	if found {
		r.settings = &settings
	}

	return r, nil
}

func loadCollection[T any](ctx context.Context, store kv.Store, key string, dest *[]T) error {
	found, err := store.Get(ctx, key, dest)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !found {
		*dest = []T{}
		if err := store.Set(ctx, key, *dest); err != nil {
			return fmt.Errorf("initialize %s: %w", key, err)
		}
	}
	return nil
}

// AddProduct stamps the id and timestamps, appends and persists.
func (r *Repository) AddProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now

	next := append(slices.Clone(r.products), p)
	if err := r.kv.Set(ctx, productsKey, next); err != nil {
		return domain.Product{}, r.divergence(productsKey, err)
	}
	r.products = next
	return p, nil
}

func (r *Repository) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := slices.IndexFunc(r.products, func(p domain.Product) bool { return p.ID == id })
	if idx < 0 {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}

	next := slices.Clone(r.products)
	p := next[idx]
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.CostPrice != nil {
		p.CostPrice = *req.CostPrice
	}
	if req.SellingPrice != nil {
		p.SellingPrice = *req.SellingPrice
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	p.UpdatedAt = time.Now().UTC()
	next[idx] = p

	if err := r.kv.Set(ctx, productsKey, next); err != nil {
		return domain.Product{}, r.divergence(productsKey, err)
	}
	r.products = next
	return p, nil
}

// RemoveProduct deletes the product only. Historical sales referencing it
// are retained: their snapshot fields keep them self-contained, and
// deleting them would rewrite past reporting.
func (r *Repository) RemoveProduct(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := slices.DeleteFunc(slices.Clone(r.products), func(p domain.Product) bool { return p.ID == id })
	if len(next) == len(r.products) {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err := r.kv.Set(ctx, productsKey, next); err != nil {
		return r.divergence(productsKey, err)
	}
	r.products = next
	return nil
}

func (r *Repository) ListProducts(_ context.Context) []domain.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.products)
}

func (r *Repository) GetProduct(_ context.Context, id string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
}

// CommitSale is the one compound mutation: it re-resolves the product,
// re-checks stock, decrements it and appends the sale. Both new
// collections are computed before either write, and the mirror is
// replaced only after both writes succeed, so no observer ever sees the
// decrement without the sale or the sale without the decrement.
func (r *Repository) CommitSale(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := slices.IndexFunc(r.products, func(p domain.Product) bool { return p.ID == sale.ProductID })
	if idx < 0 {
		return domain.Sale{}, fmt.Errorf("product %s: %w", sale.ProductID, ErrNotFound)
	}
	product := r.products[idx]
	if sale.Quantity > product.Stock {
		return domain.Sale{}, fmt.Errorf("product %s has %d in stock, want %d: %w",
			product.Name, product.Stock, sale.Quantity, ErrInsufficientStock)
	}

	nextProducts := slices.Clone(r.products)
	product.Stock -= sale.Quantity
	product.UpdatedAt = time.Now().UTC()
	nextProducts[idx] = product

	nextSales := append(slices.Clone(r.sales), sale)

	if err := r.kv.Set(ctx, productsKey, nextProducts); err != nil {
		return domain.Sale{}, r.divergence(productsKey, err)
	}
	if err := r.kv.Set(ctx, salesKey, nextSales); err != nil {
		return domain.Sale{}, r.divergence(salesKey, err)
	}
	r.products = nextProducts
	r.sales = nextSales
	return sale, nil
}

// RemoveSale deletes the sale and returns its quantity to the product's
// stock when the product still exists. The derived receipt is retained as
// an orphaned historical record.
func (r *Repository) RemoveSale(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := slices.IndexFunc(r.sales, func(s domain.Sale) bool { return s.ID == id })
	if idx < 0 {
		return fmt.Errorf("sale %s: %w", id, ErrNotFound)
	}
	sale := r.sales[idx]
	nextSales := slices.Delete(slices.Clone(r.sales), idx, idx+1)

	nextProducts := r.products
	pIdx := slices.IndexFunc(r.products, func(p domain.Product) bool { return p.ID == sale.ProductID })
	if pIdx >= 0 {
		nextProducts = slices.Clone(r.products)
		nextProducts[pIdx].Stock += sale.Quantity
		nextProducts[pIdx].UpdatedAt = time.Now().UTC()
	}

	if pIdx >= 0 {
		if err := r.kv.Set(ctx, productsKey, nextProducts); err != nil {
			return r.divergence(productsKey, err)
		}
	}
	if err := r.kv.Set(ctx, salesKey, nextSales); err != nil {
		return r.divergence(salesKey, err)
	}
	r.products = nextProducts
	r.sales = nextSales
	return nil
}

// AttachReceipt records the receipt back-reference on a sale. This is the
// only mutation a sale permits after creation.
func (r *Repository) AttachReceipt(ctx context.Context, saleID, receiptID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := slices.IndexFunc(r.sales, func(s domain.Sale) bool { return s.ID == saleID })
	if idx < 0 {
		return fmt.Errorf("sale %s: %w", saleID, ErrNotFound)
	}
	next := slices.Clone(r.sales)
	next[idx].ReceiptID = receiptID
	if err := r.kv.Set(ctx, salesKey, next); err != nil {
		return r.divergence(salesKey, err)
	}
	r.sales = next
	return nil
}

func (r *Repository) ListSales(_ context.Context) []domain.Sale {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.sales)
}

func (r *Repository) AddExpense(ctx context.Context, e domain.Expense) (domain.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()

	next := append(slices.Clone(r.expenses), e)
	if err := r.kv.Set(ctx, expensesKey, next); err != nil {
		return domain.Expense{}, r.divergence(expensesKey, err)
	}
	r.expenses = next
	return e, nil
}

func (r *Repository) RemoveExpense(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := slices.DeleteFunc(slices.Clone(r.expenses), func(e domain.Expense) bool { return e.ID == id })
	if len(next) == len(r.expenses) {
		return fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	if err := r.kv.Set(ctx, expensesKey, next); err != nil {
		return r.divergence(expensesKey, err)
	}
	r.expenses = next
	return nil
}

func (r *Repository) ListExpenses(_ context.Context) []domain.Expense {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.expenses)
}

// AddReceipt assigns the id but keeps the caller's CreatedAt: a receipt
// carries its sale's timestamp.
func (r *Repository) AddReceipt(ctx context.Context, rc domain.Receipt) (domain.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rc.ID = uuid.NewString()
	next := append(slices.Clone(r.receipts), rc)
	if err := r.kv.Set(ctx, receiptsKey, next); err != nil {
		return domain.Receipt{}, r.divergence(receiptsKey, err)
	}
	r.receipts = next
	return rc, nil
}

func (r *Repository) ListReceipts(_ context.Context) []domain.Receipt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.receipts)
}

// Settings returns the singleton, creating and persisting the defaults on
// first access.
func (r *Repository) Settings(ctx context.Context) (domain.BusinessSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settingsLocked(ctx)
}

// SeedSettings sets the language and currency used when the settings
// singleton is created for the first time. Persisted settings win; a seed
// never overwrites them.
func (r *Repository) SeedSettings(language, currency string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if language != "" {
		r.defaultLanguage = language
	}
	if currency != "" {
		r.defaultCurrency = currency
	}
}

func (r *Repository) settingsLocked(ctx context.Context) (domain.BusinessSettings, error) {
	if r.settings == nil {
		defaults := domain.BusinessSettings{
			ID:           "1",
			BusinessName: "My Business",
			Currency:     r.defaultCurrency,
			Language:     r.defaultLanguage,
			UpdatedAt:    time.Now().UTC(),
		}
		if err := r.kv.Set(ctx, settingsKey, defaults); err != nil {
			return domain.BusinessSettings{}, r.divergence(settingsKey, err)
		}
		r.settings = &defaults
	}
	return *r.settings, nil
}

// MutateSettings applies fn to the current settings and persists the result.
func (r *Repository) MutateSettings(ctx context.Context, fn func(*domain.BusinessSettings)) (domain.BusinessSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.settingsLocked(ctx)
	if err != nil {
		return domain.BusinessSettings{}, err
	}
	fn(&current)
	current.UpdatedAt = time.Now().UTC()
	if err := r.kv.Set(ctx, settingsKey, current); err != nil {
		return domain.BusinessSettings{}, r.divergence(settingsKey, err)
	}
	r.settings = &current
	return current, nil
}

// divergence surfaces a failed write-through: until the next successful
// write the durable copy of this key may not match memory.
func (r *Repository) divergence(key string, err error) error {
	r.log.Warn("durable write failed; in-memory state may diverge until retried",
		zap.String("key", key), zap.Error(err))
	return fmt.Errorf("persist %s: %w", key, err)
}
