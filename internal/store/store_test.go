package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizboss/pos/internal/domain"
	"bizboss/pos/internal/kv"
	"bizboss/pos/internal/kv/memory"
)

func newRepo(t *testing.T) (*Repository, kv.Store) {
	t.Helper()
	backend := memory.New()
	repo, err := Open(context.Background(), backend, nil)
	require.NoError(t, err)
	return repo, backend
}

func seedProduct(t *testing.T, repo *Repository, name string, stock int) domain.Product {
	t.Helper()
	p, err := repo.AddProduct(context.Background(), domain.Product{
		Name:         name,
		CostPrice:    decimal.NewFromInt(600),
		SellingPrice: decimal.NewFromInt(1000),
		Stock:        stock,
		Category:     "General",
	})
	require.NoError(t, err)
	return p
}

func seedSale(t *testing.T, repo *Repository, p domain.Product, qty int) domain.Sale {
	t.Helper()
	q := decimal.NewFromInt(int64(qty))
	s, err := repo.CommitSale(context.Background(), domain.Sale{
		ID:            "sale-" + p.ID,
		ProductID:     p.ID,
		ProductName:   p.Name,
		Quantity:      qty,
		UnitPrice:     p.SellingPrice,
		TotalAmount:   p.SellingPrice.Mul(q),
		Profit:        p.SellingPrice.Sub(p.CostPrice).Mul(q),
		PaymentMethod: domain.PaymentCash,
		CreatedAt:     time.Now().UTC(),
	})
	require.NoError(t, err)
	return s
}

func TestOpenInitializesEmptyCollections(t *testing.T) {
	repo, backend := newRepo(t)
	assert.Empty(t, repo.ListProducts(context.Background()))

	var products []domain.Product
	found, err := backend.Get(context.Background(), productsKey, &products)
	require.NoError(t, err)
	assert.True(t, found, "empty default is persisted on first open")
}

func TestReloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, backend := newRepo(t)

	p := seedProduct(t, repo, "Sugar 1kg", 10)
	sale := seedSale(t, repo, p, 3)
	expense, err := repo.AddExpense(ctx, domain.Expense{
		Category:      domain.CategoryRent,
		Amount:        decimal.NewFromInt(50000),
		PaymentMethod: domain.PaymentCash,
	})
	require.NoError(t, err)
	_, err = repo.MutateSettings(ctx, func(s *domain.BusinessSettings) {
		s.BusinessName = "Nakasero Shop"
	})
	require.NoError(t, err)

	reloaded, err := Open(ctx, backend, nil)
	require.NoError(t, err)

	products := reloaded.ListProducts(ctx)
	require.Len(t, products, 1)
	assert.Equal(t, p.ID, products[0].ID)
	assert.Equal(t, 7, products[0].Stock)
	assert.True(t, products[0].SellingPrice.Equal(decimal.NewFromInt(1000)))
	assert.True(t, products[0].CreatedAt.Equal(p.CreatedAt), "timestamps survive the round trip")

	sales := reloaded.ListSales(ctx)
	require.Len(t, sales, 1)
	assert.Equal(t, sale.ID, sales[0].ID)
	assert.True(t, sales[0].CreatedAt.Equal(sale.CreatedAt))

	expenses := reloaded.ListExpenses(ctx)
	require.Len(t, expenses, 1)
	assert.Equal(t, expense.ID, expenses[0].ID)

	settings, err := reloaded.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Nakasero Shop", settings.BusinessName)
}

func TestCommitSaleInsufficientStock(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	p := seedProduct(t, repo, "Rice", 2)

	_, err := repo.CommitSale(ctx, domain.Sale{
		ID:        "s1",
		ProductID: p.ID,
		Quantity:  3,
		CreatedAt: time.Now().UTC(),
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)
	assert.Empty(t, repo.ListSales(ctx))
}

// failingStore wedges writes to one key to exercise the partial-failure path.
type failingStore struct {
	kv.Store
	failKey string
}

func (f *failingStore) Set(ctx context.Context, key string, value any) error {
	if key == f.failKey {
		return errors.New("disk full")
	}
	return f.Store.Set(ctx, key, value)
}

func TestCommitSaleDoesNotMirrorOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	repo, err := Open(ctx, backend, nil)
	require.NoError(t, err)
	p := seedProduct(t, repo, "Beans", 10)

	repo.kv = &failingStore{Store: backend, failKey: salesKey}

	_, err = repo.CommitSale(ctx, domain.Sale{
		ID:        "s1",
		ProductID: p.ID,
		Quantity:  4,
		CreatedAt: time.Now().UTC(),
	})
	require.Error(t, err)

	// The in-memory mirror only moves once both writes land.
	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Stock)
	assert.Empty(t, repo.ListSales(ctx))
}

func TestRemoveProductRetainsSales(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	p := seedProduct(t, repo, "Salt", 5)
	sale := seedSale(t, repo, p, 1)

	require.NoError(t, repo.RemoveProduct(ctx, p.ID))
	_, err := repo.GetProduct(ctx, p.ID)
	require.ErrorIs(t, err, ErrNotFound)

	sales := repo.ListSales(ctx)
	require.Len(t, sales, 1)
	assert.Equal(t, sale.ID, sales[0].ID)
	assert.Equal(t, "Salt", sales[0].ProductName, "snapshot outlives the product")
}

func TestRemoveSaleRestoresStockAndKeepsReceipt(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	p := seedProduct(t, repo, "Milk", 8)
	sale := seedSale(t, repo, p, 2)

	rc, err := repo.AddReceipt(ctx, domain.Receipt{SaleID: sale.ID, Total: sale.TotalAmount, CreatedAt: sale.CreatedAt})
	require.NoError(t, err)
	require.NoError(t, repo.AttachReceipt(ctx, sale.ID, rc.ID))

	require.NoError(t, repo.RemoveSale(ctx, sale.ID))

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Stock)
	assert.Len(t, repo.ListReceipts(ctx), 1, "receipts are an audit trail")
}

func TestRemoveSaleAfterProductDeleted(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	p := seedProduct(t, repo, "Bread", 4)
	sale := seedSale(t, repo, p, 1)

	require.NoError(t, repo.RemoveProduct(ctx, p.ID))
	require.NoError(t, repo.RemoveSale(ctx, sale.ID), "no stock to restore, still deletes")
	assert.Empty(t, repo.ListSales(ctx))
}

func TestAttachReceiptUnknownSale(t *testing.T) {
	repo, _ := newRepo(t)
	err := repo.AttachReceipt(context.Background(), "missing", "r1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProductMergesFields(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	p := seedProduct(t, repo, "Soap", 5)

	newPrice := decimal.NewFromInt(1200)
	updated, err := repo.UpdateProduct(ctx, p.ID, domain.ProductUpdateRequest{SellingPrice: &newPrice})
	require.NoError(t, err)
	assert.True(t, updated.SellingPrice.Equal(newPrice))
	assert.Equal(t, "Soap", updated.Name, "unset fields keep their value")
	assert.Equal(t, 5, updated.Stock)
	assert.True(t, updated.UpdatedAt.After(p.UpdatedAt) || updated.UpdatedAt.Equal(p.UpdatedAt))
}

func TestSettingsSeedAppliesOnlyOnFirstRun(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()

	repo, err := Open(ctx, backend, nil)
	require.NoError(t, err)
	repo.SeedSettings("lg", "USD")

	settings, err := repo.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "lg", settings.Language)
	assert.Equal(t, "USD", settings.Currency)

	// A different seed on a later open must not override what was persisted.
	reopened, err := Open(ctx, backend, nil)
	require.NoError(t, err)
	reopened.SeedSettings("en", "EUR")
	settings, err = reopened.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "lg", settings.Language)
	assert.Equal(t, "USD", settings.Currency)
}

func TestListProductsReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	seedProduct(t, repo, "Sugar", 5)

	list := repo.ListProducts(ctx)
	list[0].Name = "tampered"

	again := repo.ListProducts(ctx)
	assert.Equal(t, "Sugar", again[0].Name)
}
