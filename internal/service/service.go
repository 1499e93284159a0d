// Package service carries the business rules: input validation ahead of
// any mutation, the sale-recording coordinator, receipt derivation, the
// settings singleton and the simulated printer operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bizboss/pos/internal/analytics"
	"bizboss/pos/internal/domain"
	"bizboss/pos/internal/export"
	"bizboss/pos/internal/receipt"
	"bizboss/pos/internal/store"
)

// ErrBusy reports that a simulated long-running operation (printer scan,
// insight refresh) is already in flight. A second trigger is a no-op; the
// caller retries after the first completes.
var ErrBusy = errors.New("operation already in progress")

const lowStockThreshold = 5

var discoverablePrinters = []string{
	"Thermal Printer XP-58",
	"ESC/POS Printer 001",
	"Mobile Printer Pro",
}

type Service struct {
	repo     *store.Repository
	log      *zap.Logger
	validate *validator.Validate

	// Simulated hardware/AI latencies; tests shrink these to zero.
	scanDelay    time.Duration
	insightDelay time.Duration

	scanBusy    atomic.Bool
	insightBusy atomic.Bool
}

func New(repo *store.Repository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:         repo,
		log:          log,
		validate:     validator.New(),
		scanDelay:    3 * time.Second,
		insightDelay: 1500 * time.Millisecond,
	}
}

func (s *Service) checkStruct(v any) error {
	if err := s.validate.Struct(v); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			return fmt.Errorf("%w: field %s failed %q", store.ErrInvalidRecord, fields[0].Field(), fields[0].Tag())
		}
		return fmt.Errorf("%w: %v", store.ErrInvalidRecord, err)
	}
	return nil
}

// checkPayment enforces that the mobile-money provider and reference come
// as a pair with the mobile-money method and are absent otherwise.
func checkPayment(method domain.PaymentMethod, provider domain.MobileMoneyProvider, reference string) error {
	if !method.IsValid() {
		return fmt.Errorf("%w: unknown payment method %q", store.ErrInvalidRecord, method)
	}
	if method == domain.PaymentMobileMoney {
		if !provider.IsValid() {
			return fmt.Errorf("%w: mobile-money payment requires a provider", store.ErrInvalidRecord)
		}
		if strings.TrimSpace(reference) == "" {
			return fmt.Errorf("%w: mobile-money payment requires a reference", store.ErrInvalidRecord)
		}
		return nil
	}
	if provider != "" || strings.TrimSpace(reference) != "" {
		return fmt.Errorf("%w: mobile-money details only apply to mobile-money payments", store.ErrInvalidRecord)
	}
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if err := s.checkStruct(req); err != nil {
		return domain.Product{}, err
	}
	if req.CostPrice.IsNegative() || req.SellingPrice.IsNegative() {
		return domain.Product{}, fmt.Errorf("%w: prices must not be negative", store.ErrInvalidRecord)
	}

	return s.repo.AddProduct(ctx, domain.Product{
		Name:         req.Name,
		CostPrice:    req.CostPrice,
		SellingPrice: req.SellingPrice,
		Stock:        req.Stock,
		Category:     req.Category,
	})
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Product{}, fmt.Errorf("%w: product id required", store.ErrInvalidRecord)
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: product name must not be empty", store.ErrInvalidRecord)
		}
		req.Name = &name
	}
	if req.CostPrice != nil && req.CostPrice.IsNegative() {
		return domain.Product{}, fmt.Errorf("%w: cost price must not be negative", store.ErrInvalidRecord)
	}
	if req.SellingPrice != nil && req.SellingPrice.IsNegative() {
		return domain.Product{}, fmt.Errorf("%w: selling price must not be negative", store.ErrInvalidRecord)
	}
	if req.Stock != nil && *req.Stock < 0 {
		return domain.Product{}, fmt.Errorf("%w: stock must not be negative", store.ErrInvalidRecord)
	}
	return s.repo.UpdateProduct(ctx, id, req)
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	return s.repo.RemoveProduct(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context) []domain.Product {
	return s.repo.ListProducts(ctx)
}

// RecordSale is the one cross-entity operation. The stock check and the
// decrement-plus-append happen inside a single repository commit; only
// the snapshot construction lives here.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleRequest) (domain.SaleResult, error) {
	if err := s.checkStruct(req); err != nil {
		return domain.SaleResult{}, err
	}
	if err := checkPayment(req.PaymentMethod, req.MobileMoneyProvider, req.MobileMoneyReference); err != nil {
		return domain.SaleResult{}, err
	}

	product, err := s.repo.GetProduct(ctx, req.ProductID)
	if err != nil {
		return domain.SaleResult{}, err
	}

	qty := decimal.NewFromInt(int64(req.Quantity))
	sale := domain.Sale{
		ID:                   uuid.NewString(),
		ProductID:            product.ID,
		ProductName:          product.Name,
		Quantity:             req.Quantity,
		UnitPrice:            product.SellingPrice,
		TotalAmount:          product.SellingPrice.Mul(qty),
		Profit:               product.SellingPrice.Sub(product.CostPrice).Mul(qty),
		PaymentMethod:        req.PaymentMethod,
		CustomerPhone:        strings.TrimSpace(req.CustomerPhone),
		MobileMoneyProvider:  req.MobileMoneyProvider,
		MobileMoneyReference: strings.TrimSpace(req.MobileMoneyReference),
		CreatedAt:            time.Now().UTC(),
	}

	sale, err = s.repo.CommitSale(ctx, sale)
	if err != nil {
		return domain.SaleResult{}, err
	}

	rc, err := s.repo.AddReceipt(ctx, domain.Receipt{
		SaleID:        sale.ID,
		CustomerPhone: sale.CustomerPhone,
		Items: []domain.ReceiptItem{{
			ProductName: sale.ProductName,
			Quantity:    sale.Quantity,
			UnitPrice:   sale.UnitPrice,
			LineTotal:   sale.UnitPrice.Mul(qty),
		}},
		Subtotal:      sale.TotalAmount,
		Total:         sale.TotalAmount,
		PaymentMethod: sale.PaymentMethod,
		CreatedAt:     sale.CreatedAt,
	})
	if err != nil {
		return domain.SaleResult{Sale: sale}, fmt.Errorf("sale %s recorded but receipt was not persisted: %w", sale.ID, err)
	}
	if err := s.repo.AttachReceipt(ctx, sale.ID, rc.ID); err != nil {
		return domain.SaleResult{Sale: sale, Receipt: rc}, fmt.Errorf("sale %s recorded but receipt link was not persisted: %w", sale.ID, err)
	}
	sale.ReceiptID = rc.ID

	s.log.Info("sale recorded",
		zap.String("sale_id", sale.ID),
		zap.String("product", sale.ProductName),
		zap.Int("quantity", sale.Quantity),
		zap.String("total", sale.TotalAmount.String()),
	)
	return domain.SaleResult{Sale: sale, Receipt: rc}, nil
}

func (s *Service) DeleteSale(ctx context.Context, id string) error {
	return s.repo.RemoveSale(ctx, id)
}

func (s *Service) ListSales(ctx context.Context) []domain.Sale {
	return s.repo.ListSales(ctx)
}

func (s *Service) AddExpense(ctx context.Context, req domain.ExpenseRequest) (domain.Expense, error) {
	if err := s.checkStruct(req); err != nil {
		return domain.Expense{}, err
	}
	if !req.Category.IsValid() {
		return domain.Expense{}, fmt.Errorf("%w: unknown expense category %q", store.ErrInvalidRecord, req.Category)
	}
	if req.Amount.IsNegative() {
		return domain.Expense{}, fmt.Errorf("%w: expense amount must not be negative", store.ErrInvalidRecord)
	}
	if err := checkPayment(req.PaymentMethod, req.MobileMoneyProvider, req.MobileMoneyReference); err != nil {
		return domain.Expense{}, err
	}

	return s.repo.AddExpense(ctx, domain.Expense{
		Category:             req.Category,
		Amount:               req.Amount,
		PaymentMethod:        req.PaymentMethod,
		Description:          strings.TrimSpace(req.Description),
		MobileMoneyProvider:  req.MobileMoneyProvider,
		MobileMoneyReference: strings.TrimSpace(req.MobileMoneyReference),
	})
}

func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	return s.repo.RemoveExpense(ctx, id)
}

func (s *Service) ListExpenses(ctx context.Context) []domain.Expense {
	return s.repo.ListExpenses(ctx)
}

func (s *Service) ListReceipts(ctx context.Context) []domain.Receipt {
	return s.repo.ListReceipts(ctx)
}

// SearchReceipts matches the query case-insensitively against the customer
// phone and every line item's product name. An empty query returns all.
func (s *Service) SearchReceipts(ctx context.Context, query string) []domain.Receipt {
	query = strings.ToLower(strings.TrimSpace(query))
	receipts := s.repo.ListReceipts(ctx)
	if query == "" {
		return receipts
	}

	matched := make([]domain.Receipt, 0, len(receipts))
	for _, rc := range receipts {
		if strings.Contains(strings.ToLower(rc.CustomerPhone), query) {
			matched = append(matched, rc)
			continue
		}
		for _, item := range rc.Items {
			if strings.Contains(strings.ToLower(item.ProductName), query) {
				matched = append(matched, rc)
				break
			}
		}
	}
	return matched
}

func (s *Service) getReceipt(ctx context.Context, id string) (domain.Receipt, error) {
	for _, rc := range s.repo.ListReceipts(ctx) {
		if rc.ID == id {
			return rc, nil
		}
	}
	return domain.Receipt{}, fmt.Errorf("receipt %s: %w", id, store.ErrNotFound)
}

// ReceiptDocument renders the fixed-width printable document for a receipt.
func (s *Service) ReceiptDocument(ctx context.Context, id string) (string, error) {
	rc, err := s.getReceipt(ctx, id)
	if err != nil {
		return "", err
	}
	settings, err := s.repo.Settings(ctx)
	if err != nil {
		return "", err
	}
	return receipt.Document(settings, rc), nil
}

// ReceiptHTML renders the standalone downloadable document.
func (s *Service) ReceiptHTML(ctx context.Context, id string) (string, error) {
	rc, err := s.getReceipt(ctx, id)
	if err != nil {
		return "", err
	}
	settings, err := s.repo.Settings(ctx)
	if err != nil {
		return "", err
	}
	return receipt.HTML(settings, rc), nil
}

// ReceiptShareMessage renders the plain-text hand-off message.
func (s *Service) ReceiptShareMessage(ctx context.Context, id string) (string, error) {
	rc, err := s.getReceipt(ctx, id)
	if err != nil {
		return "", err
	}
	settings, err := s.repo.Settings(ctx)
	if err != nil {
		return "", err
	}
	return receipt.ShareMessage(settings, rc), nil
}

func (s *Service) Settings(ctx context.Context) (domain.BusinessSettings, error) {
	return s.repo.Settings(ctx)
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.SettingsUpdateRequest) (domain.BusinessSettings, error) {
	if err := s.checkStruct(req); err != nil {
		return domain.BusinessSettings{}, err
	}
	if req.BusinessName != nil && strings.TrimSpace(*req.BusinessName) == "" {
		return domain.BusinessSettings{}, fmt.Errorf("%w: business name must not be empty", store.ErrInvalidRecord)
	}
	return s.repo.MutateSettings(ctx, func(settings *domain.BusinessSettings) {
		if req.BusinessName != nil {
			settings.BusinessName = strings.TrimSpace(*req.BusinessName)
		}
		if req.LogoURL != nil {
			settings.LogoURL = *req.LogoURL
		}
		if req.Currency != nil {
			settings.Currency = *req.Currency
		}
		if req.Language != nil {
			settings.Language = *req.Language
		}
	})
}

// ScanPrinters simulates a bluetooth discovery pass. Only one scan may be
// in flight; a concurrent trigger returns ErrBusy without side effects.
func (s *Service) ScanPrinters(ctx context.Context) ([]string, error) {
	if !s.scanBusy.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("printer scan: %w", ErrBusy)
	}
	defer s.scanBusy.Store(false)

	select {
	case <-time.After(s.scanDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	printers := make([]string, len(discoverablePrinters))
	copy(printers, discoverablePrinters)
	return printers, nil
}

func (s *Service) ConnectPrinter(ctx context.Context, name string) (domain.BusinessSettings, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.BusinessSettings{}, fmt.Errorf("%w: printer name required", store.ErrInvalidRecord)
	}
	return s.repo.MutateSettings(ctx, func(settings *domain.BusinessSettings) {
		settings.PrinterConnected = true
		settings.PrinterName = name
	})
}

func (s *Service) DisconnectPrinter(ctx context.Context) (domain.BusinessSettings, error) {
	return s.repo.MutateSettings(ctx, func(settings *domain.BusinessSettings) {
		settings.PrinterConnected = false
		settings.PrinterName = ""
	})
}

// TestPrint renders the test page that would be sent to the connected
// printer, or fails when none is connected.
func (s *Service) TestPrint(ctx context.Context) (string, error) {
	settings, err := s.repo.Settings(ctx)
	if err != nil {
		return "", err
	}
	if !settings.PrinterConnected {
		return "", fmt.Errorf("%w: no printer connected", store.ErrInvalidRecord)
	}
	return receipt.TestPage(settings), nil
}

// Analytics computes the time-bucketed report for the given period,
// anchored at now.
func (s *Service) Analytics(ctx context.Context, period analytics.Period, now time.Time) (analytics.Report, error) {
	if !period.IsValid() {
		return analytics.Report{}, fmt.Errorf("%w: unknown period %q", store.ErrInvalidRecord, period)
	}
	return analytics.BuildReport(
		s.repo.ListProducts(ctx),
		s.repo.ListSales(ctx),
		s.repo.ListExpenses(ctx),
		period,
		now,
	), nil
}

// RefreshInsights simulates the slow "AI" pass over current data and
// returns a freshly computed report. Guarded the same way as ScanPrinters.
func (s *Service) RefreshInsights(ctx context.Context, period analytics.Period, now time.Time) (analytics.Report, error) {
	if !s.insightBusy.CompareAndSwap(false, true) {
		return analytics.Report{}, fmt.Errorf("insight refresh: %w", ErrBusy)
	}
	defer s.insightBusy.Store(false)

	select {
	case <-time.After(s.insightDelay):
	case <-ctx.Done():
		return analytics.Report{}, ctx.Err()
	}
	return s.Analytics(ctx, period, now)
}

// Dashboard summarises today's trading against yesterday's.
func (s *Service) Dashboard(ctx context.Context, now time.Time) domain.DashboardSummary {
	sales := s.repo.ListSales(ctx)
	expenses := s.repo.ListExpenses(ctx)
	products := s.repo.ListProducts(ctx)

	today := now
	yesterday := now.AddDate(0, 0, -1)

	revenue, profit := decimal.Zero, decimal.Zero
	priorRevenue := decimal.Zero
	saleCount := 0
	for _, sale := range sales {
		switch {
		case sameDay(sale.CreatedAt, today):
			revenue = revenue.Add(sale.TotalAmount)
			profit = profit.Add(sale.Profit)
			saleCount++
		case sameDay(sale.CreatedAt, yesterday):
			priorRevenue = priorRevenue.Add(sale.TotalAmount)
		}
	}

	expenseTotal := decimal.Zero
	for _, e := range expenses {
		if sameDay(e.CreatedAt, today) {
			expenseTotal = expenseTotal.Add(e.Amount)
		}
	}

	change := decimal.Zero
	if priorRevenue.IsPositive() {
		change = revenue.Sub(priorRevenue).Div(priorRevenue).Mul(decimal.NewFromInt(100)).Round(0)
	}

	low := make([]domain.Product, 0)
	for _, p := range products {
		if p.Stock <= lowStockThreshold {
			low = append(low, p)
		}
	}

	recent := make([]domain.Sale, len(sales))
	copy(recent, sales)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].CreatedAt.After(recent[j].CreatedAt) })
	if len(recent) > 5 {
		recent = recent[:5]
	}

	return domain.DashboardSummary{
		Date:             today.Format("2006-01-02"),
		Revenue:          revenue,
		Profit:           profit,
		SaleCount:        saleCount,
		ExpenseTotal:     expenseTotal,
		ChangeFromPrior:  change,
		LowStockProducts: low,
		RecentSales:      recent,
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// ExportCSV writes one of the three collections in the fixed CSV layout.
func (s *Service) ExportCSV(ctx context.Context, kind string, w io.Writer) error {
	switch kind {
	case "sales":
		return export.SalesCSV(w, s.repo.ListSales(ctx))
	case "expenses":
		return export.ExpensesCSV(w, s.repo.ListExpenses(ctx))
	case "products":
		return export.ProductsCSV(w, s.repo.ListProducts(ctx))
	default:
		return fmt.Errorf("%w: unknown export kind %q", store.ErrInvalidRecord, kind)
	}
}

// ExportWorkbook writes the sales, expenses and products tables as one
// XLSX workbook.
func (s *Service) ExportWorkbook(ctx context.Context, w io.Writer) error {
	return export.Workbook(w, s.repo.ListSales(ctx), s.repo.ListExpenses(ctx), s.repo.ListProducts(ctx))
}
