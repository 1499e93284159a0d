package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizboss/pos/internal/analytics"
	"bizboss/pos/internal/domain"
	"bizboss/pos/internal/kv/memory"
	"bizboss/pos/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	repo, err := store.Open(context.Background(), memory.New(), nil)
	require.NoError(t, err)
	svc := New(repo, nil)
	svc.scanDelay = 0
	svc.insightDelay = 0
	return svc
}

func addProduct(t *testing.T, svc *Service, name string, cost, price int64, stock int) domain.Product {
	t.Helper()
	p, err := svc.CreateProduct(context.Background(), domain.ProductCreateRequest{
		Name:         name,
		CostPrice:    decimal.NewFromInt(cost),
		SellingPrice: decimal.NewFromInt(price),
		Stock:        stock,
		Category:     "General",
	})
	require.NoError(t, err)
	return p
}

func TestRecordSaleDecrementsStockAndComputesTotals(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	p := addProduct(t, svc, "Sugar 1kg", 600, 1000, 10)

	result, err := svc.RecordSale(ctx, domain.SaleRequest{
		ProductID:     p.ID,
		Quantity:      3,
		PaymentMethod: domain.PaymentCash,
	})
	require.NoError(t, err)

	assert.Equal(t, "Sugar 1kg", result.Sale.ProductName)
	assert.True(t, result.Sale.TotalAmount.Equal(decimal.NewFromInt(3000)), "total %s", result.Sale.TotalAmount)
	assert.True(t, result.Sale.Profit.Equal(decimal.NewFromInt(1200)), "profit %s", result.Sale.Profit)

	got, err := svc.repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)
}

func TestRecordSaleDerivesReceipt(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	p := addProduct(t, svc, "Soap", 500, 800, 5)

	result, err := svc.RecordSale(ctx, domain.SaleRequest{
		ProductID:     p.ID,
		Quantity:      2,
		PaymentMethod: domain.PaymentCash,
		CustomerPhone: "0700123456",
	})
	require.NoError(t, err)

	rc := result.Receipt
	require.Len(t, rc.Items, 1)
	assert.Equal(t, "Soap", rc.Items[0].ProductName)
	assert.Equal(t, 2, rc.Items[0].Quantity)
	assert.True(t, rc.Subtotal.Equal(rc.Total))
	assert.True(t, rc.Total.Equal(result.Sale.TotalAmount))
	assert.Equal(t, result.Sale.CreatedAt, rc.CreatedAt)
	assert.Equal(t, rc.ID, result.Sale.ReceiptID)

	sales := svc.ListSales(ctx)
	require.Len(t, sales, 1)
	assert.Equal(t, rc.ID, sales[0].ReceiptID)
}

func TestRecordSaleInsufficientStockLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	p := addProduct(t, svc, "Rice 5kg", 2000, 3000, 10)

	_, err := svc.RecordSale(ctx, domain.SaleRequest{
		ProductID:     p.ID,
		Quantity:      3,
		PaymentMethod: domain.PaymentCash,
	})
	require.NoError(t, err)

	_, err = svc.RecordSale(ctx, domain.SaleRequest{
		ProductID:     p.ID,
		Quantity:      8,
		PaymentMethod: domain.PaymentCash,
	})
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	got, err := svc.repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock, "failed sale must not touch stock")
	assert.Len(t, svc.ListSales(ctx), 1, "failed sale must not be appended")
	assert.Len(t, svc.ListReceipts(ctx), 1)
}

func TestRecordSaleValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	p := addProduct(t, svc, "Bread", 2000, 3500, 4)

	cases := []struct {
		name string
		req  domain.SaleRequest
	}{
		{"zero quantity", domain.SaleRequest{ProductID: p.ID, Quantity: 0, PaymentMethod: domain.PaymentCash}},
		{"negative quantity", domain.SaleRequest{ProductID: p.ID, Quantity: -2, PaymentMethod: domain.PaymentCash}},
		{"unknown payment", domain.SaleRequest{ProductID: p.ID, Quantity: 1, PaymentMethod: "cheque"}},
		{"mobile money without provider", domain.SaleRequest{ProductID: p.ID, Quantity: 1, PaymentMethod: domain.PaymentMobileMoney, MobileMoneyReference: "TX1"}},
		{"mobile money without reference", domain.SaleRequest{ProductID: p.ID, Quantity: 1, PaymentMethod: domain.PaymentMobileMoney, MobileMoneyProvider: domain.ProviderMTN}},
		{"cash with provider", domain.SaleRequest{ProductID: p.ID, Quantity: 1, PaymentMethod: domain.PaymentCash, MobileMoneyProvider: domain.ProviderMTN}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RecordSale(ctx, tc.req)
			require.ErrorIs(t, err, store.ErrInvalidRecord)
		})
	}
	assert.Empty(t, svc.ListSales(ctx))
}

func TestRecordSaleUnknownProduct(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.RecordSale(context.Background(), domain.SaleRequest{
		ProductID:     "nope",
		Quantity:      1,
		PaymentMethod: domain.PaymentCash,
	})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteSaleRestoresStock(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	p := addProduct(t, svc, "Milk", 800, 1200, 6)

	result, err := svc.RecordSale(ctx, domain.SaleRequest{
		ProductID:     p.ID,
		Quantity:      4,
		PaymentMethod: domain.PaymentCash,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSale(ctx, result.Sale.ID))

	got, err := svc.repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Stock)
	assert.Empty(t, svc.ListSales(ctx))
}

func TestDeleteProductKeepsSalesHistory(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	p := addProduct(t, svc, "Salt", 300, 500, 9)

	_, err := svc.RecordSale(ctx, domain.SaleRequest{
		ProductID:     p.ID,
		Quantity:      2,
		PaymentMethod: domain.PaymentCash,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProduct(ctx, p.ID))

	sales := svc.ListSales(ctx)
	require.Len(t, sales, 1)
	assert.Equal(t, p.ID, sales[0].ProductID)
	assert.Equal(t, "Salt", sales[0].ProductName)
}

func TestAddExpenseValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.AddExpense(ctx, domain.ExpenseRequest{
		Category:      "gambling",
		Amount:        decimal.NewFromInt(100),
		PaymentMethod: domain.PaymentCash,
	})
	require.ErrorIs(t, err, store.ErrInvalidRecord)

	_, err = svc.AddExpense(ctx, domain.ExpenseRequest{
		Category:      domain.CategoryRent,
		Amount:        decimal.NewFromInt(-50),
		PaymentMethod: domain.PaymentCash,
	})
	require.ErrorIs(t, err, store.ErrInvalidRecord)

	e, err := svc.AddExpense(ctx, domain.ExpenseRequest{
		Category:             domain.CategoryTransportation,
		Amount:               decimal.NewFromInt(15000),
		PaymentMethod:        domain.PaymentMobileMoney,
		MobileMoneyProvider:  domain.ProviderAirtel,
		MobileMoneyReference: "TX-889",
		Description:          "Boda delivery",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestSearchReceipts(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	sugar := addProduct(t, svc, "Sugar 1kg", 600, 1000, 10)
	soap := addProduct(t, svc, "Soap Bar", 500, 800, 10)

	_, err := svc.RecordSale(ctx, domain.SaleRequest{
		ProductID: sugar.ID, Quantity: 1, PaymentMethod: domain.PaymentCash, CustomerPhone: "0700111222",
	})
	require.NoError(t, err)
	_, err = svc.RecordSale(ctx, domain.SaleRequest{
		ProductID: soap.ID, Quantity: 1, PaymentMethod: domain.PaymentCash, CustomerPhone: "0788999000",
	})
	require.NoError(t, err)

	assert.Len(t, svc.SearchReceipts(ctx, ""), 2)
	assert.Len(t, svc.SearchReceipts(ctx, "sugar"), 1, "product match is case-insensitive")
	assert.Len(t, svc.SearchReceipts(ctx, "0788"), 1, "phone substring matches")
	assert.Empty(t, svc.SearchReceipts(ctx, "matooke"))
}

func TestScanPrintersGuardAndResult(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	svc.scanDelay = 50 * time.Millisecond

	type scanResult struct {
		printers []string
		err      error
	}
	started := make(chan struct{})
	done := make(chan scanResult, 1)
	go func() {
		close(started)
		printers, err := svc.ScanPrinters(ctx)
		done <- scanResult{printers, err}
	}()
	<-started
	time.Sleep(10 * time.Millisecond)

	_, err := svc.ScanPrinters(ctx)
	require.ErrorIs(t, err, ErrBusy, "second scan while one is in flight")

	first := <-done
	require.NoError(t, first.err)
	printers := first.printers
	assert.Equal(t, []string{"Thermal Printer XP-58", "ESC/POS Printer 001", "Mobile Printer Pro"}, printers)

	// The guard resets once the first scan finishes.
	printers, err = svc.ScanPrinters(ctx)
	require.NoError(t, err)
	assert.Len(t, printers, 3)
}

func TestPrinterConnectionLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.TestPrint(ctx)
	require.ErrorIs(t, err, store.ErrInvalidRecord, "test print needs a connection")

	settings, err := svc.ConnectPrinter(ctx, "Thermal Printer XP-58")
	require.NoError(t, err)
	assert.True(t, settings.PrinterConnected)
	assert.Equal(t, "Thermal Printer XP-58", settings.PrinterName)

	page, err := svc.TestPrint(ctx)
	require.NoError(t, err)
	assert.Contains(t, page, "PRINTER TEST")
	assert.Contains(t, page, "Thermal Printer XP-58")

	settings, err = svc.DisconnectPrinter(ctx)
	require.NoError(t, err)
	assert.False(t, settings.PrinterConnected)
	assert.Empty(t, settings.PrinterName)
}

func TestRefreshInsightsGuard(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	svc.insightDelay = 50 * time.Millisecond

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, err := svc.RefreshInsights(ctx, analytics.PeriodDaily, time.Now())
		done <- err
	}()
	<-started
	time.Sleep(10 * time.Millisecond)

	_, err := svc.RefreshInsights(ctx, analytics.PeriodDaily, time.Now())
	require.ErrorIs(t, err, ErrBusy)
	require.NoError(t, <-done)
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	p := addProduct(t, svc, "Sugar 1kg", 600, 1000, 3)

	_, err := svc.RecordSale(ctx, domain.SaleRequest{
		ProductID: p.ID, Quantity: 2, PaymentMethod: domain.PaymentCash,
	})
	require.NoError(t, err)
	_, err = svc.AddExpense(ctx, domain.ExpenseRequest{
		Category: domain.CategoryUtilities, Amount: decimal.NewFromInt(800), PaymentMethod: domain.PaymentCash,
	})
	require.NoError(t, err)

	summary := svc.Dashboard(ctx, time.Now())
	assert.True(t, summary.Revenue.Equal(decimal.NewFromInt(2000)), "revenue %s", summary.Revenue)
	assert.True(t, summary.Profit.Equal(decimal.NewFromInt(800)), "profit %s", summary.Profit)
	assert.Equal(t, 1, summary.SaleCount)
	assert.True(t, summary.ExpenseTotal.Equal(decimal.NewFromInt(800)))
	require.Len(t, summary.LowStockProducts, 1, "stock dropped to 1, under the threshold")
	assert.Equal(t, p.ID, summary.LowStockProducts[0].ID)
	require.Len(t, summary.RecentSales, 1)
}

func TestUpdateSettings(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	name := "Kampala General Store"
	lang := "lg"
	settings, err := svc.UpdateSettings(ctx, domain.SettingsUpdateRequest{
		BusinessName: &name,
		Language:     &lang,
	})
	require.NoError(t, err)
	assert.Equal(t, "Kampala General Store", settings.BusinessName)
	assert.Equal(t, "lg", settings.Language)
	assert.Equal(t, "UGX", settings.Currency, "unset fields keep their value")

	bad := "XAU"
	_, err = svc.UpdateSettings(ctx, domain.SettingsUpdateRequest{Currency: &bad})
	require.ErrorIs(t, err, store.ErrInvalidRecord)

	empty := "   "
	_, err = svc.UpdateSettings(ctx, domain.SettingsUpdateRequest{BusinessName: &empty})
	require.ErrorIs(t, err, store.ErrInvalidRecord)
}

func TestExportCSVSalesLayout(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	p := addProduct(t, svc, "Sugar 1kg", 600, 1000, 10)
	_, err := svc.RecordSale(ctx, domain.SaleRequest{
		ProductID: p.ID, Quantity: 2, PaymentMethod: domain.PaymentCash,
	})
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, svc.ExportCSV(ctx, "sales", &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Date,Product,Quantity,Unit Price,Total,Payment Method", lines[0])
	assert.Contains(t, lines[1], "Sugar 1kg,2,1000,2000,cash")

	require.ErrorIs(t, svc.ExportCSV(ctx, "nope", &buf), store.ErrInvalidRecord)
}
