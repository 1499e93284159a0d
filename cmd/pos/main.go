package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bizboss/pos/internal/analytics"
	"bizboss/pos/internal/config"
	"bizboss/pos/internal/domain"
	"bizboss/pos/internal/i18n"
	"bizboss/pos/internal/kv"
	filekv "bizboss/pos/internal/kv/file"
	sqlitekv "bizboss/pos/internal/kv/sqlite"
	"bizboss/pos/internal/logging"
	"bizboss/pos/internal/service"
	"bizboss/pos/internal/store"
)

const usageText = `Usage: pos <command> [flags]

Commands:
  add-product     Add a product to the catalogue
  list-products   List the catalogue
  delete-product  Remove a product (past sales are kept)
  record-sale     Record a sale and print its receipt
  delete-sale     Remove a sale and restore its stock
  add-expense     Record a business expense
  list-expenses   List expenses
  delete-expense  Remove an expense
  report          Print the analytics report (daily, weekly or monthly)
  export          Export sales, expenses or products (csv or xlsx)
  receipts        List, search or render receipts
  summary         Print today's dashboard summary
  settings        Show or update business settings
  printer         Scan for, connect, disconnect or test a printer
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usageText)
		return errors.New("a command is required")
	}

	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	var backend kv.Store
	if cfg.DBPath != "" {
		backend, err = sqlitekv.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		logger.Debug("storage: sqlite", zap.String("path", cfg.DBPath))
	} else {
		backend, err = filekv.Open(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open file store: %w", err)
		}
		logger.Debug("storage: files", zap.String("dir", cfg.DataDir))
	}
	defer func() { _ = backend.Close() }()

	repo, err := store.Open(ctx, backend, logger)
	if err != nil {
		return err
	}
	repo.SeedSettings(cfg.Language, cfg.Currency)
	svc := service.New(repo, logger)

	switch cmd := args[0]; cmd {
	case "add-product":
		return cmdAddProduct(ctx, svc, args[1:])
	case "list-products":
		return cmdListProducts(ctx, svc)
	case "delete-product":
		return cmdDeleteByID(ctx, args[1:], "delete-product", svc.DeleteProduct)
	case "record-sale":
		return cmdRecordSale(ctx, svc, args[1:])
	case "delete-sale":
		return cmdDeleteByID(ctx, args[1:], "delete-sale", svc.DeleteSale)
	case "add-expense":
		return cmdAddExpense(ctx, svc, args[1:])
	case "list-expenses":
		return cmdListExpenses(ctx, svc)
	case "delete-expense":
		return cmdDeleteByID(ctx, args[1:], "delete-expense", svc.DeleteExpense)
	case "report":
		return cmdReport(ctx, svc, args[1:])
	case "export":
		return cmdExport(ctx, svc, args[1:])
	case "receipts":
		return cmdReceipts(ctx, svc, args[1:])
	case "summary":
		return cmdSummary(ctx, svc)
	case "settings":
		return cmdSettings(ctx, svc, args[1:])
	case "printer":
		return cmdPrinter(ctx, svc, args[1:])
	case "help", "-h", "--help":
		fmt.Print(usageText)
		return nil
	default:
		fmt.Fprint(os.Stderr, usageText)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func parseAmount(name, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return d, nil
}

func cmdAddProduct(ctx context.Context, svc *service.Service, args []string) error {
	fs := flag.NewFlagSet("add-product", flag.ContinueOnError)
	name := fs.String("name", "", "product name")
	cost := fs.String("cost", "0", "cost price")
	price := fs.String("price", "0", "selling price")
	stock := fs.Int("stock", 0, "initial stock")
	category := fs.String("category", "", "category")
	if err := fs.Parse(args); err != nil {
		return err
	}

	costPrice, err := parseAmount("cost price", *cost)
	if err != nil {
		return err
	}
	sellingPrice, err := parseAmount("selling price", *price)
	if err != nil {
		return err
	}

	product, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name:         *name,
		CostPrice:    costPrice,
		SellingPrice: sellingPrice,
		Stock:        *stock,
		Category:     *category,
	})
	if err != nil {
		return err
	}
	fmt.Printf("added product %s (%s)\n", product.Name, product.ID)
	return nil
}

func cmdListProducts(ctx context.Context, svc *service.Service) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCOST\tPRICE\tSTOCK\tCATEGORY")
	for _, p := range svc.ListProducts(ctx) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			p.ID, p.Name, p.CostPrice, p.SellingPrice, p.Stock, p.Category)
	}
	return w.Flush()
}

func cmdDeleteByID(ctx context.Context, args []string, name string, del func(context.Context, string) error) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	id := fs.String("id", "", "record id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("-id is required")
	}
	if err := del(ctx, *id); err != nil {
		return err
	}
	fmt.Println("deleted", *id)
	return nil
}

func cmdRecordSale(ctx context.Context, svc *service.Service, args []string) error {
	fs := flag.NewFlagSet("record-sale", flag.ContinueOnError)
	productID := fs.String("product", "", "product id")
	qty := fs.Int("qty", 1, "quantity")
	payment := fs.String("payment", "cash", "payment method: cash, mobile-money or bank-transfer")
	phone := fs.String("phone", "", "customer phone")
	provider := fs.String("provider", "", "mobile money provider: MTN or Airtel")
	reference := fs.String("ref", "", "mobile money transaction reference")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := svc.RecordSale(ctx, domain.SaleRequest{
		ProductID:            *productID,
		Quantity:             *qty,
		PaymentMethod:        domain.PaymentMethod(*payment),
		CustomerPhone:        *phone,
		MobileMoneyProvider:  domain.MobileMoneyProvider(*provider),
		MobileMoneyReference: *reference,
	})
	if err != nil {
		return err
	}

	doc, err := svc.ReceiptDocument(ctx, result.Receipt.ID)
	if err != nil {
		return err
	}
	fmt.Print(doc)
	return nil
}

func cmdAddExpense(ctx context.Context, svc *service.Service, args []string) error {
	fs := flag.NewFlagSet("add-expense", flag.ContinueOnError)
	category := fs.String("category", "", "expense category")
	amount := fs.String("amount", "0", "amount")
	payment := fs.String("payment", "cash", "payment method")
	desc := fs.String("desc", "", "description")
	provider := fs.String("provider", "", "mobile money provider")
	reference := fs.String("ref", "", "mobile money transaction reference")
	if err := fs.Parse(args); err != nil {
		return err
	}

	amt, err := parseAmount("amount", *amount)
	if err != nil {
		return err
	}
	expense, err := svc.AddExpense(ctx, domain.ExpenseRequest{
		Category:             domain.ExpenseCategory(*category),
		Amount:               amt,
		PaymentMethod:        domain.PaymentMethod(*payment),
		Description:          *desc,
		MobileMoneyProvider:  domain.MobileMoneyProvider(*provider),
		MobileMoneyReference: *reference,
	})
	if err != nil {
		return err
	}
	fmt.Printf("added expense %s (%s)\n", expense.Category, expense.ID)
	return nil
}

func cmdListExpenses(ctx context.Context, svc *service.Service) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tCATEGORY\tAMOUNT\tPAYMENT\tDESCRIPTION")
	for _, e := range svc.ListExpenses(ctx) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.CreatedAt.Format("2006-01-02"), e.Category, e.Amount, e.PaymentMethod, e.Description)
	}
	return w.Flush()
}

func cmdReport(ctx context.Context, svc *service.Service, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	period := fs.String("period", "daily", "daily, weekly or monthly")
	refresh := fs.Bool("refresh", false, "re-run the insight generation pass")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		report analytics.Report
		err    error
	)
	if *refresh {
		report, err = svc.RefreshInsights(ctx, analytics.Period(*period), time.Now())
	} else {
		report, err = svc.Analytics(ctx, analytics.Period(*period), time.Now())
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func cmdExport(ctx context.Context, svc *service.Service, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	format := fs.String("format", "csv", "csv or xlsx")
	kind := fs.String("kind", "sales", "sales, expenses or products (csv only)")
	out := fs.String("out", "", "output path (default stdout for csv)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch *format {
	case "csv":
		w := os.Stdout
		if *out != "" {
			f, err := os.Create(*out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return svc.ExportCSV(ctx, *kind, w)
	case "xlsx":
		if *out == "" {
			return errors.New("-out is required for xlsx export")
		}
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := svc.ExportWorkbook(ctx, f); err != nil {
			return err
		}
		fmt.Println("wrote", *out)
		return nil
	default:
		return fmt.Errorf("unknown export format %q", *format)
	}
}

func cmdReceipts(ctx context.Context, svc *service.Service, args []string) error {
	fs := flag.NewFlagSet("receipts", flag.ContinueOnError)
	search := fs.String("search", "", "filter by customer phone or product name")
	id := fs.String("id", "", "render a single receipt")
	format := fs.String("fmt", "text", "render format: text, html or share")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *id != "" {
		var (
			doc string
			err error
		)
		switch *format {
		case "text":
			doc, err = svc.ReceiptDocument(ctx, *id)
		case "html":
			doc, err = svc.ReceiptHTML(ctx, *id)
		case "share":
			doc, err = svc.ReceiptShareMessage(ctx, *id)
		default:
			return fmt.Errorf("unknown receipt format %q", *format)
		}
		if err != nil {
			return err
		}
		fmt.Print(doc)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tPHONE\tTOTAL\tPAYMENT")
	for _, rc := range svc.SearchReceipts(ctx, *search) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rc.ID, rc.CreatedAt.Format("2006-01-02 15:04"), rc.CustomerPhone, rc.Total, rc.PaymentMethod)
	}
	return w.Flush()
}

func cmdSummary(ctx context.Context, svc *service.Service) error {
	settings, err := svc.Settings(ctx)
	if err != nil {
		return err
	}
	tag := i18n.Tag(settings.Language)
	summary := svc.Dashboard(ctx, time.Now())

	fmt.Printf("%s - %s\n\n", settings.BusinessName, summary.Date)
	fmt.Printf("%s: %s %s (%d)", i18n.Label(tag, i18n.KeyTodaysSales), settings.Currency, summary.Revenue, summary.SaleCount)
	if !summary.ChangeFromPrior.IsZero() {
		fmt.Printf("  %s%% vs yesterday", summary.ChangeFromPrior)
	}
	fmt.Println()
	fmt.Printf("%s: %s %s\n", i18n.Label(tag, i18n.KeyTodaysProfit), settings.Currency, summary.Profit)
	fmt.Printf("%s: %s %s\n", i18n.Label(tag, i18n.KeyExpenses), settings.Currency, summary.ExpenseTotal)

	if len(summary.LowStockProducts) > 0 {
		fmt.Printf("\n%s:\n", i18n.Label(tag, i18n.KeyLowStock))
		for _, p := range summary.LowStockProducts {
			fmt.Printf("  %s (%d left)\n", p.Name, p.Stock)
		}
	}
	if len(summary.RecentSales) > 0 {
		fmt.Printf("\n%s:\n", i18n.Label(tag, i18n.KeyRecentSales))
		for _, s := range summary.RecentSales {
			fmt.Printf("  %s  %dx %s  %s %s\n",
				s.CreatedAt.Format("15:04"), s.Quantity, s.ProductName, settings.Currency, s.TotalAmount)
		}
	}
	return nil
}

func cmdSettings(ctx context.Context, svc *service.Service, args []string) error {
	fs := flag.NewFlagSet("settings", flag.ContinueOnError)
	name := fs.String("name", "", "business name")
	logo := fs.String("logo", "", "logo URL")
	currency := fs.String("currency", "", "currency: UGX, USD or EUR")
	lang := fs.String("lang", "", "language: en or lg")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := domain.SettingsUpdateRequest{}
	changed := false
	if *name != "" {
		req.BusinessName = name
		changed = true
	}
	if *logo != "" {
		req.LogoURL = logo
		changed = true
	}
	if *currency != "" {
		req.Currency = currency
		changed = true
	}
	if *lang != "" {
		req.Language = lang
		changed = true
	}

	var (
		settings domain.BusinessSettings
		err      error
	)
	if changed {
		settings, err = svc.UpdateSettings(ctx, req)
	} else {
		settings, err = svc.Settings(ctx)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(settings)
}

func cmdPrinter(ctx context.Context, svc *service.Service, args []string) error {
	fs := flag.NewFlagSet("printer", flag.ContinueOnError)
	scan := fs.Bool("scan", false, "scan for printers")
	connect := fs.String("connect", "", "connect to the named printer")
	disconnect := fs.Bool("disconnect", false, "disconnect the current printer")
	test := fs.Bool("test", false, "send a test page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *scan:
		fmt.Println("scanning...")
		printers, err := svc.ScanPrinters(ctx)
		if err != nil {
			return err
		}
		for _, name := range printers {
			fmt.Println(" ", name)
		}
		return nil
	case *connect != "":
		settings, err := svc.ConnectPrinter(ctx, *connect)
		if err != nil {
			return err
		}
		fmt.Println("connected to", settings.PrinterName)
		return nil
	case *disconnect:
		if _, err := svc.DisconnectPrinter(ctx); err != nil {
			return err
		}
		fmt.Println("printer disconnected")
		return nil
	case *test:
		page, err := svc.TestPrint(ctx)
		if err != nil {
			return err
		}
		fmt.Print(page)
		return nil
	default:
		return errors.New("one of -scan, -connect, -disconnect or -test is required")
	}
}

func init() {
	// Flags print their own usage; keep the top-level one quiet.
	flag.Usage = func() { fmt.Fprint(os.Stderr, usageText) }
}
