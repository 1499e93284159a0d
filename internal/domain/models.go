package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is the closed set of ways a sale or expense can be paid.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentMobileMoney  PaymentMethod = "mobile-money"
	PaymentBankTransfer PaymentMethod = "bank-transfer"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentMobileMoney, PaymentBankTransfer:
		return true
	}
	return false
}

// MobileMoneyProvider identifies the network a mobile-money payment ran on.
type MobileMoneyProvider string

const (
	ProviderMTN    MobileMoneyProvider = "MTN"
	ProviderAirtel MobileMoneyProvider = "Airtel"
)

func (p MobileMoneyProvider) IsValid() bool {
	return p == ProviderMTN || p == ProviderAirtel
}

// ExpenseCategory is the fixed category list for bookkeeping expenses.
// CategoryOther admits a free-text description alongside it.
type ExpenseCategory string

const (
	CategoryRent           ExpenseCategory = "rent"
	CategoryUtilities      ExpenseCategory = "utilities"
	CategoryInventory      ExpenseCategory = "inventory"
	CategoryTransportation ExpenseCategory = "transportation"
	CategoryMarketing      ExpenseCategory = "marketing"
	CategoryEquipment      ExpenseCategory = "equipment"
	CategoryStaffSalaries  ExpenseCategory = "staff-salaries"
	CategoryOther          ExpenseCategory = "other"
)

func ExpenseCategories() []ExpenseCategory {
	return []ExpenseCategory{
		CategoryRent, CategoryUtilities, CategoryInventory, CategoryTransportation,
		CategoryMarketing, CategoryEquipment, CategoryStaffSalaries, CategoryOther,
	}
}

func (c ExpenseCategory) IsValid() bool {
	for _, known := range ExpenseCategories() {
		if c == known {
			return true
		}
	}
	return false
}

type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	CostPrice    decimal.Decimal `json:"costPrice"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
	Stock        int             `json:"stock"`
	Category     string          `json:"category,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Sale is immutable once recorded, except for the later-attached ReceiptID.
// ProductName and UnitPrice are snapshots taken at sale time so the record
// stays accurate if the product is edited or deleted afterwards.
type Sale struct {
	ID                   string              `json:"id"`
	ProductID            string              `json:"productId"`
	ProductName          string              `json:"productName"`
	Quantity             int                 `json:"quantity"`
	UnitPrice            decimal.Decimal     `json:"unitPrice"`
	TotalAmount          decimal.Decimal     `json:"totalAmount"`
	Profit               decimal.Decimal     `json:"profit"`
	PaymentMethod        PaymentMethod       `json:"paymentMethod"`
	CustomerPhone        string              `json:"customerPhone,omitempty"`
	MobileMoneyProvider  MobileMoneyProvider `json:"mobileMoneyProvider,omitempty"`
	MobileMoneyReference string              `json:"mobileMoneyReference,omitempty"`
	ReceiptID            string              `json:"receiptId,omitempty"`
	CreatedAt            time.Time           `json:"createdAt"`
}

type Expense struct {
	ID                   string              `json:"id"`
	Category             ExpenseCategory     `json:"category"`
	Amount               decimal.Decimal     `json:"amount"`
	PaymentMethod        PaymentMethod       `json:"paymentMethod"`
	Description          string              `json:"description,omitempty"`
	MobileMoneyProvider  MobileMoneyProvider `json:"mobileMoneyProvider,omitempty"`
	MobileMoneyReference string              `json:"mobileMoneyReference,omitempty"`
	CreatedAt            time.Time           `json:"createdAt"`
}

type ReceiptItem struct {
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// Receipt is an append-only snapshot derived from a completed Sale.
// CreatedAt carries the sale's timestamp, not the derivation time.
type Receipt struct {
	ID            string          `json:"id"`
	SaleID        string          `json:"saleId"`
	CustomerPhone string          `json:"customerPhone,omitempty"`
	Items         []ReceiptItem   `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// BusinessSettings is a singleton record created with defaults on first
// access and updated in place.
type BusinessSettings struct {
	ID               string    `json:"id"`
	BusinessName     string    `json:"businessName"`
	LogoURL          string    `json:"logoUrl,omitempty"`
	Currency         string    `json:"currency"`
	Language         string    `json:"language"`
	PrinterConnected bool      `json:"printerConnected"`
	PrinterName      string    `json:"printerName,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type ProductCreateRequest struct {
	Name         string `validate:"required"`
	CostPrice    decimal.Decimal
	SellingPrice decimal.Decimal
	Stock        int `validate:"gte=0"`
	Category     string
}

type ProductUpdateRequest struct {
	Name         *string
	CostPrice    *decimal.Decimal
	SellingPrice *decimal.Decimal
	Stock        *int
	Category     *string
}

type SaleRequest struct {
	ProductID            string        `validate:"required"`
	Quantity             int           `validate:"gt=0"`
	PaymentMethod        PaymentMethod `validate:"required,oneof=cash mobile-money bank-transfer"`
	CustomerPhone        string
	MobileMoneyProvider  MobileMoneyProvider
	MobileMoneyReference string
}

type ExpenseRequest struct {
	Category             ExpenseCategory `validate:"required"`
	Amount               decimal.Decimal
	PaymentMethod        PaymentMethod `validate:"required,oneof=cash mobile-money bank-transfer"`
	Description          string
	MobileMoneyProvider  MobileMoneyProvider
	MobileMoneyReference string
}

type SettingsUpdateRequest struct {
	BusinessName *string
	LogoURL      *string
	Currency     *string `validate:"omitempty,oneof=UGX USD EUR"`
	Language     *string `validate:"omitempty,oneof=en lg"`
}

// SaleResult pairs a committed sale with the receipt derived from it.
type SaleResult struct {
	Sale    Sale
	Receipt Receipt
}

// DashboardSummary is the home-screen snapshot of today's trading.
type DashboardSummary struct {
	Date             string          `json:"date"`
	Revenue          decimal.Decimal `json:"revenue"`
	Profit           decimal.Decimal `json:"profit"`
	SaleCount        int             `json:"saleCount"`
	ExpenseTotal     decimal.Decimal `json:"expenseTotal"`
	ChangeFromPrior  decimal.Decimal `json:"changeFromPrior"`
	LowStockProducts []Product       `json:"lowStockProducts"`
	RecentSales      []Sale          `json:"recentSales"`
}
