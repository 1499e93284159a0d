// Package analytics computes the time-bucketed trading report: revenue,
// expense and profit series, top-selling products and localized insight
// text. All functions are pure over the collections they receive.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"bizboss/pos/internal/domain"
	"bizboss/pos/internal/i18n"
)

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

func (p Period) IsValid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return true
	}
	return false
}

// Bucket is one point of the report series. Start and End bound the
// half-open interval [Start, End) the bucket covers.
type Bucket struct {
	Label    string          `json:"label"`
	Start    time.Time       `json:"start"`
	End      time.Time       `json:"end"`
	Revenue  decimal.Decimal `json:"revenue"`
	Expenses decimal.Decimal `json:"expenses"`
	Profit   decimal.Decimal `json:"profit"`
}

type TopProduct struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// Summary holds the all-time figures. They do not depend on the period.
type Summary struct {
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	TotalExpenses decimal.Decimal `json:"totalExpenses"`
	TotalProfit   decimal.Decimal `json:"totalProfit"`
	SaleCount     int             `json:"saleCount"`
	ProfitMargin  decimal.Decimal `json:"profitMargin"`
}

type Insights struct {
	English string `json:"english"`
	Luganda string `json:"luganda"`
}

type Report struct {
	Period      Period       `json:"period"`
	Buckets     []Bucket     `json:"buckets"`
	TopProducts []TopProduct `json:"topProducts"`
	Summary     Summary      `json:"summary"`
	Insights    Insights     `json:"insights"`
}

// BuildReport aggregates the collections into buckets anchored at now:
// the last 7 days, the last 4 seven-day windows, or the last 6 calendar
// months. Membership is decided by full date-range containment, so a sale
// from any day of a window counts toward that window.
func BuildReport(products []domain.Product, sales []domain.Sale, expenses []domain.Expense, period Period, now time.Time) Report {
	buckets := makeBuckets(period, now)
	for i := range buckets {
		b := &buckets[i]
		for _, sale := range sales {
			if inRange(sale.CreatedAt, b.Start, b.End) {
				b.Revenue = b.Revenue.Add(sale.TotalAmount)
			}
		}
		for _, e := range expenses {
			if inRange(e.CreatedAt, b.Start, b.End) {
				b.Expenses = b.Expenses.Add(e.Amount)
			}
		}
		b.Profit = b.Revenue.Sub(b.Expenses)
	}

	summary := summarize(sales, expenses)
	top := topProducts(products, sales)

	return Report{
		Period:      period,
		Buckets:     buckets,
		TopProducts: top,
		Summary:     summary,
		Insights:    buildInsights(summary, top),
	}
}

func inRange(t, start, end time.Time) bool {
	t = t.UTC()
	return !t.Before(start) && t.Before(end)
}

func makeBuckets(period Period, now time.Time) []Bucket {
	day := startOfDay(now)
	switch period {
	case PeriodWeekly:
		// Four contiguous seven-day windows ending today, labelled by the
		// week-of-month of each window's last day.
		buckets := make([]Bucket, 0, 4)
		for i := 3; i >= 0; i-- {
			end := day.AddDate(0, 0, -7*i+1)
			start := end.AddDate(0, 0, -7)
			anchor := end.AddDate(0, 0, -1)
			buckets = append(buckets, Bucket{
				Label: fmt.Sprintf("Week %d", (anchor.Day()+6)/7),
				Start: start,
				End:   end,
			})
		}
		return buckets
	case PeriodMonthly:
		buckets := make([]Bucket, 0, 6)
		for i := 5; i >= 0; i-- {
			start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -i, 0)
			buckets = append(buckets, Bucket{
				Label: start.Format("Jan"),
				Start: start,
				End:   start.AddDate(0, 1, 0),
			})
		}
		return buckets
	default:
		buckets := make([]Bucket, 0, 7)
		for i := 6; i >= 0; i-- {
			start := day.AddDate(0, 0, -i)
			buckets = append(buckets, Bucket{
				Label: start.Format("Mon"),
				Start: start,
				End:   start.AddDate(0, 0, 1),
			})
		}
		return buckets
	}
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// summarize computes the all-time KPIs. Net profit here is revenue minus
// expenses; the per-sale margin lives on the sale records themselves.
func summarize(sales []domain.Sale, expenses []domain.Expense) Summary {
	s := Summary{
		TotalRevenue:  decimal.Zero,
		TotalExpenses: decimal.Zero,
		ProfitMargin:  decimal.Zero,
	}
	for _, sale := range sales {
		s.TotalRevenue = s.TotalRevenue.Add(sale.TotalAmount)
		s.SaleCount++
	}
	for _, e := range expenses {
		s.TotalExpenses = s.TotalExpenses.Add(e.Amount)
	}
	s.TotalProfit = s.TotalRevenue.Sub(s.TotalExpenses)
	if s.TotalRevenue.IsPositive() {
		s.ProfitMargin = s.TotalProfit.Div(s.TotalRevenue).Mul(decimal.NewFromInt(100)).Round(1)
	}
	return s
}

// topProducts ranks by total quantity sold, keeping insertion order for
// ties, and returns at most five entries. Sales whose product was removed
// still count, under the "Unknown Product" name.
func topProducts(products []domain.Product, sales []domain.Sale) []TopProduct {
	names := make(map[string]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}

	order := make([]string, 0)
	byID := make(map[string]*TopProduct)
	for _, sale := range sales {
		entry, ok := byID[sale.ProductID]
		if !ok {
			name, known := names[sale.ProductID]
			if !known {
				name = "Unknown Product"
			}
			entry = &TopProduct{ProductID: sale.ProductID, Name: name, Revenue: decimal.Zero}
			byID[sale.ProductID] = entry
			order = append(order, sale.ProductID)
		}
		entry.Quantity += sale.Quantity
		entry.Revenue = entry.Revenue.Add(sale.TotalAmount)
	}

	ranked := make([]TopProduct, 0, len(order))
	for _, id := range order {
		ranked = append(ranked, *byID[id])
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Quantity > ranked[j].Quantity })
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}
	return ranked
}

func buildInsights(s Summary, top []TopProduct) Insights {
	topName := ""
	if len(top) > 0 {
		topName = top[0].Name
	}
	return Insights{
		English: i18n.Insight(language.English, s.ProfitMargin, topName),
		Luganda: i18n.Insight(i18n.Luganda, s.ProfitMargin, topName),
	}
}
