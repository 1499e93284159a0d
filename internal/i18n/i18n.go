// Package i18n holds the English and Luganda message catalog. The catalog
// is small on purpose: the insight template, its no-data fallback and the
// handful of labels printed on summaries.
package i18n

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Luganda has no predefined constant in x/text.
var Luganda = language.MustParse("lg")

const (
	insightKey         = "insight.performance"
	insightFallbackKey = "insight.fallback"

	KeyTodaysSales  = "label.todaysSales"
	KeyTodaysProfit = "label.todaysProfit"
	KeyExpenses     = "label.expenses"
	KeyLowStock     = "label.lowStock"
	KeyRecentSales  = "label.recentSales"
	KeyCurrencyUGX  = "label.ugx"
	KeyThankYou     = "label.thankYou"
)

func init() {
	set := func(tag language.Tag, pairs map[string]string) {
		for key, msg := range pairs {
			if err := message.SetString(tag, key, msg); err != nil {
				panic(err)
			}
		}
	}

	set(language.English, map[string]string{
		insightKey:         "Your business is performing well with a %s%% profit margin. %s is your top seller. Consider restocking popular items and optimizing expenses.",
		insightFallbackKey: "Focus on inventory",
		KeyTodaysSales:     "Today's Sales",
		KeyTodaysProfit:    "Today's Profit",
		KeyExpenses:        "Expenses",
		KeyLowStock:        "Low Stock Alert",
		KeyRecentSales:     "Recent Sales",
		KeyCurrencyUGX:     "UGX",
		KeyThankYou:        "Thank you for your business!",
	})
	set(Luganda, map[string]string{
		insightKey:         "Bizinensi yo ekola bulungi nga profit margin ya %s%%. %s y'ekintu ekitundibwa ennyo. Weekendeeze ku kuzingiza ebintu ebitundibwa n'okukendeeza ku nsaasaanya.",
		insightFallbackKey: "Weekendeeze ku bintu",
		KeyTodaysSales:     "Ebitundiddwa Leero",
		KeyTodaysProfit:    "Amagoba ga Leero",
		KeyExpenses:        "Ensaasaanya",
		KeyLowStock:        "Ebintu Ebitono",
		KeyRecentSales:     "Ebitundiddwa Ebisembayo",
		KeyCurrencyUGX:     "UGX",
		KeyThankYou:        "Webale kugula!",
	})
}

// Tag resolves a settings language code to a catalog tag. Unknown codes
// fall back to English.
func Tag(code string) language.Tag {
	if code == "lg" {
		return Luganda
	}
	return language.English
}

// Insight renders the performance insight for the given locale. When no
// product has sold yet, topName is empty and the locale's fallback phrase
// takes its place, as the template reads naturally either way.
func Insight(tag language.Tag, margin decimal.Decimal, topName string) string {
	p := message.NewPrinter(tag)
	if topName == "" {
		topName = p.Sprintf(insightFallbackKey)
	}
	return p.Sprintf(insightKey, margin.StringFixed(1), topName)
}

// Label looks up a catalog label for the given locale.
func Label(tag language.Tag, key string) string {
	return message.NewPrinter(tag).Sprintf(key)
}
