// Package receipt renders receipts into the three hand-off formats:
// a fixed-width document for thermal printers, a standalone HTML file
// and a plain-text share message.
package receipt

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"bizboss/pos/internal/domain"
	"bizboss/pos/internal/i18n"
)

// Thermal paper width in characters, 58mm class.
const lineWidth = 32

func center(s string) string {
	if len(s) >= lineWidth {
		return s
	}
	pad := (lineWidth - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}

func split(left, right string) string {
	gap := lineWidth - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func dashed() string {
	return strings.Repeat("-", lineWidth)
}

func money(currency string, amount decimal.Decimal) string {
	return currency + " " + amount.StringFixed(0)
}

// Document renders the printable fixed-width receipt.
func Document(settings domain.BusinessSettings, rc domain.Receipt) string {
	tag := i18n.Tag(settings.Language)
	var b strings.Builder

	b.WriteString(center(strings.ToUpper(settings.BusinessName)) + "\n")
	b.WriteString(center(i18n.Label(tag, i18n.KeyThankYou)) + "\n")
	b.WriteString(dashed() + "\n")
	b.WriteString("Date: " + rc.CreatedAt.Format("02/01/2006") + "\n")
	b.WriteString("Time: " + rc.CreatedAt.Format("15:04:05") + "\n")
	if rc.CustomerPhone != "" {
		b.WriteString("Phone: " + rc.CustomerPhone + "\n")
	}
	b.WriteString(dashed() + "\n")
	for _, item := range rc.Items {
		b.WriteString(item.ProductName + "\n")
		qty := fmt.Sprintf("%d x %s", item.Quantity, item.UnitPrice.StringFixed(0))
		b.WriteString(split(qty, item.LineTotal.StringFixed(0)) + "\n")
	}
	b.WriteString(dashed() + "\n")
	b.WriteString(split("TOTAL:", money(settings.Currency, rc.Total)) + "\n")
	b.WriteString("Payment: " + string(rc.PaymentMethod) + "\n")
	b.WriteString(dashed() + "\n")
	b.WriteString(center("Powered by "+settings.BusinessName) + "\n")
	b.WriteString(center("Visit us again!") + "\n")

	return b.String()
}

// ShareMessage renders the receipt as a plain-text message suitable for
// messaging apps, with asterisk emphasis on the header and total.
func ShareMessage(settings domain.BusinessSettings, rc domain.Receipt) string {
	tag := i18n.Tag(settings.Language)
	var b strings.Builder

	fmt.Fprintf(&b, "*RECEIPT - %s*\n\n", strings.ToUpper(settings.BusinessName))
	fmt.Fprintf(&b, "Date: %s\n", rc.CreatedAt.Format("02/01/2006"))
	fmt.Fprintf(&b, "Time: %s\n\n", rc.CreatedAt.Format("15:04:05"))
	b.WriteString("Items:\n")
	lines := make([]string, 0, len(rc.Items))
	for _, item := range rc.Items {
		lines = append(lines, fmt.Sprintf("%s\n%d x %s = %s",
			item.ProductName,
			item.Quantity,
			money(settings.Currency, item.UnitPrice),
			money(settings.Currency, item.LineTotal),
		))
	}
	b.WriteString(strings.Join(lines, "\n\n"))
	fmt.Fprintf(&b, "\n\n*TOTAL: %s*\n", money(settings.Currency, rc.Total))
	fmt.Fprintf(&b, "Payment: %s\n\n", rc.PaymentMethod)
	b.WriteString(i18n.Label(tag, i18n.KeyThankYou))

	return b.String()
}

// HTML renders the receipt as a self-contained document for download or
// browser printing.
func HTML(settings domain.BusinessSettings, rc domain.Receipt) string {
	tag := i18n.Tag(settings.Language)
	var b strings.Builder

	b.WriteString(`<!DOCTYPE html>
<html>
<head>
<title>Receipt</title>
<style>
body { font-family: 'Courier New', monospace; font-size: 12px; width: 200px; margin: 0; padding: 10px; }
.header { text-align: center; margin-bottom: 10px; }
.line { border-bottom: 1px dashed #000; margin: 5px 0; }
.item { display: flex; justify-content: space-between; margin: 2px 0; }
.total { font-weight: bold; margin-top: 5px; }
.footer { text-align: center; margin-top: 10px; font-size: 10px; }
</style>
</head>
<body>
`)
	fmt.Fprintf(&b, "<div class=\"header\">\n<h3>%s</h3>\n<p>%s</p>\n<div class=\"line\"></div>\n</div>\n",
		html.EscapeString(strings.ToUpper(settings.BusinessName)),
		html.EscapeString(i18n.Label(tag, i18n.KeyThankYou)),
	)
	fmt.Fprintf(&b, "<div>Date: %s</div>\n", rc.CreatedAt.Format("02/01/2006"))
	fmt.Fprintf(&b, "<div>Time: %s</div>\n", rc.CreatedAt.Format("15:04:05"))
	if rc.CustomerPhone != "" {
		fmt.Fprintf(&b, "<div>Phone: %s</div>\n", html.EscapeString(rc.CustomerPhone))
	}
	b.WriteString("<div class=\"line\"></div>\n")
	for _, item := range rc.Items {
		fmt.Fprintf(&b, "<div class=\"item\"><span>%s</span></div>\n", html.EscapeString(item.ProductName))
		fmt.Fprintf(&b, "<div class=\"item\"><span>%d x %s</span><span>%s</span></div>\n",
			item.Quantity, item.UnitPrice.StringFixed(0), item.LineTotal.StringFixed(0))
	}
	b.WriteString("<div class=\"line\"></div>\n")
	fmt.Fprintf(&b, "<div class=\"item total\"><span>TOTAL:</span><span>%s</span></div>\n",
		html.EscapeString(money(settings.Currency, rc.Total)))
	fmt.Fprintf(&b, "<div>Payment: %s</div>\n", html.EscapeString(string(rc.PaymentMethod)))
	fmt.Fprintf(&b, "<div class=\"footer\">\n<div class=\"line\"></div>\n<p>Powered by %s</p>\n<p>Visit us again!</p>\n</div>\n",
		html.EscapeString(settings.BusinessName),
	)
	b.WriteString("</body>\n</html>\n")

	return b.String()
}

// TestPage renders the short page sent when testing a printer connection.
func TestPage(settings domain.BusinessSettings) string {
	var b strings.Builder
	b.WriteString(center(strings.ToUpper(settings.BusinessName)) + "\n")
	b.WriteString(dashed() + "\n")
	b.WriteString(center("PRINTER TEST") + "\n")
	b.WriteString("Printer: " + settings.PrinterName + "\n")
	b.WriteString(dashed() + "\n")
	b.WriteString(center("Connection OK") + "\n")
	return b.String()
}
