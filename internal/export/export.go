// Package export serializes the trading collections for use outside the
// application, as CSV files or a single XLSX workbook.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"bizboss/pos/internal/domain"
)

const dateLayout = "2006-01-02"

var (
	salesHeader    = []string{"Date", "Product", "Quantity", "Unit Price", "Total", "Payment Method"}
	expensesHeader = []string{"Date", "Category", "Amount", "Payment Method", "Description"}
	productsHeader = []string{"Name", "Cost Price", "Selling Price", "Stock", "Category"}
)

func salesRows(sales []domain.Sale) [][]string {
	rows := make([][]string, 0, len(sales)+1)
	rows = append(rows, salesHeader)
	for _, s := range sales {
		rows = append(rows, []string{
			s.CreatedAt.Format(dateLayout),
			s.ProductName,
			strconv.Itoa(s.Quantity),
			s.UnitPrice.String(),
			s.TotalAmount.String(),
			string(s.PaymentMethod),
		})
	}
	return rows
}

func expenseRows(expenses []domain.Expense) [][]string {
	rows := make([][]string, 0, len(expenses)+1)
	rows = append(rows, expensesHeader)
	for _, e := range expenses {
		rows = append(rows, []string{
			e.CreatedAt.Format(dateLayout),
			string(e.Category),
			e.Amount.String(),
			string(e.PaymentMethod),
			e.Description,
		})
	}
	return rows
}

func productRows(products []domain.Product) [][]string {
	rows := make([][]string, 0, len(products)+1)
	rows = append(rows, productsHeader)
	for _, p := range products {
		rows = append(rows, []string{
			p.Name,
			p.CostPrice.String(),
			p.SellingPrice.String(),
			strconv.Itoa(p.Stock),
			p.Category,
		})
	}
	return rows
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func SalesCSV(w io.Writer, sales []domain.Sale) error {
	return writeCSV(w, salesRows(sales))
}

func ExpensesCSV(w io.Writer, expenses []domain.Expense) error {
	return writeCSV(w, expenseRows(expenses))
}

func ProductsCSV(w io.Writer, products []domain.Product) error {
	return writeCSV(w, productRows(products))
}

// Workbook writes all three collections as one XLSX file with a sheet per
// collection, same columns as the CSV exports.
func Workbook(w io.Writer, sales []domain.Sale, expenses []domain.Expense, products []domain.Product) error {
	f := excelize.NewFile()
	defer f.Close()

	sheets := []struct {
		name string
		rows [][]string
	}{
		{"Sales", salesRows(sales)},
		{"Expenses", expenseRows(expenses)},
		{"Products", productRows(products)},
	}
	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet.name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(sheet.name); err != nil {
				return fmt.Errorf("add sheet %s: %w", sheet.name, err)
			}
		}
		for rowIdx, row := range sheet.rows {
			cell, err := excelize.CoordinatesToCellName(1, rowIdx+1)
			if err != nil {
				return fmt.Errorf("sheet %s row %d: %w", sheet.name, rowIdx+1, err)
			}
			values := make([]any, len(row))
			for col, v := range row {
				values[col] = v
			}
			if err := f.SetSheetRow(sheet.name, cell, &values); err != nil {
				return fmt.Errorf("sheet %s row %d: %w", sheet.name, rowIdx+1, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
