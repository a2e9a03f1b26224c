// Package export renders a sales summary and its orders into an xlsx workbook.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"gawangliliw/sellerhub/internal/analytics"
	"gawangliliw/sellerhub/internal/models"
)

const (
	OrdersSheet = "Orders"
	SeriesSheet = "Series"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	headerRow = 4
)

var orderColumns = []string{"Order ID", "Date", "Buyer", "Items", "Status", "Payment", "Total"}

// Report is the input of one export. Order dates are rendered in Location,
// or in the zone of GeneratedAt when Location is nil; either way it should be
// the zone the summary buckets were computed in.
type Report struct {
	StoreName   string
	Currency    string
	GeneratedAt time.Time
	Location    *time.Location
	Orders      []models.Order
	Summary     analytics.SalesSummary
}

func (r Report) location() *time.Location {
	if r.Location != nil {
		return r.Location
	}
	return r.GeneratedAt.Location()
}

type styles struct {
	title, header, money, summaryLabel, summaryValue int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error
	if s.title, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}); err != nil {
		return s, err
	}
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"2F5597"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	}); err != nil {
		return s, err
	}
	if s.money, err = f.NewStyle(&excelize.Style{NumFmt: 4}); err != nil {
		return s, err
	}
	if s.summaryLabel, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	}); err != nil {
		return s, err
	}
	s.summaryValue, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
		NumFmt: 4,
	})
	return s, err
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// Title is the first row of the orders sheet.
func Title(r Report) string {
	s := r.Summary
	return fmt.Sprintf("%s sales report (%s %s to %s)", r.StoreName, s.Period,
		s.From.Format("2006-01-02"), s.To.Add(-time.Nanosecond).Format("2006-01-02"))
}

// Build assembles the workbook. The caller owns the returned file.
func Build(r Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", OrdersSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	st, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create styles: %w", err)
	}
	if err := writeOrders(f, st, r); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSeries(f, st, r); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func itemSummary(o *models.Order) string {
	parts := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		parts = append(parts, fmt.Sprintf("%s x%d", it.ProductName, it.Quantity))
	}
	return strings.Join(parts, ", ")
}

func writeOrders(f *excelize.File, st styles, r Report) error {
	sh := OrdersSheet
	set := func(c string, v interface{}) error {
		return f.SetCellValue(sh, c, v)
	}

	if err := set("A1", Title(r)); err != nil {
		return err
	}
	if err := f.MergeCell(sh, "A1", cell(len(orderColumns), 1)); err != nil {
		return err
	}
	if err := f.SetCellStyle(sh, "A1", "A1", st.title); err != nil {
		return err
	}
	if err := set("A2", "Generated "+r.GeneratedAt.Format(time.RFC3339)); err != nil {
		return err
	}

	for i, h := range orderColumns {
		if err := set(cell(i+1, headerRow), h); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sh, cell(1, headerRow), cell(len(orderColumns), headerRow), st.header); err != nil {
		return err
	}

	loc := r.location()
	row := headerRow + 1
	for i := range r.Orders {
		o := &r.Orders[i]
		values := []interface{}{
			o.ID.String(),
			o.CreatedAt.In(loc).Format("2006-01-02 15:04"),
			o.BuyerName,
			itemSummary(o),
			string(o.Status),
			o.PaymentMethod,
			o.Total(),
		}
		for c, v := range values {
			if err := set(cell(c+1, row), v); err != nil {
				return err
			}
		}
		row++
	}
	if len(r.Orders) > 0 {
		if err := f.SetCellStyle(sh, cell(len(orderColumns), headerRow+1), cell(len(orderColumns), row-1), st.money); err != nil {
			return err
		}
	}

	row++
	summary := []struct {
		label string
		value interface{}
	}{
		{fmt.Sprintf("Total Revenue (%s)", r.Currency), r.Summary.TotalRevenue},
		{"Orders", r.Summary.OrderCount},
		{fmt.Sprintf("Average Order Value (%s)", r.Currency), r.Summary.AverageOrderValue},
	}
	valueCol := len(orderColumns)
	for _, s := range summary {
		if err := set(cell(valueCol-1, row), s.label); err != nil {
			return err
		}
		if err := set(cell(valueCol, row), s.value); err != nil {
			return err
		}
		if err := f.SetCellStyle(sh, cell(valueCol-1, row), cell(valueCol-1, row), st.summaryLabel); err != nil {
			return err
		}
		if err := f.SetCellStyle(sh, cell(valueCol, row), cell(valueCol, row), st.summaryValue); err != nil {
			return err
		}
		row++
	}

	if err := f.SetColWidth(sh, "A", "A", 14); err != nil {
		return err
	}
	if err := f.SetColWidth(sh, "B", "C", 18); err != nil {
		return err
	}
	if err := f.SetColWidth(sh, "D", "D", 40); err != nil {
		return err
	}
	return f.SetColWidth(sh, "E", "G", 22)
}

func writeSeries(f *excelize.File, st styles, r Report) error {
	sh := SeriesSheet
	if _, err := f.NewSheet(sh); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}
	for i, h := range []string{"Bucket", "Revenue", "Orders"} {
		if err := f.SetCellValue(sh, cell(i+1, 1), h); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sh, "A1", "C1", st.header); err != nil {
		return err
	}
	s := r.Summary
	for i, label := range s.Labels {
		row := i + 2
		if err := f.SetCellValue(sh, cell(1, row), label); err != nil {
			return err
		}
		if err := f.SetCellValue(sh, cell(2, row), s.Values[i]); err != nil {
			return err
		}
		if err := f.SetCellValue(sh, cell(3, row), s.Counts[i]); err != nil {
			return err
		}
	}

	// Top products sit to the right of the series.
	for i, h := range []string{"Product", "Quantity", "Revenue"} {
		if err := f.SetCellValue(sh, cell(i+5, 1), h); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sh, "E1", "G1", st.header); err != nil {
		return err
	}
	for i, p := range s.TopProducts {
		row := i + 2
		if err := f.SetCellValue(sh, cell(5, row), p.Name); err != nil {
			return err
		}
		if err := f.SetCellValue(sh, cell(6, row), p.Quantity); err != nil {
			return err
		}
		if err := f.SetCellValue(sh, cell(7, row), p.Revenue); err != nil {
			return err
		}
	}
	return f.SetColWidth(sh, "A", "G", 16)
}

// WriteXLSX builds the workbook and returns its bytes.
func WriteXLSX(r Report) ([]byte, error) {
	f, err := Build(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename is the suggested download name.
func Filename(storeName string, period analytics.Period, at time.Time) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, storeName)
	if name == "" {
		name = "store"
	}
	return fmt.Sprintf("%s_%s_%s.xlsx", name, period, at.Format("20060102"))
}
