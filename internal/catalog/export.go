package catalog

import (
	"io"
	"strconv"
	"strings"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/amanice/storefront/internal/domain"
)

const exportSheet = "Sheet1"

// ProductRow is the flat spreadsheet form of a product. Shoe sizes are
// written as brand:size:qty entries joined by ';'.
type ProductRow struct {
	ID            string `csv:"id"`
	Type          string `csv:"type"`
	Category      string `csv:"category"`
	Gender        string `csv:"gender"`
	Price         string `csv:"price"`
	PriceRange    string `csv:"price_range"`
	Description   string `csv:"description"`
	Image         string `csv:"image"`
	StockQuantity int    `csv:"stock_quantity"`
	StockNumber   string `csv:"stock_number"`
	Size          string `csv:"size"`
	IsShoe        bool   `csv:"is_shoe"`
	ShoeBrand     string `csv:"shoe_brand"`
	ShoeSizes     string `csv:"shoe_sizes"`
	IsDefault     bool   `csv:"is_default"`
	DateAdded     string `csv:"date_added"`
}

var rowHeader = []string{
	"id", "type", "category", "gender", "price", "price_range", "description", "image",
	"stock_quantity", "stock_number", "size", "is_shoe", "shoe_brand", "shoe_sizes",
	"is_default", "date_added",
}

func NewProductRow(p domain.Product) ProductRow {
	row := ProductRow{
		ID:            p.ID,
		Type:          p.Type,
		Category:      p.Category,
		Gender:        p.Gender,
		PriceRange:    p.PriceRange,
		Description:   p.Description,
		Image:         p.Image,
		StockQuantity: p.StockQuantity,
		StockNumber:   p.StockNumber,
		Size:          p.Size,
		IsShoe:        p.IsShoe,
		ShoeBrand:     p.ShoeBrand,
		IsDefault:     p.IsDefault,
	}
	if p.Price != nil {
		row.Price = strconv.FormatFloat(*p.Price, 'f', -1, 64)
	}
	if !p.DateAdded.IsZero() {
		row.DateAdded = p.DateAdded.Format(domain.TimeLayout)
	}
	sizes := make([]string, 0, len(p.ShoeSizes))
	for _, s := range p.ShoeSizes {
		sizes = append(sizes, s.Brand+":"+s.Size+":"+strconv.Itoa(s.Qty))
	}
	row.ShoeSizes = strings.Join(sizes, ";")
	return row
}

// Product converts an imported row back. The id is kept only for reference;
// imported rows are saved as new products.
func (r ProductRow) Product() domain.Product {
	p := domain.Product{
		ID:            strings.TrimSpace(r.ID),
		Type:          r.Type,
		Category:      r.Category,
		Gender:        r.Gender,
		PriceRange:    r.PriceRange,
		Description:   r.Description,
		Image:         r.Image,
		StockQuantity: r.StockQuantity,
		StockNumber:   r.StockNumber,
		Size:          r.Size,
		IsShoe:        r.IsShoe,
		ShoeBrand:     r.ShoeBrand,
	}
	if f, err := cast.ToFloat64E(strings.TrimSpace(r.Price)); err == nil && strings.TrimSpace(r.Price) != "" {
		p.Price = &f
	}
	for _, entry := range strings.Split(r.ShoeSizes, ";") {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			continue
		}
		p.ShoeSizes = append(p.ShoeSizes, domain.ShoeSize{Brand: parts[0], Size: parts[1], Qty: cast.ToInt(parts[2])})
	}
	p.Normalize()
	return p
}

func (r ProductRow) values() []interface{} {
	return []interface{}{
		r.ID, r.Type, r.Category, r.Gender, r.Price, r.PriceRange, r.Description, r.Image,
		r.StockQuantity, r.StockNumber, r.Size, r.IsShoe, r.ShoeBrand, r.ShoeSizes,
		r.IsDefault, r.DateAdded,
	}
}

func productRows(products []domain.Product) []ProductRow {
	rows := make([]ProductRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, NewProductRow(p))
	}
	return rows
}

// WriteCSV writes products with a header line
func WriteCSV(w io.Writer, products []domain.Product) error {
	rows := productRows(products)
	if len(rows) == 0 {
		_, err := io.WriteString(w, strings.Join(rowHeader, ",")+"\n")
		return err
	}
	return errors.Wrap(gocsv.Marshal(rows, w), "write csv")
}

// ReadCSV parses rows written by WriteCSV. Columns may appear in any order.
func ReadCSV(r io.Reader) ([]domain.Product, error) {
	var rows []ProductRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, errors.Wrap(&ValidationError{Message: "Invalid CSV file"}, err.Error())
	}
	products := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.Product())
	}
	return products, nil
}

// WriteXLSX writes products to the first sheet of a new workbook
func WriteXLSX(w io.Writer, products []domain.Product) error {
	f := excelize.NewFile()
	for i, h := range rowHeader {
		f.SetCellValue(exportSheet, cellName(i, 1), h)
	}
	for n, row := range productRows(products) {
		for i, v := range row.values() {
			f.SetCellValue(exportSheet, cellName(i, n+2), v)
		}
	}
	return errors.Wrap(f.Write(w), "write xlsx")
}

func cellName(col, row int) string {
	return string(rune('A'+col)) + strconv.Itoa(row)
}
