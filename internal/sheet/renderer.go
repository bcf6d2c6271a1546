// Package sheet renders a printable quote sheet for a selection of products.
// Prices are computed with the shared pricing rules and formatted to two
// decimal places only at this boundary.
package sheet

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/daoyee/daoyee-quote/internal/catalog"
	"github.com/daoyee/daoyee-quote/internal/pricing"
	"github.com/daoyee/daoyee-quote/web"
)

// Renderer executes the embedded quote-sheet template.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses templates at build-time.
func NewRenderer() (*Renderer, error) {
	tpl, err := template.ParseFS(web.Templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("sheet: parse templates: %w", err)
	}
	return &Renderer{templates: tpl}, nil
}

// Row is one product line on the sheet, with prices already formatted.
type Row struct {
	Index        int
	Image        string
	Code         string
	Name         string
	Category     string
	SizeRange    string
	CartonSpec   string
	Colors       string
	TotalCost    string
	ExWorksPrice string
	PriceWithTax string
}

// Data is the template payload for one rendered sheet.
type Data struct {
	GeneratedAt string
	Rows        []Row
}

// Render writes the sheet for the given products, in the order given.
func (r *Renderer) Render(w io.Writer, products []catalog.Product) error {
	data := Data{
		GeneratedAt: time.Now().Format("2006-01-02 15:04"),
		Rows:        make([]Row, 0, len(products)),
	}
	for i, p := range products {
		quote := pricing.ForProduct(p)
		data.Rows = append(data.Rows, Row{
			Index:        i + 1,
			Image:        p.Image,
			Code:         p.Code,
			Name:         p.Name,
			Category:     p.Category,
			SizeRange:    p.SizeRange,
			CartonSpec:   p.CartonSpec,
			Colors:       p.Colors,
			TotalCost:    money(quote.TotalCost),
			ExWorksPrice: money(quote.ExWorksPrice),
			PriceWithTax: money(quote.PriceWithTax),
		})
	}
	if err := r.templates.ExecuteTemplate(w, "quote_sheet", data); err != nil {
		return fmt.Errorf("sheet: render: %w", err)
	}
	return nil
}

// money formats an amount with exactly two decimal places.
func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
