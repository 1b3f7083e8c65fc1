// Package report turns a generated advisor report into a standalone HTML
// document, optionally converted to PDF.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/seenimoa/ibexai/internal/market"
	"github.com/seenimoa/ibexai/pkg/utils"
)

// ErrEmptyReport is returned when there is no report body to render.
var ErrEmptyReport = errors.New("report: empty body")

// DefaultTitle heads every document unless overridden.
const DefaultTitle = "Informe de inversión IBEX35"

// Document is everything shown in an exported report.
type Document struct {
	Title     string
	Author    string
	Profile   string
	Objective string
	Extended  bool

	// BodyHTML is the report rendered from markdown. It is trusted: the
	// renderer must have dropped raw HTML from the model output.
	BodyHTML string

	// Profitability is printed as an appendix when not empty.
	Profitability []market.ProfitabilityRow

	GeneratedAt time.Time
	DataAt      time.Time
}

// templateData is the flattened, pre-formatted view passed to the template.
type templateData struct {
	Title       string
	Author      string
	Profile     string
	Objective   string
	Kind        string
	Body        template.HTML
	Rows        []profitabilityRow
	GeneratedAt string
	DataAt      string
}

type profitabilityRow struct {
	Name, Symbol, Price, Dividend, Yield, MarketCap, Change string
	Failed                                                bool
}

var reportTmpl = template.Must(template.New("report").Parse(ReportTemplate))

// GenerateHTML renders the document.
func GenerateHTML(doc Document) (string, error) {
	if doc.BodyHTML == "" {
		return "", ErrEmptyReport
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, buildTemplateData(doc)); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

func buildTemplateData(doc Document) templateData {
	d := templateData{
		Title:     doc.Title,
		Author:    doc.Author,
		Profile:   doc.Profile,
		Objective: doc.Objective,
		Kind:      "Básico",
		Body:      template.HTML(doc.BodyHTML), //nolint:gosec
	}
	if d.Title == "" {
		d.Title = DefaultTitle
	}
	if d.Author == "" {
		d.Author = "IBEX35 IA"
	}
	if doc.Extended {
		d.Kind = "Extendido"
	}

	generated := doc.GeneratedAt
	if generated.IsZero() {
		generated = utils.NowMadrid()
	}
	d.GeneratedAt = ReportTimestamp(generated)
	if !doc.DataAt.IsZero() {
		d.DataAt = ReportTimestamp(doc.DataAt)
	}

	for _, r := range doc.Profitability {
		d.Rows = append(d.Rows, profitabilityRow{
			Name:      r.Name,
			Symbol:    r.Symbol,
			Price:     utils.Euro(r.Price),
			Dividend:  utils.Euro(r.Dividend),
			Yield:     utils.Percent(r.DividendYieldPct),
			MarketCap: utils.BillionsEUR(r.MarketCap),
			Change:    utils.SignedPercent(r.AdjChange1YPct),
			Failed:    r.Err != "",
		})
	}
	return d
}

// ReportTimestamp formats t in Madrid time for report headers.
func ReportTimestamp(t time.Time) string {
	return utils.FormatDateTime(t) + " (Madrid)"
}
