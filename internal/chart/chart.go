// Package chart renders the analysis view charts as standalone SVG: price
// with moving averages, RSI with its 30/70 guides, and the price forecast
// with its confidence band.
package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/seenimoa/ibexai/internal/analysis/forecast"
	"github.com/seenimoa/ibexai/internal/analysis/technical"
)

// ════════════════════════════════════════════════════════════════════
// Configuration
// ════════════════════════════════════════════════════════════════════

// Config holds rendering parameters.
type Config struct {
	Width        int    // default 800
	Height       int    // default 400
	MarginTop    int    // default 40
	MarginRight  int    // default 30
	MarginBottom int    // default 50
	MarginLeft   int    // default 60
	BgColor      string // default "#ffffff"
	GridColor    string // default "#e8e8e8"
	TextColor    string // default "#333333"
	FontSize     int    // default 11
	Title        string
}

// DefaultConfig returns the defaults used by every chart.
func DefaultConfig() Config {
	return Config{
		Width:        800,
		Height:       400,
		MarginTop:    40,
		MarginRight:  30,
		MarginBottom: 50,
		MarginLeft:   60,
		BgColor:      "#ffffff",
		GridColor:    "#e8e8e8",
		TextColor:    "#333333",
		FontSize:     11,
	}
}

func (c Config) plotArea() (x, y, w, h int) {
	return c.MarginLeft, c.MarginTop,
		c.Width - c.MarginLeft - c.MarginRight,
		c.Height - c.MarginTop - c.MarginBottom
}

// Series is one named line. NaN values leave a gap.
type Series struct {
	Name   string
	Values []float64
	Color  string
	Dashed bool
}

// Band is a shaded area between Lower and Upper.
type Band struct {
	Name  string
	Lower []float64
	Upper []float64
	Color string
}

// Guide is a horizontal reference line.
type Guide struct {
	Label string
	Value float64
	Color string
}

// Spec describes a line chart.
type Spec struct {
	Series []Series
	Bands  []Band
	Guides []Guide
	Labels []string // x-axis labels, one per point
	// Fixed y range; both zero means auto.
	YMin, YMax float64
}

// ════════════════════════════════════════════════════════════════════
// Analysis charts
// ════════════════════════════════════════════════════════════════════

// Price draws the closes with the 50- and 200-session moving averages.
func Price(name string, ind *technical.Indicators, cfg Config) string {
	if ind == nil || len(ind.Closes) == 0 {
		return emptySVG(cfg, "Sin datos")
	}
	if cfg.Title == "" {
		cfg.Title = name + " - Precio y medias móviles"
	}
	return Line(Spec{
		Series: []Series{
			{Name: "Cierre", Values: ind.Closes, Color: "#2196f3"},
			{Name: "SMA 50", Values: ind.SMA50, Color: "#ff9800"},
			{Name: "SMA 200", Values: ind.SMA200, Color: "#9c27b0"},
		},
		Labels: ind.Dates,
	}, cfg)
}

// RSI draws the oscillator on a fixed 0-100 scale with 30/70 guides.
func RSI(name string, ind *technical.Indicators, cfg Config) string {
	if ind == nil || len(ind.RSI) == 0 {
		return emptySVG(cfg, "Sin datos")
	}
	if cfg.Title == "" {
		cfg.Title = name + " - RSI"
	}
	return Line(Spec{
		Series: []Series{{Name: "RSI", Values: ind.RSI, Color: "#4caf50"}},
		Guides: []Guide{
			{Label: "Sobrecompra (70)", Value: 70, Color: "#ef5350"},
			{Label: "Sobreventa (30)", Value: 30, Color: "#26a69a"},
		},
		Labels: ind.Dates,
		YMin:   0,
		YMax:   100,
	}, cfg)
}

// Forecast draws the last year of history followed by the projection and its band.
func Forecast(name string, res *forecast.Result, cfg Config) string {
	if res == nil || len(res.Points) == 0 {
		return emptySVG(cfg, "Sin predicción")
	}
	if cfg.Title == "" {
		cfg.Title = name + " - Predicción"
	}

	hist := res.History
	if len(hist) > 252 {
		hist = hist[len(hist)-252:]
	}
	n := len(hist) + len(res.Points)
	past := nanSlice(n)
	mean, lower, upper := nanSlice(n), nanSlice(n), nanSlice(n)
	labels := make([]string, 0, n)
	for i, p := range hist {
		past[i] = p.Close
		labels = append(labels, p.Date.Format("2006-01-02"))
	}
	for i, p := range res.Points {
		j := len(hist) + i
		mean[j], lower[j], upper[j] = p.Mean, p.Lower, p.Upper
		labels = append(labels, p.Date.Format("2006-01-02"))
	}

	return Line(Spec{
		Series: []Series{
			{Name: "Histórico", Values: past, Color: "#2196f3"},
			{Name: "Predicción", Values: mean, Color: "#ff9800", Dashed: true},
		},
		Bands:  []Band{{Name: "Intervalo", Lower: lower, Upper: upper, Color: "#ff9800"}},
		Labels: labels,
	}, cfg)
}

// ════════════════════════════════════════════════════════════════════
// Line chart
// ════════════════════════════════════════════════════════════════════

// Line renders a generic line chart.
func Line(spec Spec, cfg Config) string {
	if cfg.Width == 0 {
		title := cfg.Title
		cfg = DefaultConfig()
		cfg.Title = title
	}

	maxLen := 0
	for _, s := range spec.Series {
		maxLen = max(maxLen, len(s.Values))
	}
	if maxLen < 2 {
		return emptySVG(cfg, "Sin datos")
	}

	minVal, maxVal := spec.YMin, spec.YMax
	if minVal == 0 && maxVal == 0 {
		minVal, maxVal = valueRange(spec)
		if math.IsInf(minVal, 1) {
			return emptySVG(cfg, "Sin datos")
		}
		pad := (maxVal - minVal) * 0.05
		if pad < 0.001 {
			pad = 1
		}
		minVal -= pad
		maxVal += pad
	}
	vRange := maxVal - minVal

	px, py, pw, ph := cfg.plotArea()
	xAt := func(i int) float64 {
		return float64(px) + float64(i)*float64(pw)/float64(maxLen-1)
	}
	yAt := func(v float64) float64 {
		return float64(py+ph) - (v-minVal)/vRange*float64(ph)
	}

	var sb strings.Builder
	sb.WriteString(svgHeader(cfg))
	fmt.Fprintf(&sb, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`, cfg.Width, cfg.Height, cfg.BgColor)
	fmt.Fprintf(&sb, `<text x="%d" y="20" font-size="14" font-weight="bold" fill="%s" text-anchor="middle">%s</text>`,
		cfg.Width/2, cfg.TextColor, escapeXML(cfg.Title))

	// y grid
	const gridLines = 5
	for i := 0; i <= gridLines; i++ {
		val := minVal + vRange*float64(i)/gridLines
		y := yAt(val)
		fmt.Fprintf(&sb, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="%s" stroke-dasharray="3,3"/>`,
			px, y, px+pw, y, cfg.GridColor)
		fmt.Fprintf(&sb, `<text x="%d" y="%.1f" font-size="%d" fill="%s" text-anchor="end">%.2f</text>`,
			px-5, y+4, cfg.FontSize, cfg.TextColor, val)
	}

	for _, b := range spec.Bands {
		if d := bandPath(b, xAt, yAt); d != "" {
			fmt.Fprintf(&sb, `<path d="%s" fill="%s" fill-opacity="0.15" stroke="none"/>`, d, b.Color)
		}
	}

	for _, g := range spec.Guides {
		y := yAt(g.Value)
		fmt.Fprintf(&sb, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="%s" stroke-dasharray="6,4"/>`,
			px, y, px+pw, y, g.Color)
		fmt.Fprintf(&sb, `<text x="%d" y="%.1f" font-size="10" fill="%s" text-anchor="end">%s</text>`,
			px+pw, y-4, g.Color, escapeXML(g.Label))
	}

	defaultColors := []string{"#2196f3", "#ff9800", "#4caf50", "#e91e63", "#9c27b0"}
	for si, s := range spec.Series {
		color := s.Color
		if color == "" {
			color = defaultColors[si%len(defaultColors)]
		}
		dash := ""
		if s.Dashed {
			dash = ` stroke-dasharray="6,3"`
		}
		if d := linePath(s.Values, xAt, yAt); d != "" {
			fmt.Fprintf(&sb, `<path d="%s" fill="none" stroke="%s" stroke-width="2"%s/>`, d, color, dash)
		}

		// legend
		ly := py + 10 + si*16
		fmt.Fprintf(&sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="2"/>`,
			px+10, ly, px+30, ly, color)
		fmt.Fprintf(&sb, `<text x="%d" y="%d" font-size="10" fill="%s">%s</text>`,
			px+35, ly+4, cfg.TextColor, escapeXML(s.Name))
	}

	if len(spec.Labels) > 0 {
		interval := max(maxLen/6, 1)
		for i := 0; i < len(spec.Labels) && i < maxLen; i += interval {
			fmt.Fprintf(&sb, `<text x="%.1f" y="%d" font-size="%d" fill="%s" text-anchor="middle">%s</text>`,
				xAt(i), py+ph+18, cfg.FontSize-1, cfg.TextColor, escapeXML(spec.Labels[i]))
		}
	}

	sb.WriteString("</svg>")
	return sb.String()
}

func valueRange(spec Spec) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	scan := func(vs []float64) {
		for _, v := range vs {
			if math.IsNaN(v) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	for _, s := range spec.Series {
		scan(s.Values)
	}
	for _, b := range spec.Bands {
		scan(b.Lower)
		scan(b.Upper)
	}
	return lo, hi
}

func linePath(values []float64, xAt func(int) float64, yAt func(float64) float64) string {
	var parts []string
	pen := "M"
	for i, v := range values {
		if math.IsNaN(v) {
			pen = "M"
			continue
		}
		parts = append(parts, fmt.Sprintf("%s%.1f,%.1f", pen, xAt(i), yAt(v)))
		pen = "L"
	}
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts, " ")
}

// bandPath walks the upper edge forward and the lower edge back.
func bandPath(b Band, xAt func(int) float64, yAt func(float64) float64) string {
	var idx []int
	for i := range b.Upper {
		if i < len(b.Lower) && !math.IsNaN(b.Upper[i]) && !math.IsNaN(b.Lower[i]) {
			idx = append(idx, i)
		}
	}
	if len(idx) < 2 {
		return ""
	}
	var parts []string
	for k, i := range idx {
		cmd := "L"
		if k == 0 {
			cmd = "M"
		}
		parts = append(parts, fmt.Sprintf("%s%.1f,%.1f", cmd, xAt(i), yAt(b.Upper[i])))
	}
	for k := len(idx) - 1; k >= 0; k-- {
		i := idx[k]
		parts = append(parts, fmt.Sprintf("L%.1f,%.1f", xAt(i), yAt(b.Lower[i])))
	}
	return strings.Join(parts, " ") + " Z"
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// ════════════════════════════════════════════════════════════════════
// SVG helpers
// ════════════════════════════════════════════════════════════════════

func svgHeader(cfg Config) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height)
}

func emptySVG(cfg Config, msg string) string {
	if cfg.Width == 0 {
		cfg.Width = 400
	}
	if cfg.Height == 0 {
		cfg.Height = 200
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><rect width="%d" height="%d" fill="#f5f5f5"/><text x="%d" y="%d" text-anchor="middle" fill="#999" font-size="14">%s</text></svg>`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height, cfg.Width/2, cfg.Height/2, escapeXML(msg))
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}
