package report

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ════════════════════════════════════════════════════════════════════
// PDF Generator: HTML → PDF via wkhtmltopdf / chromium headless
// ════════════════════════════════════════════════════════════════════

// PDFEngine specifies which engine to use for HTML→PDF conversion.
type PDFEngine string

const (
	EngineAuto     PDFEngine = ""
	EngineWKHTML   PDFEngine = "wkhtmltopdf"
	EngineChromium PDFEngine = "chromium"
	EngineHTML     PDFEngine = "html" // no conversion, write the HTML next to the requested path
)

var chromiumBinaries = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}

// PDFConfig holds configuration for PDF generation.
type PDFConfig struct {
	Engine       PDFEngine // default: auto-detect
	PageSize     string    // default: "A4"
	Orientation  string    // "portrait" (default) or "landscape"
	MarginTop    string    // default: "15mm"
	MarginBottom string    // default: "15mm"
	MarginLeft   string    // default: "10mm"
	MarginRight  string    // default: "10mm"
	OutputPath   string    // required: output PDF file path
}

// DefaultPDFConfig returns the A4 portrait defaults.
func DefaultPDFConfig() PDFConfig {
	return PDFConfig{
		Engine:       EngineAuto,
		PageSize:     "A4",
		Orientation:  "portrait",
		MarginTop:    "15mm",
		MarginBottom: "15mm",
		MarginLeft:   "10mm",
		MarginRight:  "10mm",
	}
}

// DetectPDFEngine checks which PDF engine is available on the system.
func DetectPDFEngine() PDFEngine {
	if _, err := exec.LookPath("wkhtmltopdf"); err == nil {
		return EngineWKHTML
	}
	if chromiumPath() != "" {
		return EngineChromium
	}
	return EngineHTML
}

// GeneratePDF converts an HTML string to a PDF file and returns the path
// written. Without a conversion engine the HTML itself is written, with the
// extension changed to .html.
func GeneratePDF(ctx context.Context, html string, cfg PDFConfig) (string, error) {
	if cfg.OutputPath == "" {
		return "", fmt.Errorf("output path is required")
	}

	engine := cfg.Engine
	if engine == EngineAuto {
		engine = DetectPDFEngine()
	}

	switch engine {
	case EngineWKHTML:
		return cfg.OutputPath, generateWithWKHTML(ctx, html, cfg)
	case EngineChromium:
		return cfg.OutputPath, generateWithChromium(ctx, html, cfg)
	case EngineHTML:
		return writeHTMLFallback(html, cfg.OutputPath)
	default:
		return "", fmt.Errorf("unsupported PDF engine: %s", engine)
	}
}

func generateWithWKHTML(ctx context.Context, html string, cfg PDFConfig) error {
	tmpFile, err := writeTempHTML(html)
	if err != nil {
		return err
	}
	defer os.Remove(tmpFile)

	args := []string{
		"--page-size", cfg.PageSize,
		"--orientation", cfg.Orientation,
		"--margin-top", cfg.MarginTop,
		"--margin-bottom", cfg.MarginBottom,
		"--margin-left", cfg.MarginLeft,
		"--margin-right", cfg.MarginRight,
		"--encoding", "UTF-8",
		"--enable-local-file-access",
		"--quiet",
		tmpFile,
		cfg.OutputPath,
	}

	cmd := exec.CommandContext(ctx, "wkhtmltopdf", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("wkhtmltopdf failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}

func generateWithChromium(ctx context.Context, html string, cfg PDFConfig) error {
	bin := chromiumPath()
	if bin == "" {
		return fmt.Errorf("chromium not found in PATH")
	}

	tmpFile, err := writeTempHTML(html)
	if err != nil {
		return err
	}
	defer os.Remove(tmpFile)

	absOutput, err := filepath.Abs(cfg.OutputPath)
	if err != nil {
		return fmt.Errorf("resolving output path: %w", err)
	}

	args := []string{
		"--headless",
		"--disable-gpu",
		"--no-sandbox",
		"--print-to-pdf=" + absOutput,
		"--print-to-pdf-no-header",
	}
	if strings.EqualFold(cfg.Orientation, "landscape") {
		args = append(args, "--landscape")
	}
	args = append(args, "file://"+tmpFile)

	cmd := exec.CommandContext(ctx, bin, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("chromium PDF export failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}

func chromiumPath() string {
	for _, name := range chromiumBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func writeTempHTML(html string) (string, error) {
	f, err := os.CreateTemp("", "ibexai_report_*.html")
	if err != nil {
		return "", fmt.Errorf("writing temp HTML: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(html); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("writing temp HTML: %w", err)
	}
	return f.Name(), nil
}

func writeHTMLFallback(html string, outputPath string) (string, error) {
	if strings.HasSuffix(strings.ToLower(outputPath), ".pdf") {
		outputPath = outputPath[:len(outputPath)-4] + ".html"
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, []byte(html), 0644); err != nil {
		return "", fmt.Errorf("writing HTML fallback: %w", err)
	}
	return outputPath, nil
}

// IsPDFSupported returns true if a PDF engine is available.
func IsPDFSupported() bool {
	return DetectPDFEngine() != EngineHTML
}
