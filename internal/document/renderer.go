// Package document renders the printable circulation permit as a PDF with
// an embedded QR code pointing at the public status page.
package document

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"log/slog"

	"github.com/Gsr1989/Aguascalientes/core/logger"
)

// Spanish month abbreviations as printed on issued permits. The mixed
// casing matches the documents already in circulation.
var monthAbbr = [12]string{"ene", "feb", "mar", "abr", "May", "Jun", "jul", "ago", "sep", "oct", "nov", "dic"}

// FechaLarga formats a date the way the permit prints it: "02 ene 2026".
func FechaLarga(t time.Time) string {
	return fmt.Sprintf("%02d %s %d", t.Day(), monthAbbr[t.Month()-1], t.Year())
}

// Data carries everything the renderer stamps onto the permit page.
type Data struct {
	Folio     string
	Marca     string
	Linea     string
	Anio      string
	Serie     string
	Motor     string
	Color     string
	Nombre    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Renderer writes permit PDFs into OutputDir. BaseURL is the public root of
// the status pages the QR code links to.
type Renderer struct {
	OutputDir string
	BaseURL   string
}

// NewRenderer constructs a renderer, defaulting the output directory.
func NewRenderer(outputDir, baseURL string) *Renderer {
	if outputDir == "" {
		outputDir = "documents"
	}
	return &Renderer{
		OutputDir: outputDir,
		BaseURL:   strings.TrimRight(baseURL, "/"),
	}
}

const (
	qrSide = 115.0
	qrX    = 400.0
	qrY    = 100.0

	lineHeight = 25.0
	leftMargin = 50.0
)

// Render produces the permit PDF and returns the file path, named
// "<folio>_ags.pdf" inside OutputDir.
func (r *Renderer) Render(d Data) (string, error) {
	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	out := filepath.Join(r.OutputDir, d.Folio+"_ags.pdf")

	start := time.Now()
	pdf := gofpdf.New("P", "pt", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(255, 0, 0)
	pdf.Text(leftMargin, 80, d.Folio)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(0, 0, 0)

	y := 120.0
	put := func(text string) {
		pdf.Text(leftMargin, y, tr(text))
		y += lineHeight
	}

	put(strings.TrimSpace(d.Marca + " " + d.Linea))
	put(d.Anio)
	put(d.Color)
	put(d.Serie)
	if d.Motor != "" && !strings.EqualFold(d.Motor, "SIN NUMERO") {
		put(d.Motor)
	}
	put(d.Nombre)
	put("Expedición: " + FechaLarga(d.IssuedAt))
	put("Vencimiento: " + FechaLarga(d.ExpiresAt))

	if r.BaseURL != "" {
		png, err := statusQR(r.BaseURL, d.Folio, 256)
		if err != nil {
			logger.PDF.Warn("qr generation failed",
				slog.String("event", "pdf.qr"),
				slog.String("folio", d.Folio),
				slog.String("err", err.Error()),
			)
		} else {
			opts := gofpdf.ImageOptions{ImageType: "PNG"}
			pdf.RegisterImageOptionsReader("qr_"+d.Folio, opts, bytes.NewReader(png))
			pdf.ImageOptions("qr_"+d.Folio, qrX, qrY, qrSide, qrSide, false, opts, 0, "")
		}
	}

	if err := pdf.OutputFileAndClose(out); err != nil {
		logger.PDF.Error("pdf write failed",
			slog.String("event", "pdf.render"),
			slog.String("folio", d.Folio),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("write pdf for %s: %w", d.Folio, err)
	}

	logger.PDF.Info("permit rendered",
		slog.String("event", "pdf.render"),
		slog.String("folio", d.Folio),
		slog.String("path", out),
		slog.Duration("duration", logger.Took(start)),
	)
	return out, nil
}
