package report

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"

	"github.com/playwright-community/playwright-go"
)

// PaperSize is a printable page size
type PaperSize struct {
	Width  string
	Height string
	Margin string
}

// B5 suits reading episode notes on a tablet
var B5 = PaperSize{Width: "176mm", Height: "250mm", Margin: "15mm"}

// GeneratePDF prints a rendered HTML report to pdfPath with headless Chromium
func GeneratePDF(ctx context.Context, htmlPath, pdfPath string, size PaperSize) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
		return fmt.Errorf("could not install playwright: %w", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("could not start playwright: %w", err)
	}
	defer pw.Stop()

	browser, err := pw.Chromium.Launch()
	if err != nil {
		return fmt.Errorf("could not launch browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.NewPage()
	if err != nil {
		return fmt.Errorf("could not create page: %w", err)
	}
	defer page.Close()

	absPath, err := filepath.Abs(htmlPath)
	if err != nil {
		return fmt.Errorf("could not get absolute path: %w", err)
	}
	fileURL := url.URL{Scheme: "file", Path: absPath}
	if _, err = page.Goto(fileURL.String()); err != nil {
		return fmt.Errorf("could not navigate to HTML file: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	_, err = page.PDF(playwright.PagePdfOptions{
		Path:            playwright.String(pdfPath),
		Width:           playwright.String(size.Width),
		Height:          playwright.String(size.Height),
		PrintBackground: playwright.Bool(true),
		Margin: &playwright.Margin{
			Top:    playwright.String(size.Margin),
			Right:  playwright.String(size.Margin),
			Bottom: playwright.String(size.Margin),
			Left:   playwright.String(size.Margin),
		},
	})
	if err != nil {
		return fmt.Errorf("could not generate PDF: %w", err)
	}

	slog.Debug("pdf printed", "html", absPath, "pdf", pdfPath)
	return nil
}
