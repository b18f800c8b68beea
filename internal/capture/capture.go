// Package capture rasterizes a local HTML file to PNG with headless Chrome.
package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/chromedp/chromedp"
)

// Options control how the page is rendered before the screenshot.
type Options struct {
	FullPage bool
	Scale    float64 // device scale factor; 2 renders crisp text for OCR-style models
}

// Capturer renders HTML files through a headless browser session.
type Capturer struct {
	opts   Options
	logger *log.Logger
}

func New(opts Options, logger *log.Logger) *Capturer {
	if opts.Scale <= 0 {
		opts.Scale = 2
	}
	return &Capturer{opts: opts, logger: logger}
}

// Capture loads htmlPath via a file:// URL in a fresh browser context and
// writes the screenshot to pngPath. The browser is torn down on every exit
// path; a failed run leaves no Chrome behind.
func (c *Capturer) Capture(ctx context.Context, htmlPath, pngPath string) error {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return fmt.Errorf("resolve html path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("html file: %w", err)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	c.logger.Info("rendering html", "file", abs, "fullPage", c.opts.FullPage, "scale", c.opts.Scale)

	var buf []byte
	actions := []chromedp.Action{
		chromedp.EmulateViewport(1280, 800, chromedp.EmulateScale(c.opts.Scale)),
		chromedp.Navigate("file://" + abs),
		chromedp.WaitReady("body"),
	}
	if c.opts.FullPage {
		actions = append(actions, chromedp.FullScreenshot(&buf, 100))
	} else {
		actions = append(actions, chromedp.CaptureScreenshot(&buf))
	}

	if err := chromedp.Run(browserCtx, actions...); err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}

	if err := os.WriteFile(pngPath, buf, 0o644); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	c.logger.Info("screenshot written", "file", pngPath, "bytes", len(buf))
	return nil
}
