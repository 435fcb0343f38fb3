// Package capture renders the /calendar page to PNG with headless Chromium.
package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	appLog "agendaaberta/internal/log"
)

// Default capture parameters. They fit the month grid at a readable size.
const (
	DefaultWidth   = 1280
	DefaultHeight  = 960
	DefaultTimeout = 30 * time.Second

	// ReadySelector matches the calendar root once it has rendered.
	ReadySelector = `[data-ready="true"]`
)

// Options defines one screenshot.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/calendar?date=2025-06-15".
	URL string

	// OutputPath receives the PNG. Empty means the caller only wants the
	// bytes.
	OutputPath string

	Width  int
	Height int

	// Username/Password are sent as Basic Auth when set.
	Username string
	Password string

	Timeout time.Duration

	// ExecPath overrides the Chromium binary lookup.
	ExecPath string
}

func (o Options) withDefaults() (Options, error) {
	if o.URL == "" {
		return o, errors.New("capture: URL is required")
	}
	u, err := url.Parse(o.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return o, fmt.Errorf("capture: URL %q must be http(s)", o.URL)
	}
	if o.Username != "" || o.Password != "" {
		u.User = url.UserPassword(o.Username, o.Password)
		o.URL = u.String()
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o, nil
}

// CalendarPNG navigates headless Chromium to opts.URL, waits until the
// calendar root carries data-ready="true" and returns a full-page PNG. If
// OutputPath is set the image is also written there.
func CalendarPNG(parentCtx context.Context, opts Options) ([]byte, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, allocOpts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	started := time.Now()
	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		chromedp.FullScreenshot(&png, 100),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}
	appLog.Info("calendar captured", "bytes", len(png), "elapsed", time.Since(started).String())

	if opts.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o755); err != nil {
			return png, fmt.Errorf("capture: create output dir: %w", err)
		}
		if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
			return png, fmt.Errorf("capture: failed to write PNG: %w", err)
		}
	}
	return png, nil
}
