package fetch

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
)

// Ensure ChromeRenderer implements the interface.
var _ driven.Renderer = (*ChromeRenderer)(nil)

const (
	// networkIdleSettle approximates network idle after the body is ready.
	networkIdleSettle = 1500 * time.Millisecond

	// imageWaitLimit bounds the wait for <img> elements.
	imageWaitLimit = 10 * time.Second

	imagesComplete = `Array.from(document.images).every(i => i.complete)`
)

// browserCandidates are probed in order when no exec path is configured.
var browserCandidates = []string{
	"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome",
}

// ChromeRenderer renders pages in a shared headless Chrome, one tab per call.
type ChromeRenderer struct {
	userAgent string
	execPath  string
	timeout   time.Duration

	once        sync.Once
	initErr     error
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
}

// NewChromeRenderer creates a renderer. The browser starts on first Render.
func NewChromeRenderer(userAgent, execPath string, timeout time.Duration) *ChromeRenderer {
	if timeout <= 0 {
		timeout = domain.DefaultRenderTimeout
	}
	return &ChromeRenderer{userAgent: userAgent, execPath: execPath, timeout: timeout}
}

// BrowserAvailable reports whether a Chrome binary can be located.
func BrowserAvailable(execPath string) bool {
	if execPath != "" {
		_, err := exec.LookPath(execPath)
		return err == nil
	}
	for _, name := range browserCandidates {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

func (r *ChromeRenderer) start() error {
	r.once.Do(func() {
		if !BrowserAvailable(r.execPath) {
			r.initErr = fmt.Errorf("%w: no chrome binary found", domain.ErrRenderUnavailable)
			return
		}
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.UserAgent(r.userAgent),
			chromedp.WindowSize(1366, 900),
		)
		if r.execPath != "" {
			opts = append(opts, chromedp.ExecPath(r.execPath))
		}
		allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
		browserCtx, cancelTab := chromedp.NewContext(allocCtx)
		// Run with no actions launches the browser.
		if err := chromedp.Run(browserCtx); err != nil {
			cancelTab()
			cancelAlloc()
			r.initErr = fmt.Errorf("%w: %w", domain.ErrRenderUnavailable, err)
			return
		}
		r.browserCtx = browserCtx
		r.cancelAlloc = cancelAlloc
		r.cancelTab = cancelTab
	})
	return r.initErr
}

// Render navigates to url and returns the final DOM as HTML.
func (r *ChromeRenderer) Render(ctx context.Context, url string, opts driven.FetchOptions) (*driven.FetchResponse, error) {
	if err := r.start(); err != nil {
		return nil, err
	}

	timeout := r.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	defer cancelTimeout()

	// Propagate caller cancellation into the tab.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(url))
	if err != nil {
		return nil, renderError(url, err)
	}
	status := 200
	if resp != nil {
		status = int(resp.Status)
	}
	if status >= 400 {
		return nil, &domain.FetchError{Kind: domain.FetchStatus, URL: url, StatusCode: status}
	}

	actions := []chromedp.Action{chromedp.WaitReady("body", chromedp.ByQuery)}
	if opts.WaitFor == driven.WaitNetworkIdle {
		actions = append(actions, chromedp.Sleep(networkIdleSettle))
	}
	if opts.WaitForImages {
		actions = append(actions, waitForImages())
	}
	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return nil, renderError(url, err)
	}

	return &driven.FetchResponse{
		URL:         url,
		StatusCode:  status,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(html),
		Rendered:    true,
	}, nil
}

// Close shuts the browser down.
func (r *ChromeRenderer) Close() error {
	if r.cancelTab != nil {
		r.cancelTab()
	}
	if r.cancelAlloc != nil {
		r.cancelAlloc()
	}
	return nil
}

func waitForImages() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		deadline := time.Now().Add(imageWaitLimit)
		for {
			var done bool
			if err := chromedp.Evaluate(imagesComplete, &done).Do(ctx); err != nil {
				return err
			}
			if done || time.Now().After(deadline) {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(200 * time.Millisecond):
			}
		}
	}
}

func renderError(url string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.FetchError{Kind: domain.FetchTimeout, URL: url, Err: err}
	}
	return &domain.FetchError{Kind: domain.FetchNetwork, URL: url, Err: err}
}
