package scrape

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	navigateTimeout  = 120 * time.Second
	actionTimeout    = 30 * time.Second
)

// BrowserDriver drives a headless Chrome instance. One driver holds one
// page; the pipeline shares it sequentially across targets and records.
type BrowserDriver struct {
	ctx           context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	debug         bool
}

// NewBrowserDriver launches the browser. Launch failure is one of the
// few fatal errors of a run.
func NewBrowserDriver(headless, debug bool) (*BrowserDriver, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(browserUserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Run once with no actions to start the process now.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, err
	}

	return &BrowserDriver{
		ctx:           browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		debug:         debug,
	}, nil
}

// run executes actions against the browser context under a timeout,
// while still honoring cancellation of the caller's context.
func (d *BrowserDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (d *BrowserDriver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, navigateTimeout, chromedp.Navigate(url))
}

func (d *BrowserDriver) Back(ctx context.Context) error {
	return d.run(ctx, navigateTimeout, chromedp.NavigateBack())
}

func (d *BrowserDriver) HTML(ctx context.Context) (string, error) {
	var html string
	err := d.run(ctx, actionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (d *BrowserDriver) Click(ctx context.Context, selector string) error {
	return d.run(ctx, actionTimeout, chromedp.Click(selector, chromedp.ByQuery))
}

func (d *BrowserDriver) ScrollToBottom(ctx context.Context) error {
	return d.run(ctx, actionTimeout,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil))
}

func (d *BrowserDriver) Location(ctx context.Context) (string, error) {
	var url string
	err := d.run(ctx, actionTimeout, chromedp.Location(&url))
	return url, err
}

// Pause sleeps for the given duration, doubled in debug mode so a human
// watching a headed browser can follow the navigation.
func (d *BrowserDriver) Pause(ctx context.Context, dur time.Duration) error {
	if d.debug {
		dur *= 2
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (d *BrowserDriver) Close() error {
	d.browserCancel()
	d.allocCancel()
	return nil
}
