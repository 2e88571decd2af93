package scrape

import (
	"context"
	"fmt"
	"time"
)

// fakeDriver is a scripted in-memory PageDriver. Pages are keyed by
// URL; clicking the pagination control follows the next map.
type fakeDriver struct {
	pages    map[string]string
	next     map[string]string // current URL -> URL after clicking next
	failNav  map[string]bool
	failBack bool

	current   string
	history   []string
	navCalls  []string
	backCalls int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		pages:   make(map[string]string),
		next:    make(map[string]string),
		failNav: make(map[string]bool),
	}
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	d.navCalls = append(d.navCalls, url)
	if d.failNav[url] {
		return fmt.Errorf("navigation failed for %s", url)
	}
	if _, ok := d.pages[url]; !ok {
		return fmt.Errorf("no page scripted for %s", url)
	}
	if d.current != "" {
		d.history = append(d.history, d.current)
	}
	d.current = url
	return nil
}

func (d *fakeDriver) Back(ctx context.Context) error {
	d.backCalls++
	if d.failBack {
		return fmt.Errorf("back failed")
	}
	if len(d.history) == 0 {
		return fmt.Errorf("no history")
	}
	d.current = d.history[len(d.history)-1]
	d.history = d.history[:len(d.history)-1]
	return nil
}

func (d *fakeDriver) HTML(ctx context.Context) (string, error) {
	html, ok := d.pages[d.current]
	if !ok {
		return "", fmt.Errorf("no current page")
	}
	return html, nil
}

func (d *fakeDriver) Click(ctx context.Context, selector string) error {
	if nextURL, ok := d.next[d.current]; ok {
		return d.Navigate(ctx, nextURL)
	}
	return fmt.Errorf("nothing scripted for click on %q", selector)
}

func (d *fakeDriver) ScrollToBottom(ctx context.Context) error { return nil }

func (d *fakeDriver) Location(ctx context.Context) (string, error) { return d.current, nil }

func (d *fakeDriver) Pause(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func (d *fakeDriver) Close() error { return nil }
