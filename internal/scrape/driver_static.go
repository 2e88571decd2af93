package scrape

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// StaticDriver is a PageDriver for server-rendered portals that need no
// JavaScript. Pages are fetched with colly; "clicking" a control means
// following its href, and scrolling is a no-op since the document is
// already complete.
type StaticDriver struct {
	collector *colly.Collector
	current   string
	html      string
	history   []string
}

func NewStaticDriver() *StaticDriver {
	c := colly.NewCollector(
		colly.UserAgent(browserUserAgent),
		colly.DetectCharset(),
	)
	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       1 * time.Second,
		RandomDelay: 500 * time.Millisecond,
	})
	c.SetRequestTimeout(30 * time.Second)
	c.AllowURLRevisit = true

	return &StaticDriver{collector: c}
}

func (d *StaticDriver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var body string
	var fetchErr error

	clone := d.collector.Clone()
	clone.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
	})
	clone.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := clone.Visit(url); err != nil {
		return err
	}
	clone.Wait()
	if fetchErr != nil {
		return fetchErr
	}
	if body == "" {
		return fmt.Errorf("no response body for %s", url)
	}

	if d.current != "" {
		d.history = append(d.history, d.current)
	}
	d.current = url
	d.html = body
	return nil
}

func (d *StaticDriver) Back(ctx context.Context) error {
	if len(d.history) == 0 {
		return fmt.Errorf("no history to go back to")
	}
	prev := d.history[len(d.history)-1]
	d.history = d.history[:len(d.history)-1]

	if err := d.Navigate(ctx, prev); err != nil {
		return err
	}
	// Navigate pushed the page we just left; drop it again.
	if len(d.history) > 0 {
		d.history = d.history[:len(d.history)-1]
	}
	return nil
}

func (d *StaticDriver) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if d.html == "" {
		return "", fmt.Errorf("no page loaded")
	}
	return d.html, nil
}

// Click follows the href of the matched control.
func (d *StaticDriver) Click(ctx context.Context, selector string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(d.html))
	if err != nil {
		return err
	}
	el := doc.Find(selector).First()
	if el.Length() == 0 {
		return fmt.Errorf("selector %q not found", selector)
	}
	href, ok := el.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return fmt.Errorf("selector %q has no href to follow", selector)
	}
	next := resolveURL(d.current, href)
	if next == "" {
		return fmt.Errorf("could not resolve href %q", href)
	}
	return d.Navigate(ctx, next)
}

func (d *StaticDriver) ScrollToBottom(ctx context.Context) error {
	return ctx.Err()
}

func (d *StaticDriver) Location(ctx context.Context) (string, error) {
	return d.current, ctx.Err()
}

// Pause is capped low; a static document never settles further, so long
// waits only slow the run down.
func (d *StaticDriver) Pause(ctx context.Context, dur time.Duration) error {
	if dur > 100*time.Millisecond {
		dur = 100 * time.Millisecond
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

func (d *StaticDriver) Close() error {
	return nil
}
