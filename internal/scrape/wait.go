package scrape

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const waitPollInterval = 400 * time.Millisecond

// waitTimeout bounds selector polling. Variable so tests can shrink it.
var waitTimeout = 60 * time.Second

// waitForAnySelector polls the current page until one of the selectors
// matches, returning the page HTML at the moment of the match. Client
// rendered portals can take a while to paint their list tables, so this
// is bounded by waitTimeout rather than a single snapshot.
func waitForAnySelector(ctx context.Context, driver PageDriver, selectors []string) (string, error) {
	if len(selectors) == 0 {
		return driver.HTML(ctx)
	}

	deadline := time.Now().Add(waitTimeout)
	for {
		html, err := driver.HTML(ctx)
		if err != nil {
			return "", err
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err == nil {
			for _, sel := range selectors {
				if doc.Find(sel).Length() > 0 {
					return html, nil
				}
			}
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("no expected selectors: %s", strings.Join(selectors, ", "))
		}
		if err := driver.Pause(ctx, waitPollInterval); err != nil {
			return "", err
		}
	}
}

// hasLoginWall reports whether the page text contains one of the
// configured authentication-wall markers.
func hasLoginWall(html string, markers []string) bool {
	if len(markers) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	text := strings.ToLower(doc.Text())
	for _, m := range markers {
		if strings.Contains(text, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
