package scrape

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/david/tender-finder/internal/models"
)

const (
	settlePause     = 2 * time.Second
	defaultMaxPages = 10
)

// collectListRows drives one target's listing through pagination and
// returns the accumulated list-row records, at most limit of them.
// A navigation or pagination failure mid-run stops paging but keeps the
// rows gathered so far; only failing to reach the list at all is an
// error, which the orchestrator treats as a skipped target.
func collectListRows(ctx context.Context, driver PageDriver, target Target, cfg PortalConfig, limit int) ([]models.Opportunity, error) {
	if err := driver.Navigate(ctx, target.ListURL); err != nil {
		return nil, err
	}
	if err := driver.Pause(ctx, settlePause); err != nil {
		return nil, err
	}
	if _, err := waitForAnySelector(ctx, driver, cfg.ListWait); err != nil {
		return nil, err
	}

	maxPages := cfg.Pagination.MaxPages
	if maxPages == 0 {
		maxPages = defaultMaxPages
	}

	var rows []models.Opportunity
	seen := make(map[string]bool)
	visitedPages := make(map[string]bool)

	for page := 1; page <= maxPages; page++ {
		if cfg.Pagination.Scroll {
			if err := driver.ScrollToBottom(ctx); err != nil {
				log.Printf("[%s] scroll failed on page %d: %v", target.Key, page, err)
			}
			if err := driver.Pause(ctx, settlePause); err != nil {
				return rows, nil
			}
		}

		html, err := driver.HTML(ctx)
		if err != nil {
			log.Printf("[%s] page read failed on page %d: %v", target.Key, page, err)
			return rows, nil
		}
		pageURL, _ := driver.Location(ctx)

		extracted := extractListRows(html, pageURL, target, cfg)
		if len(extracted) == 0 {
			log.Printf("[%s] page %d: no rows, stopping", target.Key, page)
			return rows, nil
		}

		added := 0
		for _, r := range extracted {
			if seen[r.PortalURL] {
				continue
			}
			seen[r.PortalURL] = true
			rows = append(rows, r)
			added++
			if limit > 0 && len(rows) >= limit {
				return rows, nil
			}
		}
		log.Printf("[%s] page %d: %d rows (%d new)", target.Key, page, len(extracted), added)

		if cfg.Pagination.Mode != "click" || cfg.Pagination.Next == "" {
			return rows, nil
		}

		next := findNextControl(html, cfg.Pagination.Next)
		if !next.present {
			log.Printf("[%s] no next control on page %d", target.Key, page)
			return rows, nil
		}
		if next.disabled {
			log.Printf("[%s] next control disabled on page %d, last page", target.Key, page)
			return rows, nil
		}

		canonPage := CanonicalizeURL(pageURL)
		if visitedPages[canonPage] && added == 0 {
			log.Printf("[%s] pagination cycle detected at %s, stopping", target.Key, canonPage)
			return rows, nil
		}
		visitedPages[canonPage] = true

		// No retry on pagination failures, keep what we have.
		if err := driver.Click(ctx, cfg.Pagination.Next); err != nil {
			log.Printf("[%s] next click failed on page %d: %v", target.Key, page, err)
			return rows, nil
		}
		if err := driver.Pause(ctx, settlePause); err != nil {
			return rows, nil
		}
		if _, err := waitForAnySelector(ctx, driver, cfg.ListWait); err != nil {
			log.Printf("[%s] list never settled after page %d: %v", target.Key, page, err)
			return rows, nil
		}
	}

	return rows, nil
}

type nextControl struct {
	present  bool
	disabled bool
}

// findNextControl inspects the next-page control. A control carrying a
// disabled attribute, aria-disabled="true", or a disabled class counts
// as the last page.
func findNextControl(html, selector string) nextControl {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nextControl{}
	}
	el := doc.Find(selector).First()
	if el.Length() == 0 {
		return nextControl{}
	}

	if _, ok := el.Attr("disabled"); ok {
		return nextControl{present: true, disabled: true}
	}
	if v, ok := el.Attr("aria-disabled"); ok && strings.EqualFold(v, "true") {
		return nextControl{present: true, disabled: true}
	}
	if cls, ok := el.Attr("class"); ok {
		for _, c := range strings.Fields(cls) {
			if strings.EqualFold(c, "disabled") || strings.EqualFold(c, "is-disabled") {
				return nextControl{present: true, disabled: true}
			}
		}
	}
	return nextControl{present: true}
}
