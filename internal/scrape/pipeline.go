package scrape

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/david/tender-finder/internal/dispatch"
	"github.com/david/tender-finder/internal/models"
)

// Saver is the optional persistence sink for aggregated records.
type Saver interface {
	SaveOpportunities(ctx context.Context, opps []models.Opportunity) (int, error)
}

// JobResult is everything a finished job hands back to the boundary:
// the records, the delivery summary, and the crawl stats.
type JobResult struct {
	Items   []models.Opportunity
	Summary models.RunSummary
	Stats   Stats
}

// driverFactory builds page drivers for a run. Variable so tests can
// substitute a scripted driver.
var driverFactory = NewDriver

// RunJob executes one scrape job end to end: resolve the source key,
// crawl the portal (or all portals), deliver to the webhook sink, and
// persist when a saver is supplied. An unknown source key is fatal;
// everything downstream degrades instead of failing the job.
func RunJob(ctx context.Context, reg *Registry, opts Options, saver Saver) (*JobResult, error) {
	configs, err := resolveConfigs(reg, opts.Source)
	if err != nil {
		return nil, err
	}

	var (
		items []models.Opportunity
		stats Stats
	)
	drivers := make(map[string]PageDriver)
	defer func() {
		for _, d := range drivers {
			d.Close()
		}
	}()

	for _, cfg := range configs {
		if opts.MaxItems > 0 && len(items) >= opts.MaxItems {
			break
		}

		driver, ok := drivers[cfg.Driver]
		if !ok {
			driver, err = driverFactory(cfg.Driver, opts)
			if err != nil {
				return nil, fmt.Errorf("driver launch failed: %w", err)
			}
			drivers[cfg.Driver] = driver
		}

		portalOpts := opts
		if opts.MaxItems > 0 {
			portalOpts.MaxItems = opts.MaxItems - len(items)
		}

		result := RunPortal(ctx, driver, cfg, portalOpts)
		items = append(items, result.Items...)
		stats.TargetsVisited += result.Stats.TargetsVisited
		stats.TargetsFailed += result.Stats.TargetsFailed
		stats.DetailFailures += result.Stats.DetailFailures
	}
	stats.ItemsFound = len(items)

	delivery := dispatch.New(opts.WebhookURL, opts.WebhookSecret).Deliver(ctx, items, opts.Source)

	if saver != nil && len(items) > 0 {
		saved, err := saver.SaveOpportunities(ctx, items)
		if err != nil {
			log.Printf("[%s] persistence failed after %d rows: %v", opts.Source, saved, err)
		} else {
			log.Printf("[%s] persisted %d records", opts.Source, saved)
		}
	}

	return &JobResult{
		Items: items,
		Stats: stats,
		Summary: models.RunSummary{
			Source:            opts.Source,
			ItemsFound:        len(items),
			BatchesSent:       delivery.BatchesSent,
			TotalBatches:      delivery.TotalBatches,
			SuccessfulBatches: delivery.SuccessfulBatches,
			FailedBatches:     delivery.FailedBatches,
			Timestamp:         time.Now().UTC().Format(time.RFC3339),
			WebhookURL:        opts.WebhookURL,
		},
	}, nil
}

func resolveConfigs(reg *Registry, source string) ([]PortalConfig, error) {
	if source == "all" {
		return reg.Portals, nil
	}
	cfg, err := reg.Get(source)
	if err != nil {
		return nil, err
	}
	return []PortalConfig{cfg}, nil
}
