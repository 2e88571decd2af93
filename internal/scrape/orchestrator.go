package scrape

import (
	"context"
	"log"

	"github.com/david/tender-finder/internal/models"
)

// RunPortal crawls every target of one portal config in sequence,
// sharing a single page driver, and aggregates the extracted records.
// Targets are visited in derivation order; a target that fails to list
// or exceeds its deadline is logged and skipped, never aborting the
// run. The aggregated result never exceeds opts.MaxItems when that cap
// is set.
func RunPortal(ctx context.Context, driver PageDriver, cfg PortalConfig, opts Options) Result {
	runTimeout := opts.RunTimeout
	if runTimeout == 0 {
		runTimeout = defaultRunTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	targets := buildTargets(cfg, opts.Sources)
	budget := perTargetBudget(opts.MaxItems, len(targets))

	var result Result
	for _, target := range targets {
		if opts.MaxItems > 0 && len(result.Items) >= opts.MaxItems {
			break
		}
		if runCtx.Err() != nil {
			log.Printf("[%s] run deadline reached, stopping", cfg.Key)
			break
		}

		log.Printf("[%s] starting target %s (%s)", cfg.Key, target.Key, target.ListURL)
		items, stats := runTarget(runCtx, driver, target, cfg, budget, opts, len(result.Items))
		result.Stats.TargetsVisited++
		result.Stats.DetailFailures += stats.DetailFailures
		if stats.TargetsFailed > 0 {
			result.Stats.TargetsFailed++
		}
		result.Items = append(result.Items, items...)
		result.Stats.ItemsFound = len(result.Items)
	}

	log.Printf("[%s] done: %d items from %d targets (%d failed)",
		cfg.Key, len(result.Items), result.Stats.TargetsVisited, result.Stats.TargetsFailed)
	return result
}

// runTarget lists and enriches a single target under its own deadline.
// alreadyCollected is the global count so far, used to honor the global
// cap mid-target.
func runTarget(ctx context.Context, driver PageDriver, target Target, cfg PortalConfig, budget int, opts Options, alreadyCollected int) ([]models.Opportunity, Stats) {
	var stats Stats

	targetTimeout := opts.TargetTimeout
	if targetTimeout == 0 {
		targetTimeout = defaultTargetTimeout
	}
	tctx, cancel := context.WithTimeout(ctx, targetTimeout)
	defer cancel()

	rows, err := collectListRows(tctx, driver, target, cfg, budget)
	if err != nil {
		log.Printf("[%s] target failed: %v", target.Key, err)
		stats.TargetsFailed++
		return nil, stats
	}

	var items []models.Opportunity
	for _, row := range rows {
		if opts.MaxItems > 0 && alreadyCollected+len(items) >= opts.MaxItems {
			break
		}
		if tctx.Err() != nil {
			log.Printf("[%s] target deadline reached after %d records", target.Key, len(items))
			break
		}
		record := resolveDetail(tctx, driver, row, target, cfg)
		if record.DetailedDescription == PartialCaptureDescription {
			stats.DetailFailures++
		}
		items = append(items, record)
	}

	return items, stats
}
