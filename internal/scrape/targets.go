package scrape

import (
	"net/url"
	"strings"
)

// minTargetBudget keeps small global caps from starving every target of
// a family run.
const minTargetBudget = 5

// buildTargets expands a portal config into the concrete targets to
// crawl. Portals without family domains yield their single static
// target. Family portals derive one target per distinct tenant host
// found in the supplied source descriptors, falling back to the static
// target when no descriptor matches.
func buildTargets(cfg PortalConfig, sources []SourceDescriptor) []Target {
	static := Target{
		Key:        cfg.Key,
		Label:      cfg.Label,
		ListURL:    cfg.ListURL,
		RegionHint: cfg.RegionHint,
	}
	if len(cfg.FamilyDomains) == 0 {
		return []Target{static}
	}

	var targets []Target
	seen := make(map[string]bool)
	for _, s := range sources {
		if s.URL == "" {
			continue
		}
		u, err := url.Parse(s.URL)
		if err != nil || u.Hostname() == "" {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if !matchesFamily(host, cfg.FamilyDomains) {
			continue
		}
		base := u.Scheme + "://" + host
		if seen[base] {
			continue
		}
		seen[base] = true

		targets = append(targets, Target{
			Key:     cfg.Key + "-" + strings.ReplaceAll(host, ".", "-"),
			Label:   host + " - " + cfg.Label,
			ListURL: base + cfg.FamilyPath,
		})
	}

	if len(targets) == 0 {
		return []Target{static}
	}
	return targets
}

func matchesFamily(host string, domains []string) bool {
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// perTargetBudget splits a global item cap across targets with a
// minimum floor per target. Zero means unlimited.
func perTargetBudget(maxItems, targetCount int) int {
	if maxItems <= 0 || targetCount <= 0 {
		return 0
	}
	per := maxItems / targetCount
	if per < minTargetBudget {
		per = minTargetBudget
	}
	return per
}
