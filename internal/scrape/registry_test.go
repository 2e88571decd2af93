package scrape

import "testing"

func loadTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := LoadRegistry("config/portals.yaml")
	if err != nil {
		t.Fatalf("loading embedded registry: %v", err)
	}
	return reg
}

func TestLoadRegistry(t *testing.T) {
	reg := loadTestRegistry(t)

	wantKeys := []string{
		"ontario-tenders", "merx", "sam-gov", "bc-bid", "canadabuys",
		"alberta-purchasing", "bids-and-tenders", "ionwave",
		"public-purchase", "biddingo",
	}
	keys := reg.Keys()
	if len(keys) != len(wantKeys) {
		t.Fatalf("expected %d portals, got %d: %v", len(wantKeys), len(keys), keys)
	}
	for i, want := range wantKeys {
		if keys[i] != want {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want)
		}
	}
}

func TestRegistryConfigsComplete(t *testing.T) {
	reg := loadTestRegistry(t)

	for _, p := range reg.Portals {
		if p.Label == "" || p.ListURL == "" {
			t.Errorf("[%s] missing label or list_url", p.Key)
		}
		if p.Driver != "browser" && p.Driver != "static" {
			t.Errorf("[%s] unexpected driver %q", p.Key, p.Driver)
		}
		if p.Selectors.Row == "" {
			t.Errorf("[%s] missing row selector", p.Key)
		}
		if len(p.ListWait) == 0 {
			t.Errorf("[%s] missing list_wait", p.Key)
		}
		if len(p.FamilyDomains) > 0 && p.FamilyPath == "" {
			t.Errorf("[%s] family portal without family_path", p.Key)
		}
		if p.Pagination.Mode == "click" && p.Pagination.Next == "" {
			t.Errorf("[%s] click pagination without next selector", p.Key)
		}
	}
}

func TestRegistryGet(t *testing.T) {
	reg := loadTestRegistry(t)

	cfg, err := reg.Get("merx")
	if err != nil {
		t.Fatalf("known key: %v", err)
	}
	if cfg.Label != "Merx" {
		t.Errorf("label = %q", cfg.Label)
	}

	if _, err := reg.Get("nope"); err == nil {
		t.Error("unknown key must return an error")
	}
}
