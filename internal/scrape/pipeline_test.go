package scrape

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/david/tender-finder/internal/models"
)

type fakeSaver struct {
	saved []models.Opportunity
}

func (s *fakeSaver) SaveOpportunities(_ context.Context, opps []models.Opportunity) (int, error) {
	s.saved = append(s.saved, opps...)
	return len(opps), nil
}

func pipelineRegistry() *Registry {
	return &Registry{Portals: []PortalConfig{
		{
			Key:       "portal-one",
			Label:     "Portal One",
			ListURL:   "https://one.example.com/list",
			Driver:    "browser",
			Selectors: ListSelectorConfig{Row: "table tbody tr", Link: "a"},
			ListWait:  []string{"table"},
		},
		{
			Key:       "portal-two",
			Label:     "Portal Two",
			ListURL:   "https://two.example.com/list",
			Driver:    "static",
			Selectors: ListSelectorConfig{Row: "table tbody tr", Link: "a"},
			ListWait:  []string{"table"},
		},
	}}
}

// pipelineDrivers scripts one fake driver per driver kind and installs a
// factory handing them out, restoring the real factory afterwards.
func pipelineDrivers(t *testing.T) (browser, static *fakeDriver) {
	t.Helper()

	browser = newFakeDriver()
	browser.pages["https://one.example.com/list"] = listPage(0, 3, "")
	for _, u := range []string{
		"https://one.example.com/bid/0",
		"https://one.example.com/bid/1",
		"https://one.example.com/bid/2",
	} {
		browser.pages[u] = `<html><body><p>Portal one detail.</p></body></html>`
	}

	static = newFakeDriver()
	static.pages["https://two.example.com/list"] = listPage(0, 3, "")
	for _, u := range []string{
		"https://two.example.com/bid/0",
		"https://two.example.com/bid/1",
		"https://two.example.com/bid/2",
	} {
		static.pages[u] = `<html><body><p>Portal two detail.</p></body></html>`
	}

	byKind := map[string]*fakeDriver{"browser": browser, "static": static}

	old := driverFactory
	driverFactory = func(kind string, _ Options) (PageDriver, error) {
		d, ok := byKind[kind]
		if !ok {
			t.Fatalf("unexpected driver kind %q", kind)
		}
		return d, nil
	}
	t.Cleanup(func() { driverFactory = old })

	return browser, static
}

func TestRunJobUnknownSource(t *testing.T) {
	if _, err := RunJob(context.Background(), pipelineRegistry(), Options{Source: "nope"}, nil); err == nil {
		t.Fatal("unknown source must fail the job")
	}
}

func TestRunJobAllSources(t *testing.T) {
	_, static := pipelineDrivers(t)

	var payloads []map[string]interface{}
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decoding batch: %v", err)
		}
		payloads = append(payloads, p)
		w.WriteHeader(http.StatusOK)
	}))
	defer sink.Close()

	saver := &fakeSaver{}
	opts := Options{Source: "all", MaxItems: 5, WebhookURL: sink.URL}

	result, err := RunJob(context.Background(), pipelineRegistry(), opts, saver)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// Portal one fills 3 of the cap; portal two gets the remaining 2.
	if len(result.Items) != 5 {
		t.Fatalf("expected 5 items across portals, got %d", len(result.Items))
	}
	fromTwo := 0
	for _, item := range result.Items {
		if item.PortalSource == "Portal Two" {
			fromTwo++
		}
	}
	if fromTwo != 2 {
		t.Errorf("second portal contributed %d items, want the residual 2", fromTwo)
	}
	if loc, _ := static.Location(context.Background()); loc == "" {
		t.Error("static driver was never used")
	}

	sum := result.Summary
	if sum.Source != "all" || sum.ItemsFound != 5 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.TotalBatches != 1 || sum.SuccessfulBatches != 1 || sum.BatchesSent != 1 || sum.FailedBatches != 0 {
		t.Errorf("delivery counts = %+v", sum)
	}
	if sum.Timestamp == "" || sum.WebhookURL != sink.URL {
		t.Errorf("summary metadata = %+v", sum)
	}

	if len(payloads) != 1 {
		t.Fatalf("sink received %d batches, want 1", len(payloads))
	}
	if items, ok := payloads[0]["items"].([]interface{}); !ok || len(items) != 5 {
		t.Errorf("batch items = %v", payloads[0]["items"])
	}

	if len(saver.saved) != 5 {
		t.Errorf("saver received %d records, want 5", len(saver.saved))
	}
}

func TestRunJobCapSkipsLaterPortals(t *testing.T) {
	_, static := pipelineDrivers(t)

	result, err := RunJob(context.Background(), pipelineRegistry(), Options{Source: "all", MaxItems: 3}, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(result.Items) != 3 {
		t.Errorf("expected the cap of 3 items, got %d", len(result.Items))
	}
	if len(static.navCalls) != 0 {
		t.Errorf("second portal must be skipped once the cap is filled, nav calls: %v", static.navCalls)
	}
}

func TestRunJobSingleSource(t *testing.T) {
	browser, static := pipelineDrivers(t)

	result, err := RunJob(context.Background(), pipelineRegistry(), Options{Source: "portal-two"}, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(result.Items) != 3 {
		t.Errorf("expected 3 items, got %d", len(result.Items))
	}
	if len(browser.navCalls) != 0 {
		t.Errorf("unselected portal must not be crawled, nav calls: %v", browser.navCalls)
	}
	if len(static.navCalls) == 0 {
		t.Error("selected portal was never crawled")
	}
}
