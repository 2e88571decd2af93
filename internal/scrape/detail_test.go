package scrape

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/david/tender-finder/internal/models"
)

var detailRunConfig = PortalConfig{
	Key:          "dt",
	DetailWait:   []string{".detail"},
	LoginMarkers: []string{"sign in to view"},
	Labels: DetailLabelConfig{
		City:    []string{"city"},
		Closing: []string{"closing date"},
	},
}

var detailTarget = Target{Key: "dt", Label: "Detail Portal", ListURL: "https://d.example.com/list"}

const detailURL = "https://d.example.com/bid/1"

func detailFixtureDriver(t *testing.T, detailHTML string) *fakeDriver {
	t.Helper()
	d := newFakeDriver()
	d.pages[detailTarget.ListURL] = `<html><body><table><tbody><tr><td>list</td></tr></tbody></table></body></html>`
	if detailHTML != "" {
		d.pages[detailURL] = detailHTML
	}
	if err := d.Navigate(context.Background(), detailTarget.ListURL); err != nil {
		t.Fatalf("fixture navigation: %v", err)
	}
	return d
}

func TestResolveDetailMergesAndStamps(t *testing.T) {
	d := detailFixtureDriver(t, `<html><body><div class="detail">
<table>
<tr><th>City</th><td>Toronto</td></tr>
<tr><th>Closing Date</th><td>2025-06-01</td></tr>
</table>
<p>Full solicitation details here.</p>
</div></body></html>`)

	row := models.Opportunity{
		Title:            "Road Work",
		ProjectReference: "RFP-9",
		Region:           "Ontario",
		PortalURL:        detailURL,
	}

	got := resolveDetail(context.Background(), d, row, detailTarget, detailRunConfig)

	if got.City != "Toronto" {
		t.Errorf("detail city should win over empty list value, got %q", got.City)
	}
	if got.Region != "Ontario" {
		t.Errorf("list region should survive an empty detail value, got %q", got.Region)
	}
	if got.ListingExpiryDate != "2025-06-01" {
		t.Errorf("expiry = %q", got.ListingExpiryDate)
	}
	if !strings.Contains(got.DetailedDescription, "Full solicitation details") {
		t.Errorf("description = %q", got.DetailedDescription)
	}

	want := RecordFingerprint("Road Work", "RFP-9", "2025-06-01", "dt")
	if got.ID != want || got.HashFingerprint != want {
		t.Errorf("fingerprint = %s / %s, want %s", got.ID, got.HashFingerprint, want)
	}

	if loc, _ := d.Location(context.Background()); loc != detailTarget.ListURL {
		t.Errorf("driver should be back on the list page, at %s", loc)
	}
}

func TestResolveDetailListValueSurvives(t *testing.T) {
	d := detailFixtureDriver(t, `<html><body><div class="detail">
<p>No structured fields on this page.</p>
</div></body></html>`)

	row := models.Opportunity{Title: "Road Work", City: "Vancouver", PortalURL: detailURL}
	got := resolveDetail(context.Background(), d, row, detailTarget, detailRunConfig)

	if got.City != "Vancouver" {
		t.Errorf("city = %q, want the list value retained", got.City)
	}
}

func TestResolveDetailLoginWall(t *testing.T) {
	d := detailFixtureDriver(t, `<html><body><div class="detail">
<p>Please sign in to view this opportunity.</p>
</div></body></html>`)

	row := models.Opportunity{Title: "Guarded Tender", City: "Halifax", PortalURL: detailURL}
	got := resolveDetail(context.Background(), d, row, detailTarget, detailRunConfig)

	if got.DetailedDescription != LoginWallDescription {
		t.Errorf("description = %q, want login sentinel", got.DetailedDescription)
	}
	if got.City != "Halifax" {
		t.Errorf("listing data must survive a login wall, city = %q", got.City)
	}
	if got.ID == "" {
		t.Error("record must still be fingerprinted")
	}
}

func TestResolveDetailNavigationFailure(t *testing.T) {
	d := detailFixtureDriver(t, "")
	d.failNav[detailURL] = true
	d.failBack = true

	row := models.Opportunity{Title: "Unreachable Tender", PortalURL: detailURL}
	got := resolveDetail(context.Background(), d, row, detailTarget, detailRunConfig)

	if got.DetailedDescription != PartialCaptureDescription {
		t.Errorf("description = %q, want partial-capture sentinel", got.DetailedDescription)
	}
	if got.Title != "Unreachable Tender" {
		t.Error("record must never be dropped on detail failure")
	}
	// With history unusable the driver renavigates to the known list URL.
	if last := d.navCalls[len(d.navCalls)-1]; last != detailTarget.ListURL {
		t.Errorf("expected renavigation to the list page, last nav was %s", last)
	}
}

func TestResolveDetailContainerNeverAppears(t *testing.T) {
	old := waitTimeout
	waitTimeout = 50 * time.Millisecond
	defer func() { waitTimeout = old }()

	d := detailFixtureDriver(t, `<html><body><p>spinner</p></body></html>`)

	row := models.Opportunity{Title: "Slow Tender", PortalURL: detailURL}
	got := resolveDetail(context.Background(), d, row, detailTarget, detailRunConfig)

	if got.DetailedDescription != PartialCaptureDescription {
		t.Errorf("description = %q, want partial-capture sentinel", got.DetailedDescription)
	}
}

func TestResolveDetailCancelledContext(t *testing.T) {
	d := detailFixtureDriver(t, `<html><body><div class="detail"><p>Never read.</p></div></body></html>`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	row := models.Opportunity{Title: "Cancelled Tender", PortalURL: detailURL}
	got := resolveDetail(ctx, d, row, detailTarget, detailRunConfig)

	if got.DetailedDescription != PartialCaptureDescription {
		t.Errorf("description = %q, want partial-capture sentinel", got.DetailedDescription)
	}
	// Recovery discipline holds on this path too.
	if d.backCalls != 1 {
		t.Errorf("back calls = %d, want 1", d.backCalls)
	}
	if loc, _ := d.Location(context.Background()); loc != detailTarget.ListURL {
		t.Errorf("driver left on %s, want the list page", loc)
	}
}

func TestResolveDetailNoURL(t *testing.T) {
	d := detailFixtureDriver(t, "")

	row := models.Opportunity{Title: "Listing Only", ListingExpiryDate: "2025-01-01"}
	got := resolveDetail(context.Background(), d, row, detailTarget, detailRunConfig)

	if got.ID != RecordFingerprint("Listing Only", "", "2025-01-01", "dt") {
		t.Errorf("fingerprint = %s", got.ID)
	}
	if len(d.navCalls) != 1 {
		t.Errorf("no detail navigation expected, nav calls: %v", d.navCalls)
	}
}

func TestMergeDetailPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		list   string
		detail string
		want   string
	}{
		{name: "detail wins", list: "Toronto", detail: "Ottawa", want: "Ottawa"},
		{name: "empty detail keeps list", list: "Toronto", detail: "", want: "Toronto"},
		{name: "detail fills blank", list: "", detail: "Ottawa", want: "Ottawa"},
		{name: "both empty", list: "", detail: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeDetail(models.Opportunity{City: tt.list}, detailFields{City: tt.detail})
			if got.City != tt.want {
				t.Errorf("city = %q, want %q", got.City, tt.want)
			}
		})
	}
}
