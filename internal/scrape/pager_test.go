package scrape

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

var pagerConfig = PortalConfig{
	Key:        "pager",
	Label:      "Pager Portal",
	Selectors:  ListSelectorConfig{Row: "table tbody tr", Link: "a"},
	ListWait:   []string{"table"},
	Pagination: PaginationConfig{Mode: "click", Next: "a.next"},
}

var pagerTarget = Target{Key: "pager", Label: "Pager Portal", ListURL: "https://p.example.com/list"}

// listPage renders count rows numbered from start, followed by whatever
// pagination control markup the caller supplies.
func listPage(start, count int, control string) string {
	var b strings.Builder
	b.WriteString("<html><body><table><tbody>")
	for i := 0; i < count; i++ {
		fmt.Fprintf(&b, `<tr><td><a href="/bid/%d">Tender %d</a></td></tr>`, start+i, start+i)
	}
	b.WriteString("</tbody></table>")
	b.WriteString(control)
	b.WriteString("</body></html>")
	return b.String()
}

func TestCollectListRowsDisabledNextStops(t *testing.T) {
	d := newFakeDriver()
	d.pages[pagerTarget.ListURL] = listPage(0, 10, `<a class="next" href="#" aria-disabled="true">Next</a>`)

	rows, err := collectListRows(context.Background(), d, pagerTarget, pagerConfig, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 10 {
		t.Errorf("expected all 10 rows of the last page, got %d", len(rows))
	}
	if len(d.navCalls) != 1 {
		t.Errorf("disabled next must not be followed, nav calls: %v", d.navCalls)
	}
}

func TestCollectListRowsZeroRowsStops(t *testing.T) {
	d := newFakeDriver()
	d.pages[pagerTarget.ListURL] = `<html><body><table><tbody></tbody></table></body></html>`

	rows, err := collectListRows(context.Background(), d, pagerTarget, pagerConfig, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestCollectListRowsHonorsLimit(t *testing.T) {
	d := newFakeDriver()
	d.pages[pagerTarget.ListURL] = listPage(0, 10, `<a class="next" href="#">Next</a>`)

	rows, err := collectListRows(context.Background(), d, pagerTarget, pagerConfig, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 4 {
		t.Errorf("limit 4, got %d rows", len(rows))
	}
}

func TestCollectListRowsPaginates(t *testing.T) {
	page2 := "https://p.example.com/list?page=2"

	d := newFakeDriver()
	d.pages[pagerTarget.ListURL] = listPage(0, 10, `<a class="next" href="#">Next</a>`)
	// Second page repeats record 0 and ends without a next control.
	d.pages[page2] = `<html><body><table><tbody>
<tr><td><a href="/bid/10">Tender 10</a></td></tr>
<tr><td><a href="/bid/11">Tender 11</a></td></tr>
<tr><td><a href="/bid/12">Tender 12</a></td></tr>
<tr><td><a href="/bid/0">Tender 0</a></td></tr>
</tbody></table></body></html>`
	d.next[pagerTarget.ListURL] = page2

	rows, err := collectListRows(context.Background(), d, pagerTarget, pagerConfig, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 10 + 3 new; the repeated record is deduplicated by URL.
	if len(rows) != 13 {
		t.Errorf("expected 13 rows across pages, got %d", len(rows))
	}
}

func TestCollectListRowsClickFailureKeepsRows(t *testing.T) {
	d := newFakeDriver()
	d.pages[pagerTarget.ListURL] = listPage(0, 10, `<a class="next" href="#">Next</a>`)
	// No next page scripted, so the click fails.

	rows, err := collectListRows(context.Background(), d, pagerTarget, pagerConfig, 0)
	if err != nil {
		t.Fatalf("pagination failure must not become an error: %v", err)
	}
	if len(rows) != 10 {
		t.Errorf("expected the accumulated 10 rows, got %d", len(rows))
	}
}

func TestCollectListRowsListUnreachable(t *testing.T) {
	d := newFakeDriver()
	d.failNav[pagerTarget.ListURL] = true

	_, err := collectListRows(context.Background(), d, pagerTarget, pagerConfig, 0)
	if err == nil {
		t.Fatal("expected an error when the list page never loads")
	}
}

func TestCollectListRowsWaitTimesOut(t *testing.T) {
	old := waitTimeout
	waitTimeout = 50 * time.Millisecond
	defer func() { waitTimeout = old }()

	d := newFakeDriver()
	d.pages[pagerTarget.ListURL] = `<html><body><p>still loading</p></body></html>`

	_, err := collectListRows(context.Background(), d, pagerTarget, pagerConfig, 0)
	if err == nil {
		t.Fatal("expected an error when the list container never appears")
	}
}

func TestFindNextControl(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		present  bool
		disabled bool
	}{
		{
			name:    "enabled",
			html:    `<a class="next" href="#">Next</a>`,
			present: true,
		},
		{
			name:     "disabled attribute",
			html:     `<button class="next" disabled>Next</button>`,
			present:  true,
			disabled: true,
		},
		{
			name:     "aria-disabled",
			html:     `<a class="next" aria-disabled="true">Next</a>`,
			present:  true,
			disabled: true,
		},
		{
			name:    "aria-disabled false",
			html:    `<a class="next" aria-disabled="false">Next</a>`,
			present: true,
		},
		{
			name:     "disabled class",
			html:     `<a class="next disabled">Next</a>`,
			present:  true,
			disabled: true,
		},
		{
			name:     "is-disabled class",
			html:     `<a class="next is-disabled">Next</a>`,
			present:  true,
			disabled: true,
		},
		{
			name: "absent",
			html: `<a class="prev">Previous</a>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := findNextControl("<html><body>"+tt.html+"</body></html>", ".next")
			if got.present != tt.present || got.disabled != tt.disabled {
				t.Errorf("got present=%v disabled=%v, want present=%v disabled=%v",
					got.present, got.disabled, tt.present, tt.disabled)
			}
		})
	}
}
