package scrape

import (
	"context"
	"time"

	"github.com/david/tender-finder/internal/models"
)

// PageDriver is the capability set the pipeline needs from a rendered page.
// One driver instance is shared by an entire run; it holds a single current
// page, so callers must never interleave navigation across records.
type PageDriver interface {
	// Navigate loads the given URL and waits for the DOM to be ready.
	Navigate(ctx context.Context, url string) error
	// Back returns to the previous page in the driver's history.
	Back(ctx context.Context) error
	// HTML returns the full serialized document of the current page.
	HTML(ctx context.Context) (string, error)
	// Click activates the first element matching the selector.
	Click(ctx context.Context, selector string) error
	// ScrollToBottom triggers lazy-loaded content on infinite-scroll lists.
	ScrollToBottom(ctx context.Context) error
	// Location reports the current page URL.
	Location(ctx context.Context) (string, error)
	// Pause sleeps to let client-rendered content settle.
	Pause(ctx context.Context, d time.Duration) error
	Close() error
}

// SourceDescriptor is an externally supplied {name, url} pair used to
// derive tenant targets for multi-tenant portal families.
type SourceDescriptor struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Target is one site or tenant to crawl. Key doubles as the fingerprint
// salt for everything extracted from the target.
type Target struct {
	Key        string
	Label      string
	ListURL    string
	RegionHint string
}

// Options is the per-run configuration consumed from the job boundary.
type Options struct {
	Source        string
	MaxItems      int // global cap, 0 = unlimited
	Sources       []SourceDescriptor
	WebhookURL    string
	WebhookSecret string
	Headless      bool
	Debug         bool

	// Deadlines. Zero values fall back to the defaults below.
	TargetTimeout time.Duration
	RunTimeout    time.Duration
}

const (
	defaultTargetTimeout = 10 * time.Minute
	defaultRunTimeout    = 45 * time.Minute
)

// Stats counts the outcome of one portal run.
type Stats struct {
	TargetsVisited int
	TargetsFailed  int
	ItemsFound     int
	DetailFailures int
}

// detailFields is the enrichment set extracted from a detail page. Empty
// string is the "not found" sentinel throughout; the merge step depends
// on it.
type detailFields struct {
	ProjectReference    string
	BuyerOrganization   string
	ProjectType         string
	AgreementType       string
	City                string
	Region              string
	CreatedAt           string
	ListingExpiryDate   string
	ContactPerson       string
	ContactEmail        string
	ContactPhone        string
	DetailedDescription string
}

// Result is the aggregated output of an orchestrated run.
type Result struct {
	Items []models.Opportunity
	Stats Stats
}
