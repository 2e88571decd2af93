package models

// Opportunity is the canonical record emitted for every tender listing.
// All fields are raw portal text; empty string means the portal did not
// expose the field (or extraction missed it).
type Opportunity struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	BuyerOrganization string `json:"agency"`
	Region            string `json:"region"`
	ProjectReference  string `json:"project_reference"`
	CreatedAt         string `json:"created_at"`          // publication date as shown on the portal
	ListingExpiryDate string `json:"listing_expiry_date"` // closing/due date as shown on the portal
	PortalURL         string `json:"portal_url"`
	PortalSource      string `json:"portal_source"`

	// Detail-page enrichment, best effort.
	DetailedDescription string `json:"detailed_description"`
	ContactPerson       string `json:"contact_person"`
	ContactEmail        string `json:"contact_email"`
	ContactPhone        string `json:"contact_phone"`
	ProjectType         string `json:"project_type"`
	AgreementType       string `json:"agreement_type"`
	City                string `json:"city"`

	// HashFingerprint duplicates ID. Downstream consumers still read it.
	HashFingerprint string `json:"hash_fingerprint"`
}

// RunSummary is the completion signal for a scrape run.
type RunSummary struct {
	Source            string `json:"source"`
	ItemsFound        int    `json:"items_found"`
	BatchesSent       int    `json:"batchesSent"`
	TotalBatches      int    `json:"totalBatches"`
	SuccessfulBatches int    `json:"successfulBatches"`
	FailedBatches     int    `json:"failedBatches"`
	Timestamp         string `json:"timestamp"`
	WebhookURL        string `json:"webhookUrl"`
}
