package scrape

import (
	"context"
	"log"
	"time"

	"github.com/david/tender-finder/internal/models"
)

// Descriptions substituted when detail enrichment cannot run. Consumers
// match on these strings, so they are part of the output contract.
const (
	LoginWallDescription      = "Login required to view full details."
	PartialCaptureDescription = "Partial metadata captured from listing."
)

// resolveDetail attempts exactly one detail-page visit for a list row
// and always returns exactly one record. Detail failure degrades the
// record (sentinel description, list fields intact) but never drops it.
// After a failure the driver is returned to the list page so the next
// record starts from known navigation state.
func resolveDetail(ctx context.Context, driver PageDriver, row models.Opportunity, target Target, cfg PortalConfig) models.Opportunity {
	if row.PortalURL == "" {
		return finalize(row, target)
	}

	if err := driver.Navigate(ctx, row.PortalURL); err != nil {
		log.Printf("[%s] detail navigation failed for %s: %v", target.Key, row.PortalURL, err)
		row.DetailedDescription = PartialCaptureDescription
		recoverToList(ctx, driver, target)
		return finalize(row, target)
	}
	if err := driver.Pause(ctx, 1500*time.Millisecond); err != nil {
		row.DetailedDescription = PartialCaptureDescription
		recoverToList(ctx, driver, target)
		return finalize(row, target)
	}

	html, err := waitForAnySelector(ctx, driver, cfg.DetailWait)
	if err != nil {
		log.Printf("[%s] detail container never appeared for %s: %v", target.Key, row.PortalURL, err)
		row.DetailedDescription = PartialCaptureDescription
		recoverToList(ctx, driver, target)
		return finalize(row, target)
	}

	if hasLoginWall(html, cfg.LoginMarkers) {
		log.Printf("[%s] login wall at %s, keeping listing data", target.Key, row.PortalURL)
		row.DetailedDescription = LoginWallDescription
		recoverToList(ctx, driver, target)
		return finalize(row, target)
	}

	merged := mergeDetail(row, extractDetail(html, cfg))
	recoverToList(ctx, driver, target)
	return finalize(merged, target)
}

// mergeDetail applies the uniform precedence rule: a non-empty
// detail-phase value wins, otherwise the list-phase value is retained.
func mergeDetail(row models.Opportunity, d detailFields) models.Opportunity {
	row.ProjectReference = pickNonEmpty(d.ProjectReference, row.ProjectReference)
	row.BuyerOrganization = pickNonEmpty(d.BuyerOrganization, row.BuyerOrganization)
	row.Region = pickNonEmpty(d.Region, row.Region)
	row.CreatedAt = pickNonEmpty(d.CreatedAt, row.CreatedAt)
	row.ListingExpiryDate = pickNonEmpty(d.ListingExpiryDate, row.ListingExpiryDate)
	row.ProjectType = pickNonEmpty(d.ProjectType, row.ProjectType)
	row.AgreementType = pickNonEmpty(d.AgreementType, row.AgreementType)
	row.City = pickNonEmpty(d.City, row.City)
	row.ContactPerson = pickNonEmpty(d.ContactPerson, row.ContactPerson)
	row.ContactEmail = pickNonEmpty(d.ContactEmail, row.ContactEmail)
	row.ContactPhone = pickNonEmpty(d.ContactPhone, row.ContactPhone)
	row.DetailedDescription = pickNonEmpty(d.DetailedDescription, row.DetailedDescription)
	return row
}

// finalize stamps the record's content fingerprint. The target key salts
// the hash so identical listings on different portals stay distinct.
func finalize(row models.Opportunity, target Target) models.Opportunity {
	fp := RecordFingerprint(row.Title, row.ProjectReference, row.ListingExpiryDate, target.Key)
	row.ID = fp
	row.HashFingerprint = fp
	return row
}

// recoverToList returns the shared driver to the target's list page.
// Go back first; if history is unusable, renavigate to the known URL.
func recoverToList(ctx context.Context, driver PageDriver, target Target) {
	if err := driver.Back(ctx); err == nil {
		return
	}
	if err := driver.Navigate(ctx, target.ListURL); err != nil {
		log.Printf("[%s] could not return to list page: %v", target.Key, err)
	}
}
