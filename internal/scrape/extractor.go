package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/david/tender-finder/internal/models"
)

const maxDescriptionLen = 4000

// extractListRows pulls partial Opportunity records out of a rendered
// list page. Rows with no resolvable link or no title are skipped, and
// a second row resolving to an already-seen URL is dropped (portals
// often render a data row and an action row that share an anchor).
// A nil/empty result is the "no rows found" sentinel, not an error.
func extractListRows(html, pageURL string, target Target, cfg PortalConfig) []models.Opportunity {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	sel := cfg.Selectors
	var rows []models.Opportunity
	seen := make(map[string]bool)

	doc.Find(sel.Row).Each(func(_ int, row *goquery.Selection) {
		link := row
		if sel.Link != "" && sel.Link != "." {
			link = row.Find(sel.Link).First()
		}
		href, _ := link.Attr("href")
		detailURL := resolveURL(pageURL, href)
		if detailURL == "" {
			return
		}
		if seen[detailURL] {
			return
		}
		seen[detailURL] = true

		title := firstNonEmpty(cellText(row, sel.Title), cleanText(link.Text()))
		if title == "" {
			return
		}

		region := cellText(row, sel.Region)
		if region == "" {
			region = cfg.RegionHint
		}
		if region == "" {
			region = target.RegionHint
		}

		rows = append(rows, models.Opportunity{
			Title:             title,
			BuyerOrganization: cellText(row, sel.Agency),
			Region:            region,
			ProjectReference:  cellText(row, sel.Reference),
			CreatedAt:         cellText(row, sel.Posted),
			ListingExpiryDate: cellText(row, sel.Closing),
			PortalURL:         detailURL,
			PortalSource:      target.Label,
		})
	})

	return rows
}

func cellText(row *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return cleanText(row.Find(selector).First().Text())
}

// extractDetail reads the enrichment field set from a rendered detail
// page. Every lookup is optional; a miss leaves the field empty.
func extractDetail(html string, cfg PortalConfig) detailFields {
	var d detailFields
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return d
	}

	labels := cfg.Labels
	d.ProjectReference = lookupByLabel(doc, labels.Reference)
	d.BuyerOrganization = lookupByLabel(doc, labels.Buyer)
	d.ProjectType = lookupByLabel(doc, labels.ProjectType)
	d.AgreementType = lookupByLabel(doc, labels.AgreementType)
	d.City = lookupByLabel(doc, labels.City)
	d.Region = lookupByLabel(doc, labels.Region)
	d.CreatedAt = lookupByLabel(doc, labels.Posted)
	d.ListingExpiryDate = lookupByLabel(doc, labels.Closing)

	text := pageText(doc, cfg.DetailWait)
	contact := scanContact(text)
	d.ContactPerson = contact.Person
	d.ContactEmail = contact.Email
	d.ContactPhone = contact.Phone

	d.DetailedDescription = truncate(strings.TrimSpace(text), maxDescriptionLen)

	return d
}

// lookupByLabel finds the value whose label matches one of the
// candidates, case-insensitively. Structural priority: table row, then
// label/value pair divs, then an adjacent-sibling fallback. The first
// structural match wins.
func lookupByLabel(doc *goquery.Document, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}

	wanted := make([]string, 0, len(candidates))
	for _, c := range candidates {
		wanted = append(wanted, strings.ToLower(strings.TrimSpace(c)))
	}

	matches := func(label string) bool {
		label = strings.ToLower(cleanText(label))
		if label == "" {
			return false
		}
		for _, w := range wanted {
			if strings.Contains(label, w) {
				return true
			}
		}
		return false
	}

	// 1. Table rows: th (or first cell) as label, last cell as value.
	found := ""
	doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		label := row.Find("th").First()
		if label.Length() == 0 {
			label = row.Children().First()
		}
		value := row.Find("td").Last()
		if value.Length() == 0 {
			value = row.Children().Last()
		}
		if !matches(label.Text()) {
			return true
		}
		v := cleanText(value.Text())
		if v == "" || v == cleanText(label.Text()) {
			return true
		}
		found = v
		return false
	})
	if found != "" {
		return found
	}

	// 2. Label/value pair containers.
	doc.Find(".field-row, .form-group, dl").EachWithBreak(func(_ int, pair *goquery.Selection) bool {
		label := pair.Find(".label, dt, label").First()
		value := pair.Find(".value, dd").First()
		if label.Length() == 0 || value.Length() == 0 {
			return true
		}
		if !matches(label.Text()) {
			return true
		}
		v := cleanText(value.Text())
		if v == "" {
			return true
		}
		found = v
		return false
	})
	if found != "" {
		return found
	}

	// 3. Adjacent sibling: any leaf element whose own text is the label.
	doc.Find("span, strong, b, label, div").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if el.Children().Length() > 0 {
			return true
		}
		if !matches(el.Text()) {
			return true
		}
		v := cleanText(el.Next().Text())
		if v == "" {
			return true
		}
		found = v
		return false
	})

	return found
}

// pageText joins the text of the first matching content container, or
// the whole body when none of the configured containers match.
func pageText(doc *goquery.Document, containers []string) string {
	for _, sel := range containers {
		s := doc.Find(sel)
		if s.Length() > 0 {
			if t := strings.TrimSpace(blockText(s)); t != "" {
				return t
			}
		}
	}
	return strings.TrimSpace(blockText(doc.Find("body")))
}

// blockText renders selection text with newlines between block elements
// so the contact line heuristics can work on individual lines.
func blockText(s *goquery.Selection) string {
	var b strings.Builder
	s.Find("p, div, li, td, th, h1, h2, h3, h4, br").Each(func(_ int, el *goquery.Selection) {
		if el.Children().Length() > 0 {
			return
		}
		t := strings.TrimSpace(el.Text())
		if t != "" {
			b.WriteString(t)
			b.WriteString("\n")
		}
	})
	if b.Len() == 0 {
		return s.Text()
	}
	return b.String()
}
