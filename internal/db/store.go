package db

import (
	"context"
	"fmt"
	"time"

	"github.com/david/tender-finder/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/microcosm-cc/bluemonday"
)

type Store struct {
	pool      *pgxpool.Pool
	sanitizer *bluemonday.Policy
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:      pool,
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// SaveOpportunities upserts records keyed by fingerprint. A record seen
// again refreshes its fields and last_seen_at; identity never changes.
// Returns the number of rows written.
func (s *Store) SaveOpportunities(ctx context.Context, opps []models.Opportunity) (int, error) {
	saved := 0
	for _, o := range opps {
		if o.ID == "" || o.Title == "" {
			continue
		}

		desc := s.sanitizer.Sanitize(o.DetailedDescription)
		_, err := s.pool.Exec(ctx, `
			INSERT INTO opportunities (
				fingerprint, title, buyer_organization, region, project_reference,
				posted_raw, expiry_raw, portal_url, portal_source,
				detailed_description, contact_person, contact_email, contact_phone,
				project_type, agreement_type, city
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			ON CONFLICT (fingerprint) DO UPDATE SET
				buyer_organization = EXCLUDED.buyer_organization,
				region = EXCLUDED.region,
				posted_raw = EXCLUDED.posted_raw,
				portal_url = EXCLUDED.portal_url,
				detailed_description = EXCLUDED.detailed_description,
				contact_person = EXCLUDED.contact_person,
				contact_email = EXCLUDED.contact_email,
				contact_phone = EXCLUDED.contact_phone,
				project_type = EXCLUDED.project_type,
				agreement_type = EXCLUDED.agreement_type,
				city = EXCLUDED.city,
				last_seen_at = NOW()
		`, o.ID, o.Title, o.BuyerOrganization, o.Region, o.ProjectReference,
			o.CreatedAt, o.ListingExpiryDate, o.PortalURL, o.PortalSource,
			desc, o.ContactPerson, o.ContactEmail, o.ContactPhone,
			o.ProjectType, o.AgreementType, o.City)
		if err != nil {
			return saved, fmt.Errorf("upsert %s: %w", o.ID, err)
		}
		saved++
	}
	return saved, nil
}

type ListParams struct {
	Source string
	Limit  int
	Offset int
}

type ListResult struct {
	Opportunities []models.Opportunity `json:"opportunities"`
	Total         int                  `json:"total"`
	Limit         int                  `json:"limit"`
	Offset        int                  `json:"offset"`
}

const selectCols = `fingerprint, title, buyer_organization, region, project_reference,
	posted_raw, expiry_raw, portal_url, portal_source,
	detailed_description, contact_person, contact_email, contact_phone,
	project_type, agreement_type, city`

func (s *Store) ListOpportunities(ctx context.Context, params ListParams) (*ListResult, error) {
	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1

	if params.Source != "" {
		where += fmt.Sprintf(" AND portal_source = $%d", argIdx)
		args = append(args, params.Source)
		argIdx++
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM opportunities "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	if params.Limit <= 0 {
		params.Limit = 20
	}
	sql := fmt.Sprintf("SELECT %s FROM opportunities %s ORDER BY last_seen_at DESC LIMIT $%d OFFSET $%d",
		selectCols, where, argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	opps := []models.Opportunity{}
	for rows.Next() {
		var o models.Opportunity
		if err := rows.Scan(
			&o.ID, &o.Title, &o.BuyerOrganization, &o.Region, &o.ProjectReference,
			&o.CreatedAt, &o.ListingExpiryDate, &o.PortalURL, &o.PortalSource,
			&o.DetailedDescription, &o.ContactPerson, &o.ContactEmail, &o.ContactPhone,
			&o.ProjectType, &o.AgreementType, &o.City,
		); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		o.HashFingerprint = o.ID
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return &ListResult{
		Opportunities: opps,
		Total:         total,
		Limit:         params.Limit,
		Offset:        params.Offset,
	}, nil
}

// StartRun records a run row in the running state.
func (s *Store) StartRun(ctx context.Context, runID, source, webhookURL string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scrape_runs (run_id, source, webhook_url)
		VALUES ($1, $2, $3)
	`, runID, source, webhookURL)
	return err
}

// CompleteRun stamps the run with its final status and summary counts.
func (s *Store) CompleteRun(ctx context.Context, runID, status string, summary models.RunSummary) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE scrape_runs SET
			status = $2,
			items_found = $3,
			batches_sent = $4,
			total_batches = $5,
			successful_batches = $6,
			failed_batches = $7,
			completed_at = NOW()
		WHERE run_id = $1
	`, runID, status, summary.ItemsFound, summary.BatchesSent,
		summary.TotalBatches, summary.SuccessfulBatches, summary.FailedBatches)
	return err
}

// RunRecord is one row of the scrape_runs report.
type RunRecord struct {
	RunID             string     `json:"run_id"`
	Source            string     `json:"source"`
	Status            string     `json:"status"`
	ItemsFound        int        `json:"items_found"`
	BatchesSent       int        `json:"batches_sent"`
	TotalBatches      int        `json:"total_batches"`
	SuccessfulBatches int        `json:"successful_batches"`
	FailedBatches     int        `json:"failed_batches"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at"`
}

func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, source, status, items_found, batches_sent, total_batches,
		       successful_batches, failed_batches, started_at, completed_at
		FROM scrape_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(
			&r.RunID, &r.Source, &r.Status, &r.ItemsFound, &r.BatchesSent,
			&r.TotalBatches, &r.SuccessfulBatches, &r.FailedBatches,
			&r.StartedAt, &r.CompletedAt,
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
