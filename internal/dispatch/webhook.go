package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/david/tender-finder/internal/models"
)

const (
	// BatchSize is the fixed number of records per webhook POST.
	BatchSize = 10

	interBatchPause = 1 * time.Second
	signatureHeader = "x-apify-signature"
	responseSnippet = 500
	deliveryTimeout = 30 * time.Second
)

// Summary reports how delivery went. It is the only externally visible
// completion signal of a dispatch.
type Summary struct {
	BatchesSent       int `json:"batchesSent"`
	TotalBatches      int `json:"totalBatches"`
	SuccessfulBatches int `json:"successfulBatches"`
	FailedBatches     int `json:"failedBatches"`
}

type payload struct {
	Items        []models.Opportunity `json:"items"`
	Source       string               `json:"source"`
	Timestamp    string               `json:"timestamp"`
	BatchIndex   int                  `json:"batchIndex"`
	TotalBatches int                  `json:"totalBatches"`
}

// Dispatcher delivers scrape results to a webhook sink in fixed-size
// batches. Batches go out sequentially with a pause between them; a
// failed batch is counted and logged, never retried, and never stops
// the remaining batches.
type Dispatcher struct {
	URL    string
	Secret string
	Client *http.Client
}

func New(url, secret string) *Dispatcher {
	return &Dispatcher{
		URL:    url,
		Secret: secret,
		Client: &http.Client{Timeout: deliveryTimeout},
	}
}

// Deliver posts all items in batches. With no sink URL configured it is
// a no-op and returns a zero summary.
func (d *Dispatcher) Deliver(ctx context.Context, items []models.Opportunity, source string) Summary {
	var sum Summary
	if d.URL == "" || len(items) == 0 {
		return sum
	}

	batches := partition(items, BatchSize)
	sum.TotalBatches = len(batches)

	for i, batch := range batches {
		if err := d.send(ctx, batch, source, i, len(batches)); err != nil {
			log.Printf("[dispatch] batch %d/%d failed: %v", i+1, len(batches), err)
			sum.FailedBatches++
		} else {
			log.Printf("[dispatch] batch %d/%d delivered (%d items)", i+1, len(batches), len(batch))
			sum.SuccessfulBatches++
		}
		sum.BatchesSent++

		if i < len(batches)-1 {
			select {
			case <-ctx.Done():
				return sum
			case <-time.After(interBatchPause):
			}
		}
	}

	return sum
}

func (d *Dispatcher) send(ctx context.Context, batch []models.Opportunity, source string, index, total int) error {
	body, err := json.Marshal(payload{
		Items:        batch,
		Source:       source,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		BatchIndex:   index,
		TotalBatches: total,
	})
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.Secret != "" {
		req.Header.Set(signatureHeader, d.Secret)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, responseSnippet))
		return fmt.Errorf("sink returned %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}

// partition splits items into chunks of at most size records.
func partition(items []models.Opportunity, size int) [][]models.Opportunity {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	var out [][]models.Opportunity
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
