package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/david/tender-finder/internal/db"
	"github.com/jedib0t/go-pretty/v6/table"
)

func main() {
	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := db.NewStore(pool)
	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Source", "Status", "Items", "Batches OK", "Batches Failed", "Duration", "Started At"})

	for _, r := range runs {
		duration := "Running..."
		if r.CompletedAt != nil {
			duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		t.AppendRow(table.Row{
			r.Source, r.Status, r.ItemsFound,
			r.SuccessfulBatches, r.FailedBatches,
			duration, r.StartedAt.Format("15:04:05"),
		})
	}
	t.Render()
}
