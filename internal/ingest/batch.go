package ingest

import (
	"context"

	"golang.org/x/sync/errgroup"

	"sieve/internal/artifact"
	"sieve/internal/services"
)

// Item is one submission in a batch. Load is called when Data is nil, so
// large batches are not read into memory up front.
type Item struct {
	Source string
	Data   []byte
	Load   func() ([]byte, error)
}

// Outcome is the per-item result of a batch.
type Outcome struct {
	Source string
	Result Result
	Err    error
}

// Batch ingests items with at most jobs in flight. A failing item never
// stops the others; outcomes are returned in input order.
func (o *Orchestrator) Batch(ctx context.Context, items []Item, store artifact.Store, jobs int) []Outcome {
	if jobs <= 0 {
		jobs = 1
	}
	outcomes := make([]Outcome, len(items))

	var g errgroup.Group
	g.SetLimit(jobs)
	for i, item := range items {
		g.Go(func() error {
			outcomes[i] = o.ingestItem(ctx, item, store)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (o *Orchestrator) ingestItem(ctx context.Context, item Item, store artifact.Store) Outcome {
	out := Outcome{Source: item.Source}
	data := item.Data
	if data == nil && item.Load != nil {
		loaded, err := item.Load()
		if err != nil {
			out.Err = services.Wrap(services.ErrInvalidImage, stage, "read", "could not read submission", err)
			return out
		}
		data = loaded
	}
	ctx = services.WithSource(ctx, item.Source)
	out.Result, out.Err = o.Ingest(ctx, data, store)
	return out
}
