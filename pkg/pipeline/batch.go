package pipeline

import (
	"context"
	"slices"

	"github.com/pigeonworks-llc/bean-import/pkg/beancount"
	"golang.org/x/sync/errgroup"
)

// Job is one document to import with the pipeline of its profile.
type Job struct {
	Pipeline *Pipeline
	Path     string
}

// RunBatch prepares the documents concurrently, using at most workers
// goroutines, then deduplicates them in input order. Each document is
// compared with existing plus the entries earlier documents emitted that
// were not themselves duplicates. A document that fails is reported in its
// Result and does not stop the batch; only cancellation of ctx does.
func RunBatch(ctx context.Context, jobs []Job, existing []beancount.Directive, workers int) ([]*Result, error) {
	results := make([]*Result, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = job.Pipeline.PrepareFile(job.Path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := slices.Clone(existing)
	for i, res := range results {
		if res.Err != nil {
			jobs[i].Pipeline.logger.Error("Failed to import document", "document", res.Document, "error", res.Err)
			continue
		}
		jobs[i].Pipeline.Deduplicate(res, seen)
		for _, e := range res.Entries {
			if !beancount.IsDuplicate(e) {
				seen = append(seen, e)
			}
		}
	}

	return results, nil
}
