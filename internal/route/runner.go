package route

import (
	"context"
	"log"
	"path/filepath"
	"sync"
)

// Runner fans the per-route pipeline out over raw cache files with a fixed
// worker pool. Route pipelines are independent: a failed route is logged
// and counted, never allowed to abort its siblings.
type Runner struct {
	Processor   *Processor
	Concurrency int
}

// Run processes every raw file and returns the number of routes whose
// processing failed with an unexpected error.
func (r *Runner) Run(ctx context.Context, rawFiles []string) int {
	workers := r.Concurrency
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if err := r.Processor.ProcessRawFile(ctx, path); err != nil {
					log.Printf("Route file %s: %v", filepath.Base(path), err)
					if r.Processor.Metrics != nil {
						r.Processor.Metrics.RoutesFailed.Inc()
					}
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}
		}()
	}

	for _, f := range rawFiles {
		jobs <- f
	}
	close(jobs)
	wg.Wait()

	return failed
}
