// Package runner bounds concurrency across independent tasks. Scales
// within one profiling request stay strictly sequential; only whole tasks
// run side by side, capped by the global sandbox limit.
package runner

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type Job func(ctx context.Context) error

// RunLimited executes jobs with at most maxConcurrent in flight and
// returns every error. A canceled context stops admission; jobs already
// running finish on their own.
func RunLimited(ctx context.Context, maxConcurrent int64, jobs []Job) []error {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	sem := semaphore.NewWeighted(maxConcurrent)

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for _, job := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			defer sem.Release(1)
			if err := j(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(job)
	}
	wg.Wait()
	return errs
}
