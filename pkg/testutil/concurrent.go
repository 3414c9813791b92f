package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	dErrors "memoledger/pkg/domain-errors"
)

// ConcurrentResult tracks outcomes of concurrent ledger operations by error category.
type ConcurrentResult struct {
	Successes int32
	Conflicts int32
	Limited   int32
	NotFounds int32
	Errors    int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Conflicts + r.Limited + r.NotFounds + r.Errors
}

// RunConcurrent executes fn in n goroutines and buckets the outcomes by domain code.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, conflicts, limited, notFounds, errs atomic.Int32

	for i := range n {
		wg.Go(func() {
			err := fn(i)
			switch {
			case err == nil:
				successes.Add(1)
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts.Add(1)
			case dErrors.HasCode(err, dErrors.CodeLimitExceeded):
				limited.Add(1)
			case dErrors.HasCode(err, dErrors.CodeNotFound):
				notFounds.Add(1)
			default:
				errs.Add(1)
			}
		})
	}
	wg.Wait()

	return &ConcurrentResult{
		Successes: successes.Load(),
		Conflicts: conflicts.Load(),
		Limited:   limited.Load(),
		NotFounds: notFounds.Load(),
		Errors:    errs.Load(),
	}
}

// RunConcurrentCtx is RunConcurrent with a shared context.
func RunConcurrentCtx(ctx context.Context, n int, fn func(ctx context.Context, idx int) error) *ConcurrentResult {
	return RunConcurrent(n, func(idx int) error {
		return fn(ctx, idx)
	})
}

// RunConcurrentCollect executes fn in n goroutines and returns every error.
func RunConcurrentCollect(n int, fn func(idx int) error) (successes int32, errs []error) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok atomic.Int32

	for i := range n {
		wg.Go(func() {
			if err := fn(i); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			ok.Add(1)
		})
	}
	wg.Wait()
	return ok.Load(), errs
}
