package testutil

import (
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"clinictrack/internal/sentinel"
	dErrors "clinictrack/pkg/domain-errors"
)

// ConcurrentResult buckets the outcomes of a RunConcurrent race.
type ConcurrentResult struct {
	Successes int32
	Conflicts int32
	NotFounds int32
	Errors    int32
}

func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Conflicts + r.NotFounds + r.Errors
}

// lostRace reports errors meaning another caller claimed the resource first.
func lostRace(err error) bool {
	if errors.Is(err, sentinel.ErrAlreadyUsed) || errors.Is(err, sentinel.ErrInvalidState) {
		return true
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeConflict, dErrors.CodeNameTaken, dErrors.CodeLicenseNotRedeemable, dErrors.CodeUserLimitReached:
		return true
	}
	return false
}

// RunConcurrent releases n calls of fn at once and waits for all of them.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	var ok, lost, missing, failed atomic.Int32
	gate := make(chan struct{})

	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			<-gate
			switch err := fn(i); {
			case err == nil:
				ok.Add(1)
			case lostRace(err):
				lost.Add(1)
			case errors.Is(err, sentinel.ErrNotFound), dErrors.HasCode(err, dErrors.CodeNotFound):
				missing.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	close(gate)
	_ = g.Wait()

	return &ConcurrentResult{
		Successes: ok.Load(),
		Conflicts: lost.Load(),
		NotFounds: missing.Load(),
		Errors:    failed.Load(),
	}
}
