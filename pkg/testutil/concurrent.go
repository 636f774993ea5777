package testutil

import (
	"errors"
	"sync"

	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/sentinel"
)

// Outcomes tallies the results of operations run concurrently.
type Outcomes struct {
	Successes int32
	// ByCode counts failures by domain error code. Store sentinels are
	// counted under the code a service would translate them to.
	ByCode map[dErrors.Code]int32
	// Errors holds every failure in completion order.
	Errors []error
}

// Count returns the failures carrying code.
func (o *Outcomes) Count(code dErrors.Code) int32 {
	return o.ByCode[code]
}

// Total returns the number of operations executed.
func (o *Outcomes) Total() int32 {
	return o.Successes + int32(len(o.Errors))
}

// RunConcurrent starts n goroutines running fn and waits for all of them.
func RunConcurrent(n int, fn func(idx int) error) *Outcomes {
	out := &Outcomes{ByCode: make(map[dErrors.Code]int32)}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i := range n {
		wg.Go(func() {
			err := fn(i)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				out.Successes++
				return
			}
			out.Errors = append(out.Errors, err)
			out.ByCode[codeOf(err)]++
		})
	}
	wg.Wait()
	return out
}

func codeOf(err error) dErrors.Code {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.CodeNotFound
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.CodeConflict
	}
	return dErrors.CodeOf(err)
}
