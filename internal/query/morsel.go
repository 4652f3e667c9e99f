package query

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
)

// morsel is a half-open range of work units: dictionary positions or rows.
type morsel struct {
	lo, hi int
}

// split cuts [0, n) into morsels so that each holds at least grain units
// according to weight. A nil weight counts every unit as one.
func split(n, grain int, weight func(i int) int) []morsel {
	var out []morsel
	start, acc := 0, 0
	for i := 0; i < n; i++ {
		if weight == nil {
			acc++
		} else {
			acc += weight(i)
		}
		if acc >= grain {
			out = append(out, morsel{start, i + 1})
			start, acc = i+1, 0
		}
	}
	if start < n {
		out = append(out, morsel{start, n})
	}
	return out
}

// run processes every morsel on the worker pool and blocks until all are
// done. fn receives the morsel's position in ms so it can write a private
// partial result; merging is left to the caller.
func (e *Executor) run(ctx context.Context, ms []morsel, fn func(slot int, m morsel)) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	fail := func(err error) {
		mu.Lock()
		errs = multierr.Append(errs, err)
		mu.Unlock()
	}
	for slot, m := range ms {
		if err := ctx.Err(); err != nil {
			fail(err)
			break
		}
		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					fail(fmt.Errorf("morsel %d: panic: %v", slot, r))
				}
			}()
			fn(slot, m)
		})
		if err != nil {
			wg.Done()
			fail(err)
			break
		}
	}
	wg.Wait()
	return errs
}
