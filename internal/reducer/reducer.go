// Package reducer combines per-partition analyzer results into one result
// per analyzer.
//
// Reduction relies on each analyzer's reduce function being associative and
// independent of input order: the engine hands partials over in partition
// order, but partitions finish in any order and a reducer must not care.
package reducer

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/cleangrid/internal/descriptor"
	"github.com/vk/cleangrid/internal/errs"
	"golang.org/x/sync/errgroup"
)

// Reduce combines the partial results of one analyzer. A single partial is
// returned unchanged. Several partials require a distributable descriptor.
func Reduce(d *descriptor.Descriptor, partials []descriptor.Result) (descriptor.Result, error) {
	switch len(partials) {
	case 0:
		return nil, errs.Execution(d.Identity(), "reduce", fmt.Errorf("no partial results"))
	case 1:
		return partials[0], nil
	}
	if !d.IsDistributable() {
		return nil, errs.Configuration(d.Identity(), "reduce",
			fmt.Errorf("%w: %d partial results", errs.ErrNotDistributable, len(partials)))
	}
	res, err := safeReduce(d, partials)
	if err != nil {
		return nil, errs.Execution(d.Identity(), "reduce", err)
	}
	return res, nil
}

func safeReduce(d *descriptor.Descriptor, partials []descriptor.Result) (res descriptor.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reducer panicked: %v", r)
		}
	}()
	return d.Reduce(partials)
}

// Input is one analyzer's partials. Key identifies the analyzer to the
// caller and is carried over to the Output.
type Input[K comparable] struct {
	Key        K
	Descriptor *descriptor.Descriptor
	Partials   []descriptor.Result
}

// Output is the reduced result of one Input, or the error reducing it.
type Output struct {
	Result descriptor.Result
	Err    error
}

// ReduceAll reduces every input, running at most limit reductions at once.
// A failed reduction is captured in its Output and does not affect the
// others. The returned error is non-nil only when ctx ends first.
func ReduceAll[K comparable](ctx context.Context, inputs []Input[K], limit int) (map[K]Output, error) {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	var mu sync.Mutex
	out := make(map[K]Output, len(inputs))
	for _, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := Reduce(in.Descriptor, in.Partials)
			mu.Lock()
			out[in.Key] = Output{Result: res, Err: err}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errs.Cancelled("reduce results", err)
	}
	return out, nil
}
