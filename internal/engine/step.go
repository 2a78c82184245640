package engine

import (
	"fmt"

	"github.com/vk/cleangrid/internal/errs"
	"github.com/vk/cleangrid/internal/job"
)

// step is the outcome of one call into component code: a value or an
// error, never both.
type step[T any] struct {
	value T
	err   error
}

func (s step[T]) ok() bool { return s.err == nil }

// call runs fn on behalf of c. Errors and panics come back as an execution
// error attributed to the component.
func call[T any](c *job.ComponentJob, op string, fn func() (T, error)) (res step[T]) {
	defer func() {
		if r := recover(); r != nil {
			res = step[T]{err: errs.Execution(c.Name(), op, fmt.Errorf("component panicked: %v", r))}
		}
	}()
	v, err := fn()
	if err != nil {
		return step[T]{err: errs.Execution(c.Name(), op, err)}
	}
	return step[T]{value: v}
}

// invoke is call for functions without a value.
func invoke(c *job.ComponentJob, op string, fn func() error) error {
	return call(c, op, func() (struct{}, error) { return struct{}{}, fn() }).err
}
