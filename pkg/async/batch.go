package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
)

// PanicError is returned for a task that panicked
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Batch runs fn for every item on at most workers goroutines and returns
// one error slot per item. A timeout of zero leaves tasks bounded only by
// ctx.
func Batch[T any](ctx context.Context, items []T, workers int, timeout time.Duration, fn func(context.Context, T) error) []error {
	if workers <= 0 {
		workers = 1
	}
	errs := make([]error, len(items))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		g.Go(func() error {
			errs[i] = run(ctx, timeout, item, fn)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func run[T any](ctx context.Context, timeout time.Duration, item T, fn func(context.Context, T) error) (err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx, item)
}
