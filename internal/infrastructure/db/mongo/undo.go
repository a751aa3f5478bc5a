package mongo

import (
	"context"
	"errors"
)

// undoLog records compensating actions for writes made in a unit of work.
type undoLog struct {
	steps []func(ctx context.Context) error
}

func (u *undoLog) push(step func(ctx context.Context) error) {
	u.steps = append(u.steps, step)
}

// run applies the steps newest first and reports every failure.
func (u *undoLog) run(ctx context.Context) error {
	var errs []error
	for i := len(u.steps) - 1; i >= 0; i-- {
		if err := u.steps[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	u.steps = nil
	return errors.Join(errs...)
}
