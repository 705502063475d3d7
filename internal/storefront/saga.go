package storefront

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// step is one action of a saga together with the action that undoes it.
// undo may be nil for steps with nothing to reverse.
type step struct {
	name string
	do   func(ctx context.Context) error
	undo func(ctx context.Context) error
}

// runSaga runs steps in order. When a step fails, the steps that already
// completed are undone in reverse order and every error is returned joined,
// the failing step's first. Compensation runs even if ctx was cancelled.
func runSaga(ctx context.Context, logger *zap.Logger, steps []step) error {
	for i, st := range steps {
		err := st.do(ctx)
		if err == nil {
			continue
		}
		logger.Error("saga step failed", zap.String("step", st.name), zap.Error(err))
		errs := []error{fmt.Errorf("%s: %w", st.name, err)}

		cctx := context.WithoutCancel(ctx)
		for j := i - 1; j >= 0; j-- {
			done := steps[j]
			if done.undo == nil {
				continue
			}
			if uerr := done.undo(cctx); uerr != nil {
				logger.Error("compensation failed", zap.String("step", done.name), zap.Error(uerr))
				errs = append(errs, fmt.Errorf("undo %s: %w", done.name, uerr))
				continue
			}
			logger.Info("step compensated", zap.String("step", done.name))
		}
		return errors.Join(errs...)
	}
	return nil
}
