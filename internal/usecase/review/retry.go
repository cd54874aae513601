package review

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"apiview/internal/bootstrap/logging"
	domainreview "apiview/internal/domain/review"
)

// withConflictRetry runs fn in a transaction and re-runs the whole
// read-modify-write cycle when the final write hits a storage conflict.
// fn must re-read everything it modifies.
func (s *Service) withConflictRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.review"), slog.String("op", op))

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.opts.ConflictBackoff
	policy.MaxInterval = 20 * s.opts.ConflictBackoff

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := s.uow.WithTx(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, domainreview.ErrStorageConflict) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(s.opts.MaxConflictRetries+1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logging.Warn(logCtx, "storage conflict, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.String("err", err.Error()),
			)
		}),
	)
	return err
}
