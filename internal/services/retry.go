package services

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"backend/internal/apperrors"
)

// withReadRetry runs a read, retrying with exponential backoff only while the
// failure classifies as StoreUnavailable. Writes never go through here.
func withReadRetry[T any](ctx context.Context, retries uint64, log *zap.SugaredLogger, read func(context.Context) (T, error)) (T, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 100 * time.Millisecond
	expo.MaxInterval = 2 * time.Second
	expo.MaxElapsedTime = 10 * time.Second

	var result T
	operation := func() error {
		v, err := read(ctx)
		if err != nil {
			err = apperrors.FromStore(err)
			if apperrors.KindOf(err) != apperrors.StoreUnavailable || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		result = v
		return nil
	}

	notify := func(err error, wait time.Duration) {
		log.Warnw("store read failed, retrying", "error", err, "wait", wait)
	}
	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(expo, retries), ctx), notify)
	return result, err
}
