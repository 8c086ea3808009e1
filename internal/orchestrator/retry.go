package orchestrator

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	errx "github.com/spanishfactoria/textocorrector/internal/core/error"
	"github.com/spanishfactoria/textocorrector/internal/model"
	logx "github.com/spanishfactoria/textocorrector/pkg/logger"
)

// withRetry runs op with exponential backoff. Only failures whose kind is
// retriable are attempted again; everything else propagates immediately.
// The attempt number is passed so callers can degrade between attempts.
func withRetry(ctx context.Context, cfg model.RetryConfig, op func(ctx context.Context, attempt int) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 1
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 60
	}

	backoff := retry.NewExponential(time.Duration(cfg.BaseDelay * float64(time.Second)))
	backoff = retry.WithCappedDuration(time.Duration(cfg.MaxDelay*float64(time.Second)), backoff)
	backoff = retry.WithMaxRetries(uint64(cfg.MaxAttempts-1), backoff)

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		kind := errx.KindOf(err)
		if !kind.Retriable() {
			return err
		}
		logx.Warn().
			Err(err).
			Int("attempt", attempt).
			Str("kind", string(kind)).
			Msg("attempt failed, will retry")
		return retry.RetryableError(err)
	})
}
