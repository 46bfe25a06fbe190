package tracker

import (
	"context"
	"errors"
	"time"

	"raffle/internal/logger"
	"raffle/internal/oracle"
	"raffle/internal/raffle"
	"raffle/internal/storage"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Callback is the program entry point that receives verified randomness.
type Callback interface {
	CallbackChooseWinner(ctx context.Context, handle string, randomness [32]byte) (uint64, error)
}

type Config struct {
	Storage     storage.Storage
	VRF         *oracle.VRF
	Callback    Callback
	Clock       clockwork.Clock
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	RetryDelay  time.Duration
}

func (c *Config) Validate() error {
	if c.Storage == nil {
		return errors.New("storage is required")
	}
	if c.VRF == nil {
		return errors.New("vrf is required")
	}
	if c.Callback == nil {
		return errors.New("callback is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	return nil
}

// Tracker delivers pending randomness requests to the program. It plays the
// oracle's side of the commit/reveal protocol.
type Tracker struct {
	cfg Config
}

func NewTracker(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{cfg: cfg}, nil
}

type Func[T any] func() (T, error)

// retry calls fn until it succeeds, fails with a program error, or attempts run out.
func retry[T any](ctx context.Context, clock clockwork.Clock, attempts int, delay time.Duration, fn Func[T]) (T, error) {
	var result T
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = fn()
		if err == nil || raffle.KindOf(err) != raffle.KindUnknown || attempt == attempts {
			return result, err
		}

		logger.Warn("tracker: transient failure, retrying", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-clock.After(delay):
		}
	}
	return result, err
}

// Run synchronizes until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	logger.Info("tracker started", zap.Duration("interval", t.cfg.Interval), zap.String("oracle", t.cfg.VRF.PublicKey().String()))

	ticker := t.cfg.Clock.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := t.Synchronize(ctx); err != nil && ctx.Err() == nil {
			logger.Error("tracker: synchronization failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			t.Finalize()
			return nil
		case <-ticker.Chan():
		}
	}
}

func (t *Tracker) Finalize() {
	logger.Info("tracker stopped")
}
