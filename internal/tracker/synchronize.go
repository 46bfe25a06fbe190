package tracker

import (
	"context"
	"errors"

	"raffle/internal/logger"
	"raffle/internal/metrics"
	"raffle/internal/oracle"
	"raffle/internal/raffle"
	"raffle/internal/storage"

	"go.uber.org/zap"
)

// Synchronize fulfills one batch of pending requests and returns how many
// were settled (fulfilled or rejected).
func (t *Tracker) Synchronize(ctx context.Context) (int, error) {
	requests, err := t.cfg.Storage.GetPendingRandomnessRequests(ctx, t.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	settledCount := 0
	var errs []error
	for _, request := range requests {
		if err := t.fulfill(ctx, request); err != nil {
			errs = append(errs, err)
			continue
		}
		settledCount++
	}

	return settledCount, errors.Join(errs...)
}

func (t *Tracker) fulfill(ctx context.Context, request *storage.RandomnessRequest) error {
	logger.Debug("tracker: fulfilling request", zap.String("handle", request.Handle))

	seed, err := oracle.DecodeSeed(request.Seed)
	if err != nil {
		return t.reject(ctx, request, err)
	}

	output, err := t.cfg.VRF.Prove(seed)
	if err != nil {
		return t.fail(ctx, request, err)
	}
	if err := oracle.Verify(t.cfg.VRF.PublicKey(), seed, output); err != nil {
		return t.reject(ctx, request, err)
	}

	winner, err := retry(ctx, t.cfg.Clock, t.cfg.MaxAttempts, t.cfg.RetryDelay, func() (uint64, error) {
		return t.cfg.Callback.CallbackChooseWinner(ctx, request.Handle, output.Randomness)
	})

	switch {
	case err == nil:
		logger.Info("tracker: randomness delivered", zap.String("handle", request.Handle), zap.Uint64("winner", winner))
	case errors.Is(err, raffle.ErrWinnerAlreadyChosen):
		logger.Debug("tracker: randomness already delivered", zap.String("handle", request.Handle))
	case raffle.KindOf(err) != raffle.KindUnknown:
		return t.reject(ctx, request, err)
	default:
		return t.fail(ctx, request, err)
	}

	now := t.cfg.Clock.Now()
	request.Status = storage.RequestFulfilled
	request.Randomness = oracle.EncodeRandomness(output.Randomness)
	request.Proof = output.Proof.String()
	request.FulfilledAt = &now
	request.LastError = ""
	if err := t.cfg.Storage.UpdateRandomnessRequest(ctx, request); err != nil {
		return err
	}

	metrics.RandomnessRequestsTotal.WithLabelValues(storage.RequestFulfilled).Inc()
	metrics.RandomnessFulfillmentDuration.Observe(now.Sub(request.CreatedAt).Seconds())
	return nil
}

// reject settles a request that can never be delivered.
func (t *Tracker) reject(ctx context.Context, request *storage.RandomnessRequest, cause error) error {
	logger.Warn("tracker: rejecting request", zap.String("handle", request.Handle), zap.Error(cause))

	request.Status = storage.RequestRejected
	request.LastError = cause.Error()
	if err := t.cfg.Storage.UpdateRandomnessRequest(ctx, request); err != nil {
		return err
	}

	metrics.RandomnessRequestsTotal.WithLabelValues(storage.RequestRejected).Inc()
	return nil
}

// fail records a transient failure; the request stays pending for the next pass.
func (t *Tracker) fail(ctx context.Context, request *storage.RandomnessRequest, cause error) error {
	request.Attempts++
	request.LastError = cause.Error()
	if err := t.cfg.Storage.UpdateRandomnessRequest(ctx, request); err != nil {
		return errors.Join(cause, err)
	}

	metrics.RandomnessRequestsTotal.WithLabelValues("failed").Inc()
	return cause
}
