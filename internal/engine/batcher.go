// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/quartz"
	"go.uber.org/zap"

	"github.com/pulselog/pulselog-go/transport"
)

const uploadTimerTag = "upload"

type dispatchOutcome int

const (
	// dispatchSkipped: nothing to send, or dispatch is suppressed.
	dispatchSkipped dispatchOutcome = iota
	// dispatchDelivered: the batch was uploaded and committed.
	dispatchDelivered
	// dispatchRecoverable: the batch was released for a later retry.
	dispatchRecoverable
	// dispatchPermanent: the batch was dropped.
	dispatchPermanent
)

// run is the upload loop. It owns every dispatch decision, so at most one
// batch is ever in flight.
//
// Triggers: the store reaching the batch size (wake), the upload interval
// elapsing (timer), an explicit flush, and shutdown. After a recoverable
// failure the loop enters a retry gate: only the escalating timer and
// explicit flushes dispatch until an upload succeeds again.
func (e *Engine) run() {
	defer close(e.doneC)

	snap := e.set.snapshot()

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = snap.uploadInterval
	expo.RandomizationFactor = 0
	expo.Multiplier = 2
	expo.MaxInterval = e.retryMaxInterval
	expo.MaxElapsedTime = 0 // retry for as long as the engine runs
	expo.Reset()

	timer := e.clock.NewTimer(snap.uploadInterval, uploadTimerTag)
	defer timer.Stop()
	retrying := false

	for {
		select {
		case <-e.stopC:
			e.finalFlush()
			return
		case <-e.wakeC:
			snap = e.set.snapshot()
			if retrying || snap.offline || !snap.networkUp || e.store.len() < snap.batchSize {
				continue
			}
			retrying = e.cycle(timer, expo, snap)
		case <-e.flushC:
			snap = e.set.snapshot()
			retrying = e.cycle(timer, expo, snap)
		case <-timer.C:
			snap = e.set.snapshot()
			retrying = e.cycle(timer, expo, snap)
		}
	}
}

// cycle runs one dispatch evaluation and rearms the cadence timer. It
// reports whether the loop is now inside the retry gate.
func (e *Engine) cycle(timer *quartz.Timer, expo *backoff.ExponentialBackOff, snap snapshot) bool {
	outcome := e.dispatch(context.Background(), e.attemptTimeout, snap)
	for outcome == dispatchDelivered && e.store.len() >= snap.batchSize {
		// A full batch accumulated while uploading; keep draining.
		outcome = e.dispatch(context.Background(), e.attemptTimeout, snap)
	}
	switch outcome {
	case dispatchRecoverable:
		delay := expo.NextBackOff()
		e.logger.Debug("Gating the next upload attempt", zap.Duration("delay", delay))
		resetTimer(timer, delay)
		return true
	case dispatchDelivered:
		expo.InitialInterval = snap.uploadInterval
		expo.Reset()
		resetTimer(timer, snap.uploadInterval)
		return false
	default:
		resetTimer(timer, snap.uploadInterval)
		return false
	}
}

// dispatch peeks one batch, uploads it and settles the store according to
// the outcome.
func (e *Engine) dispatch(ctx context.Context, timeout time.Duration, snap snapshot) dispatchOutcome {
	if snap.offline || !snap.networkUp {
		return dispatchSkipped
	}
	batch := e.store.peekBatch(snap.batchSize)
	if len(batch) == 0 {
		return dispatchSkipped
	}
	ids := make([]uint64, len(batch))
	for i, rec := range batch {
		ids[i] = rec.ID
	}
	e.store.markInFlight(ids)
	e.stats.attempts.Inc()

	sctx, cancel := context.WithTimeout(ctx, timeout)
	err := e.sender.SendEvents(sctx, transport.EventsPayload{
		DeviceID:  e.deviceID,
		UserID:    e.userID,
		SessionID: e.sessionID,
		SentAt:    e.clock.Now().UTC(),
		Events:    batch,
	})
	cancel()

	switch {
	case err == nil:
		e.store.commit(context.Background(), ids)
		e.stats.delivered.Add(uint64(len(batch)))
		e.logger.Debug("Uploaded event batch", zap.Int("events", len(batch)))
		return dispatchDelivered
	case transport.IsPermanent(err):
		// Resending can never succeed; dropping the batch keeps the
		// queue moving.
		e.store.commit(context.Background(), ids)
		e.stats.failures.Inc()
		e.stats.dropped.Add(uint64(len(batch)))
		e.logger.Warn("Dropped event batch after permanent delivery failure",
			zap.Int("events", len(batch)), zap.Error(err))
		return dispatchPermanent
	default:
		e.store.release(ids)
		e.stats.failures.Inc()
		e.logger.Warn("Failed to upload event batch, will retry", zap.Error(err))
		return dispatchRecoverable
	}
}

// finalFlush drains as much of the store as the shutdown timeout allows.
func (e *Engine) finalFlush() {
	snap := e.set.snapshot()
	if snap.offline || !snap.networkUp || e.store.len() == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.shutdownTimeout)
	defer cancel()
	for e.store.len() > 0 && ctx.Err() == nil {
		if e.dispatch(ctx, e.shutdownTimeout, snap) != dispatchDelivered {
			return
		}
	}
}

// resetTimer rearms t, draining a fire that already landed in the channel.
func resetTimer(t *quartz.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d, uploadTimerTag)
}
