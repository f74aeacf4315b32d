// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"maps"

	"go.uber.org/zap"

	"github.com/pulselog/pulselog-go/transport"
)

// UploadUserInfo sends attrs to the service on a detached goroutine,
// bypassing the store and the batcher. Exactly one attempt is made: a
// failure is logged and counted, never retried and never surfaced. While
// offline the call is dropped.
func (e *Engine) UploadUserInfo(attrs map[string]string) {
	snap := e.set.snapshot()
	if snap.offline || !snap.networkUp {
		e.logger.Debug("Skipped user info upload while offline")
		return
	}
	payload := transport.UserInfoPayload{
		DeviceID:   e.deviceID,
		UserID:     e.userID,
		SessionID:  e.sessionID,
		SentAt:     e.clock.Now().UTC(),
		Attributes: maps.Clone(attrs),
	}

	e.sideMu.Lock()
	if e.sideDone {
		e.sideMu.Unlock()
		return
	}
	e.sideWG.Add(1)
	e.sideMu.Unlock()

	go func() {
		defer e.sideWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.attemptTimeout)
		defer cancel()
		if err := e.sender.SendUserInfo(ctx, payload); err != nil {
			e.stats.userInfoFailed.Inc()
			e.logger.Warn("Failed to upload user info", zap.Error(err))
			return
		}
		e.stats.userInfoSent.Inc()
	}()
}
