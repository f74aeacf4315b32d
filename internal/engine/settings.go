// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"time"

	"go.uber.org/atomic"
)

// settings holds the live-mutable runtime configuration. Every field is an
// independent atomic cell; a cell update applies from the next evaluation
// cycle onward. Readers take a point-in-time snapshot per cycle so a
// concurrent update never tears a decision in progress.
type settings struct {
	offline     atomic.Bool
	networkDown atomic.Bool

	uploadBatchSize  atomic.Uint32
	maxPendingEvents atomic.Uint32
	uploadInterval   atomic.Duration
}

func newSettings(offline bool, batchSize, maxPending uint32, interval time.Duration) *settings {
	s := &settings{}
	s.offline.Store(offline)
	s.uploadBatchSize.Store(batchSize)
	s.maxPendingEvents.Store(maxPending)
	s.uploadInterval.Store(interval)
	return s
}

// snapshot is the by-value view of the settings one evaluation cycle runs
// against.
type snapshot struct {
	offline        bool
	networkUp      bool
	batchSize      int
	maxPending     int
	uploadInterval time.Duration
}

func (s *settings) snapshot() snapshot {
	return snapshot{
		offline:        s.offline.Load(),
		networkUp:      !s.networkDown.Load(),
		batchSize:      int(s.uploadBatchSize.Load()),
		maxPending:     int(s.maxPendingEvents.Load()),
		uploadInterval: s.uploadInterval.Load(),
	}
}
