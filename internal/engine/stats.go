// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import "go.uber.org/atomic"

// Stats is a point-in-time snapshot of the engine's cumulative counters.
type Stats struct {
	// Enqueued counts records accepted from producers.
	Enqueued uint64
	// Evicted counts records dropped to honor the pending bound.
	Evicted uint64
	// Delivered counts records uploaded and committed.
	Delivered uint64
	// Dropped counts records committed after a permanent delivery failure.
	Dropped uint64
	// Attempts counts batch upload attempts, Failures the failed ones of
	// either class.
	Attempts uint64
	Failures uint64
	// UserInfoSent and UserInfoFailed count side-channel attribute uploads.
	UserInfoSent   uint64
	UserInfoFailed uint64
	// ViewsFetched counts view definitions resolved remotely,
	// ViewsFromCache the ones served by the offline fallback.
	ViewsFetched   uint64
	ViewsFromCache uint64
}

type stats struct {
	enqueued       atomic.Uint64
	evicted        atomic.Uint64
	delivered      atomic.Uint64
	dropped        atomic.Uint64
	attempts       atomic.Uint64
	failures       atomic.Uint64
	userInfoSent   atomic.Uint64
	userInfoFailed atomic.Uint64
	viewsFetched   atomic.Uint64
	viewsFromCache atomic.Uint64
}

func (s *stats) snapshot() Stats {
	return Stats{
		Enqueued:       s.enqueued.Load(),
		Evicted:        s.evicted.Load(),
		Delivered:      s.delivered.Load(),
		Dropped:        s.dropped.Load(),
		Attempts:       s.attempts.Load(),
		Failures:       s.failures.Load(),
		UserInfoSent:   s.userInfoSent.Load(),
		UserInfoFailed: s.userInfoFailed.Load(),
		ViewsFetched:   s.viewsFetched.Load(),
		ViewsFromCache: s.viewsFromCache.Load(),
	}
}
