// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine implements the buffering, scheduling and delivery core
// behind the public client: a durable bounded event store, an upload loop
// batching by count and time, and the user-info and dynamic-view side
// channels.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/pulselog/pulselog-go/event"
	"github.com/pulselog/pulselog-go/storage"
	"github.com/pulselog/pulselog-go/transport"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultUploadBatchSize  = 100
	DefaultMaxPendingEvents = 1000
	DefaultUploadInterval   = 30 * time.Second
	DefaultAttemptTimeout   = 30 * time.Second
	DefaultShutdownTimeout  = 5 * time.Second

	// DefaultRetryCapFactor caps the escalating retry delay at this
	// multiple of the upload interval.
	DefaultRetryCapFactor = 8
)

// Names of the records the engine generates around the session lifecycle.
const (
	sessionBeginEvent = "session_begin"
	sessionEndEvent   = "session_end"
)

var errAlreadyStarted = errors.New("engine already started")

// Config assembles the engine's capabilities and initial settings. Sender
// and Storage are required; Logger and Clock default to a nop logger and the
// real clock.
type Config struct {
	Logger *zap.Logger
	Clock  quartz.Clock

	Sender  transport.Sender
	Storage storage.Client

	// DeviceID and UserID are opaque identity strings stamped onto every
	// payload.
	DeviceID string
	UserID   string

	Offline          bool
	UploadBatchSize  uint32
	MaxPendingEvents uint32
	UploadInterval   time.Duration

	AttemptTimeout   time.Duration
	ShutdownTimeout  time.Duration
	RetryMaxInterval time.Duration

	// TrackSessions makes the engine record session_begin/session_end
	// events around Start and Shutdown.
	TrackSessions bool
}

// Engine owns the event store and the upload loop. Producer methods are safe
// for concurrent use, never block on the network and never surface delivery
// failures.
type Engine struct {
	logger *zap.Logger
	clock  quartz.Clock
	sender transport.Sender
	client storage.Client
	store  *eventStore
	set    *settings
	stats  stats

	deviceID  string
	userID    string
	sessionID string

	attemptTimeout   time.Duration
	shutdownTimeout  time.Duration
	retryMaxInterval time.Duration
	trackSessions    bool

	wakeC  chan struct{}
	flushC chan struct{}
	stopC  chan struct{}
	doneC  chan struct{}

	started  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once

	sideMu   sync.Mutex
	sideDone bool
	sideWG   sync.WaitGroup
}

// New opens the store behind cfg.Storage and assembles an engine. Producer
// calls buffer immediately; nothing dispatches until Start.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Sender == nil {
		return nil, errors.New("engine requires a sender")
	}
	if cfg.Storage == nil {
		return nil, errors.New("engine requires a storage client")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}
	if cfg.UploadBatchSize == 0 {
		cfg.UploadBatchSize = DefaultUploadBatchSize
	}
	if cfg.MaxPendingEvents == 0 {
		cfg.MaxPendingEvents = DefaultMaxPendingEvents
	}
	if cfg.UploadInterval <= 0 {
		cfg.UploadInterval = DefaultUploadInterval
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.RetryMaxInterval <= 0 {
		cfg.RetryMaxInterval = DefaultRetryCapFactor * cfg.UploadInterval
	}

	store, err := openEventStore(ctx, logger, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open event store: %w", err)
	}
	return &Engine{
		logger:           logger,
		clock:            clock,
		sender:           cfg.Sender,
		client:           cfg.Storage,
		store:            store,
		set:              newSettings(cfg.Offline, cfg.UploadBatchSize, cfg.MaxPendingEvents, cfg.UploadInterval),
		deviceID:         cfg.DeviceID,
		userID:           cfg.UserID,
		sessionID:        uuid.NewString(),
		attemptTimeout:   cfg.AttemptTimeout,
		shutdownTimeout:  cfg.ShutdownTimeout,
		retryMaxInterval: cfg.RetryMaxInterval,
		trackSessions:    cfg.TrackSessions,
		wakeC:            make(chan struct{}, 1),
		flushC:           make(chan struct{}, 1),
		stopC:            make(chan struct{}),
		doneC:            make(chan struct{}),
	}, nil
}

// Start launches the upload loop. Records queued before Start become
// eligible for dispatch right away.
func (e *Engine) Start(context.Context) error {
	if e.stopped.Load() {
		return errors.New("engine already shut down")
	}
	if !e.started.CompareAndSwap(false, true) {
		return errAlreadyStarted
	}
	if e.trackSessions {
		e.Enqueue(sessionBeginEvent, event.TypeSession, nil)
	}
	go e.run()
	return nil
}

// Shutdown stops the loop after one final bounded delivery attempt, waits
// for outstanding side-channel uploads and closes the storage client. Repeat
// calls are no-ops.
func (e *Engine) Shutdown(ctx context.Context) error {
	var err error
	e.stopOnce.Do(func() {
		if e.trackSessions && e.started.Load() {
			e.Enqueue(sessionEndEvent, event.TypeSession, nil)
		}
		e.stopped.Store(true)
		if e.started.Load() {
			close(e.stopC)
			<-e.doneC
		}
		e.sideMu.Lock()
		e.sideDone = true
		e.sideMu.Unlock()
		e.sideWG.Wait()
		err = e.client.Close(ctx)
	})
	return err
}

// Enqueue appends one record to the store. Empty names are dropped.
func (e *Engine) Enqueue(name string, typ event.Type, attrs map[string]string) {
	if e.stopped.Load() {
		e.logger.Debug("Dropping event logged after shutdown", zap.String("event", name))
		return
	}
	if name == "" {
		e.logger.Debug("Dropping event without a name")
		return
	}
	snap := e.set.snapshot()
	rec := event.New(name, typ, e.clock.Now().UTC(), attrs)
	_, evicted := e.store.enqueue(context.Background(), rec, snap.maxPending)
	e.stats.enqueued.Inc()
	if evicted > 0 {
		e.stats.evicted.Add(uint64(evicted))
		e.logger.Debug("Evicted oldest events to keep the pending bound", zap.Int("count", evicted))
	}
	e.wake()
}

func (e *Engine) wake() {
	select {
	case e.wakeC <- struct{}{}:
	default:
	}
}

// Flush requests an immediate dispatch attempt regardless of thresholds and
// retry gating. It returns without waiting for the attempt; offline mode
// still applies.
func (e *Engine) Flush() {
	select {
	case e.flushC <- struct{}{}:
	default:
	}
}

// SetOffline toggles offline mode. While offline the engine keeps queueing
// but never dispatches.
func (e *Engine) SetOffline(offline bool) { e.set.offline.Store(offline) }

// Offline reports whether offline mode is on.
func (e *Engine) Offline() bool { return e.set.offline.Load() }

// SetNetworkAvailable records the reachability signal. A transition back to
// available triggers an immediate dispatch attempt.
func (e *Engine) SetNetworkAvailable(available bool) {
	wasDown := e.set.networkDown.Swap(!available)
	if available && wasDown {
		e.Flush()
	}
}

// NetworkAvailable reports the last recorded reachability signal.
func (e *Engine) NetworkAvailable() bool { return !e.set.networkDown.Load() }

// SetUploadBatchSize changes the count trigger. Zero is ignored.
func (e *Engine) SetUploadBatchSize(n uint32) {
	if n == 0 {
		return
	}
	e.set.uploadBatchSize.Store(n)
	e.wake()
}

// UploadBatchSize returns the current count trigger.
func (e *Engine) UploadBatchSize() uint32 { return e.set.uploadBatchSize.Load() }

// SetMaxPendingEvents changes the store bound. Zero is ignored; a lowered
// bound takes effect at the next enqueue.
func (e *Engine) SetMaxPendingEvents(n uint32) {
	if n == 0 {
		return
	}
	e.set.maxPendingEvents.Store(n)
}

// MaxPendingEvents returns the current store bound.
func (e *Engine) MaxPendingEvents() uint32 { return e.set.maxPendingEvents.Load() }

// SetUploadInterval changes the time trigger for the cycles after the
// current one. Non-positive values are ignored.
func (e *Engine) SetUploadInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	e.set.uploadInterval.Store(d)
}

// UploadInterval returns the current time trigger.
func (e *Engine) UploadInterval() time.Duration { return e.set.uploadInterval.Load() }

// Pending reports the number of buffered records, in flight included.
func (e *Engine) Pending() int { return e.store.len() }

// SessionID returns the id minted for this engine instance.
func (e *Engine) SessionID() string { return e.sessionID }

// Stats returns a snapshot of the cumulative counters.
func (e *Engine) Stats() Stats { return e.stats.snapshot() }
