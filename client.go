// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

package pulselog

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/pulselog/pulselog-go/event"
	"github.com/pulselog/pulselog-go/internal/engine"
	"github.com/pulselog/pulselog-go/storage"
	"github.com/pulselog/pulselog-go/transport"
)

// ErrInvalidCredential is returned by New when the API key is empty or
// malformed. It is the only error the client ever hands back for a logging
// problem; everything after construction is fire-and-forget.
var ErrInvalidCredential = errors.New("invalid API key")

// Stats is a snapshot of the client's cumulative counters.
type Stats = engine.Stats

// Client is the embedder-facing handle: a thin pass-through to the delivery
// engine. All methods are safe for concurrent use, and none of the logging
// methods ever blocks on the network or returns an error.
type Client struct {
	logger *zap.Logger
	eng    *engine.Engine
}

// New builds a client from cfg. The event store opens and replays here, so
// events logged right away are buffered durably even though nothing is sent
// until Start.
func New(cfg Config) (*Client, error) {
	if err := validateAPIKey(cfg.APIKey); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sender, err := transport.NewHTTPSender(cfg.httpConfig(), cfg.APIKey)
	if err != nil {
		return nil, err
	}
	client, err := openStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	eng, err := engine.New(context.Background(), engine.Config{
		Logger:           logger.Named("engine"),
		Sender:           sender,
		Storage:          client,
		DeviceID:         cfg.DeviceID,
		UserID:           cfg.UserID,
		Offline:          cfg.Offline,
		UploadBatchSize:  cfg.UploadBatchSize,
		MaxPendingEvents: cfg.MaxPendingEvents,
		UploadInterval:   cfg.UploadInterval,
		AttemptTimeout:   cfg.RequestTimeout,
		ShutdownTimeout:  cfg.ShutdownTimeout,
		RetryMaxInterval: cfg.RetryMaxInterval,
		TrackSessions:    cfg.TrackSessions,
	})
	if err != nil {
		return nil, multierr.Append(err, client.Close(context.Background()))
	}
	return &Client{logger: logger, eng: eng}, nil
}

func validateAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key is empty", ErrInvalidCredential)
	}
	for _, r := range key {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: key contains whitespace or control characters", ErrInvalidCredential)
		}
	}
	return nil
}

func openStorage(cfg Config) (storage.Client, error) {
	if cfg.Storage.Directory == "" {
		return storage.NewMemoryClient(), nil
	}
	return storage.NewJournalClient(cfg.Storage)
}

// Start launches background delivery. Events logged before Start become
// eligible for upload as soon as it runs.
func (c *Client) Start(ctx context.Context) error { return c.eng.Start(ctx) }

// Shutdown makes one final bounded delivery attempt, stops all background
// work, waits for outstanding side-channel uploads and closes the store.
// The client cannot be restarted.
func (c *Client) Shutdown(ctx context.Context) error { return c.eng.Shutdown(ctx) }

// LogEvent queues one named event for upload.
func (c *Client) LogEvent(name string) { c.eng.Enqueue(name, event.TypeCustom, nil) }

// LogEventAttrs queues one named event with attributes.
func (c *Client) LogEventAttrs(name string, attrs map[string]string) {
	c.eng.Enqueue(name, event.TypeCustom, attrs)
}

// LogUserInfo uploads user attributes right away, bypassing the event queue.
// Exactly one attempt is made; a failure is logged, not retried.
func (c *Client) LogUserInfo(attrs map[string]string) { c.eng.UploadUserInfo(attrs) }

// DynamicViews resolves view definitions by id, falling back to the local
// cache for ids the service cannot serve right now. Unresolvable ids are
// absent from the result.
func (c *Client) DynamicViews(ctx context.Context, ids ...string) map[string]transport.ViewDefinition {
	return c.eng.DynamicViews(ctx, ids...)
}

// Flush asks the delivery loop for an immediate upload attempt, regardless
// of batch size and retry gating. It returns without waiting; offline mode
// still applies.
func (c *Client) Flush() { c.eng.Flush() }

// SetOffline suspends or resumes dispatching. While offline events keep
// queueing up to the pending bound.
func (c *Client) SetOffline(offline bool) { c.eng.SetOffline(offline) }

// Offline reports whether dispatching is suspended.
func (c *Client) Offline() bool { return c.eng.Offline() }

// SetNetworkAvailable feeds the platform's reachability signal to the
// delivery loop. A transition back to available triggers an immediate
// upload attempt.
func (c *Client) SetNetworkAvailable(available bool) { c.eng.SetNetworkAvailable(available) }

// SetUploadBatchSize changes the count that triggers an upload. Zero is
// ignored.
func (c *Client) SetUploadBatchSize(n uint32) { c.eng.SetUploadBatchSize(n) }

// UploadBatchSize returns the current upload trigger count.
func (c *Client) UploadBatchSize() uint32 { return c.eng.UploadBatchSize() }

// SetMaxPendingEvents changes the buffered-event bound. Zero is ignored; a
// lowered bound takes effect as new events arrive.
func (c *Client) SetMaxPendingEvents(n uint32) { c.eng.SetMaxPendingEvents(n) }

// MaxPendingEvents returns the current buffered-event bound.
func (c *Client) MaxPendingEvents() uint32 { return c.eng.MaxPendingEvents() }

// SetUploadInterval changes the cadence of time-triggered uploads. Values
// of zero or less are ignored.
func (c *Client) SetUploadInterval(d time.Duration) { c.eng.SetUploadInterval(d) }

// UploadInterval returns the current upload cadence.
func (c *Client) UploadInterval() time.Duration { return c.eng.UploadInterval() }

// Pending reports how many events are buffered locally.
func (c *Client) Pending() int { return c.eng.Pending() }

// SessionID returns the id minted for this client instance.
func (c *Client) SessionID() string { return c.eng.SessionID() }

// Stats returns a snapshot of the cumulative counters.
func (c *Client) Stats() Stats { return c.eng.Stats() }
