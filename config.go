// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

package pulselog

import (
	"time"

	"go.uber.org/zap"

	"github.com/pulselog/pulselog-go/internal/engine"
	"github.com/pulselog/pulselog-go/storage"
	"github.com/pulselog/pulselog-go/transport"
)

// Config holds everything a Client needs. The zero value is not usable; start
// from NewDefaultConfig or LoadConfig and set APIKey and Endpoint.
type Config struct {
	// APIKey authenticates the client against the collection service.
	APIKey string `mapstructure:"api_key"`

	// Endpoint is the base URL of the collection service, e.g.
	// "https://ingest.example.com".
	Endpoint string `mapstructure:"endpoint"`

	// DeviceID and UserID are opaque identity strings stamped onto every
	// payload. Both are optional.
	DeviceID string `mapstructure:"device_id"`
	UserID   string `mapstructure:"user_id"`

	// Offline starts the client with dispatching suspended. Events queue up
	// to MaxPendingEvents until SetOffline(false).
	Offline bool `mapstructure:"offline"`

	// TrackSessions records session_begin/session_end events around
	// Start and Shutdown.
	TrackSessions bool `mapstructure:"track_sessions"`

	UploadBatchSize  uint32        `mapstructure:"upload_batch_size"`
	MaxPendingEvents uint32        `mapstructure:"max_pending_events"`
	UploadInterval   time.Duration `mapstructure:"upload_interval"`

	// RequestTimeout bounds every network attempt.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// ShutdownTimeout bounds the final delivery attempt made by Shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// RetryMaxInterval caps the escalating delay between delivery retries.
	// Defaults to 8x UploadInterval.
	RetryMaxInterval time.Duration `mapstructure:"retry_max_interval"`

	// DisableCompression turns off gzip request bodies.
	DisableCompression bool `mapstructure:"disable_compression"`

	// Storage configures the on-disk journal. With an empty directory the
	// client buffers in memory only and nothing survives a restart.
	Storage storage.JournalConfig `mapstructure:"storage"`

	// Logger receives the client's diagnostics. Defaults to a nop logger.
	Logger *zap.Logger `mapstructure:"-"`
}

// NewDefaultConfig returns a Config with every tunable at its default.
// APIKey and Endpoint remain to be filled in.
func NewDefaultConfig() Config {
	return Config{
		TrackSessions:    true,
		UploadBatchSize:  engine.DefaultUploadBatchSize,
		MaxPendingEvents: engine.DefaultMaxPendingEvents,
		UploadInterval:   engine.DefaultUploadInterval,
		RequestTimeout:   engine.DefaultAttemptTimeout,
		ShutdownTimeout:  engine.DefaultShutdownTimeout,
	}
}

// Validate checks the fields a Client cannot repair on its own.
func (cfg Config) Validate() error {
	if err := validateAPIKey(cfg.APIKey); err != nil {
		return err
	}
	return cfg.httpConfig().Validate()
}

func (cfg Config) httpConfig() transport.HTTPConfig {
	return transport.HTTPConfig{
		Endpoint:           cfg.Endpoint,
		Timeout:            cfg.RequestTimeout,
		DisableCompression: cfg.DisableCompression,
	}
}
