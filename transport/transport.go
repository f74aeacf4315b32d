// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport defines the boundary between the delivery engine and the
// remote collection service, and provides the HTTP implementation of it.
package transport

import (
	"context"
	"time"

	"github.com/pulselog/pulselog-go/event"
)

// Sender performs the remote calls of the pipeline. Implementations must be
// safe for concurrent use.
//
// A returned error wrapped with Permanent tells the caller that resending the
// same payload can never succeed; any other error is treated as recoverable.
type Sender interface {
	// SendEvents uploads one batch of event records.
	SendEvents(ctx context.Context, p EventsPayload) error

	// SendUserInfo uploads user attributes outside the event pipeline.
	SendUserInfo(ctx context.Context, p UserInfoPayload) error

	// FetchOrCreateView resolves a dynamic view definition by id. The
	// service returns the existing definition or creates a default one;
	// the client treats both as a fetch.
	FetchOrCreateView(ctx context.Context, id string) (ViewDefinition, error)
}

// EventsPayload is one upload unit: a batch of records in ascending ID order
// plus the identity of the session that produced them.
type EventsPayload struct {
	DeviceID  string         `json:"deviceId,omitempty"`
	UserID    string         `json:"userId,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	SentAt    time.Time      `json:"sentAt"`
	Events    []event.Record `json:"events"`
}

// UserInfoPayload carries user attributes.
type UserInfoPayload struct {
	DeviceID   string            `json:"deviceId,omitempty"`
	UserID     string            `json:"userId,omitempty"`
	SessionID  string            `json:"sessionId,omitempty"`
	SentAt     time.Time         `json:"sentAt"`
	Attributes map[string]string `json:"attributes"`
}

// ViewDefinition is the raw definition blob of a dynamic view, opaque to the
// SDK and handed to the embedder as received.
type ViewDefinition []byte
