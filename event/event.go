// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

// Package event defines the telemetry event data model shared by the public
// API, the durable store and the wire payloads.
package event

import (
	"maps"
	"time"
)

// Type tags the producer kind of a record.
type Type string

const (
	// TypeCustom marks records produced by explicit logging calls.
	TypeCustom Type = "custom"

	// TypeSession marks records generated by the session lifecycle.
	TypeSession Type = "session"
)

// Record is a single telemetry event.
//
// ID is assigned by the store at enqueue time and is strictly increasing for
// the lifetime of the store, including across restarts. The persisted form is
// JSON; unknown fields are ignored on read so records written by newer
// versions remain loadable.
type Record struct {
	ID         uint64            `json:"id"`
	Name       string            `json:"name"`
	Type       Type              `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// New returns a Record captured at ts. The attribute map is copied so later
// mutation by the caller cannot reach the stored record. The ID is zero until
// the store assigns one.
func New(name string, typ Type, ts time.Time, attrs map[string]string) Record {
	return Record{
		Name:       name,
		Type:       typ,
		Attributes: maps.Clone(attrs),
		Timestamp:  ts,
	}
}
