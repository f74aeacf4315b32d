// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage defines the key/value persistence boundary the engine
// stores its state behind, together with an in-memory client and a durable
// write-ahead-log backed client.
package storage

import (
	"context"
	"errors"
)

// ErrClosed is returned by clients after Close.
var ErrClosed = errors.New("storage client is closed")

// Client is a namespaced key/value store. All methods return an error only if
// a real problem occurred; data conditions mirror the behavior of a Go map:
//   - Set does not error when the key already exists, it overwrites.
//   - Get does not error when the key is missing, it returns nil, nil.
//   - Delete does not error when the key is missing, it no-ops.
//
// Batch applies all of its operations atomically: after a crash either every
// operation of the batch is visible or none is.
type Client interface {
	// Get retrieves the value stored under key, or nil, nil if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. The value can be retrieved after a
	// process restart using the same key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the value stored under key.
	Delete(ctx context.Context, key string) error

	// Batch applies the given operations as a single atomic unit.
	Batch(ctx context.Context, ops ...Operation) error

	// Close releases any resources held by the client.
	Close(ctx context.Context) error
}

// OpKind discriminates batch operations.
type OpKind int

const (
	// OpSet stores Operation.Value under Operation.Key.
	OpSet OpKind = iota
	// OpDelete removes Operation.Key.
	OpDelete
)

// Operation is a single mutation applied by Client.Batch.
type Operation struct {
	Kind  OpKind
	Key   string
	Value []byte
}

// SetOperation returns a batch operation that stores value under key.
func SetOperation(key string, value []byte) Operation {
	return Operation{Kind: OpSet, Key: key, Value: value}
}

// DeleteOperation returns a batch operation that removes key.
func DeleteOperation(key string) Operation {
	return Operation{Kind: OpDelete, Key: key}
}
