// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"bytes"
	"context"
	"sync"
)

// MemoryClient is a Client backed by a process-local map. Nothing survives a
// restart; it serves tests and embedders that opt out of durability.
//
// Close is a no-op so a single instance can be shared across several
// open/close cycles of its consumer, which is how restart behavior is
// simulated in tests.
type MemoryClient struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Client = (*MemoryClient)(nil)

// NewMemoryClient returns an empty in-memory client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{data: make(map[string][]byte)}
}

// Get implements Client.
func (c *MemoryClient) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	if !ok {
		return nil, nil
	}
	return bytes.Clone(v), nil
}

// Set implements Client.
func (c *MemoryClient) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = bytes.Clone(value)
	return nil
}

// Delete implements Client.
func (c *MemoryClient) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// Batch implements Client.
func (c *MemoryClient) Batch(_ context.Context, ops ...Operation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			c.data[op.Key] = bytes.Clone(op.Value)
		case OpDelete:
			delete(c.data, op.Key)
		}
	}
	return nil
}

// Close implements Client.
func (c *MemoryClient) Close(context.Context) error {
	return nil
}

// Len reports the number of stored keys.
func (c *MemoryClient) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
