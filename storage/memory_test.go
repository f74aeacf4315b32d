// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()

	got, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	got, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	got, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting an absent key is a no-op.
	require.NoError(t, c.Delete(ctx, "k"))
	require.NoError(t, c.Close(ctx))
}

func TestMemoryClientBatch(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()
	require.NoError(t, c.Set(ctx, "old", []byte("1")))

	require.NoError(t, c.Batch(ctx,
		SetOperation("a", []byte("2")),
		SetOperation("b", []byte("3")),
		DeleteOperation("old"),
	))

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)
	got, err = c.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got)
	got, err = c.Get(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 2, c.Len())
}

func TestMemoryClientCopiesValues(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()

	in := []byte("original")
	require.NoError(t, c.Set(ctx, "k", in))
	in[0] = 'X'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)

	got[0] = 'Y'
	again, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}

func TestMemoryClientSurvivesClose(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()
	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	require.NoError(t, c.Close(ctx))

	// Restart simulations share one instance across consumer lifecycles.
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}
