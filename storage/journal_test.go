// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/wal"
)

func TestJournalClientRequiresDirectory(t *testing.T) {
	_, err := NewJournalClient(JournalConfig{})
	require.Error(t, err)
}

func TestJournalClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := NewJournalClient(JournalConfig{Directory: t.TempDir()})
	require.NoError(t, err)

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

	require.NoError(t, c.Close(ctx))
}

func TestJournalClientReplayAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := NewJournalClient(JournalConfig{Directory: dir})
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "a", []byte("1")))
	require.NoError(t, c.Set(ctx, "b", []byte("2")))
	require.NoError(t, c.Set(ctx, "a", []byte("3")))
	require.NoError(t, c.Delete(ctx, "b"))
	require.NoError(t, c.Close(ctx))

	c, err = NewJournalClient(JournalConfig{Directory: dir})
	require.NoError(t, err)
	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got)
	got, err = c.Get(ctx, "b")
	require.NoError(t, err)
	assert.Nil(t, got)

	// New writes land after the replayed tail.
	require.NoError(t, c.Set(ctx, "c", []byte("4")))
	require.NoError(t, c.Close(ctx))

	c, err = NewJournalClient(JournalConfig{Directory: dir})
	require.NoError(t, err)
	got, err = c.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []byte("4"), got)
	require.NoError(t, c.Close(ctx))
}

func TestJournalClientBatchIsOneEntry(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := NewJournalClient(JournalConfig{Directory: dir})
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "keep", []byte("1")))
	require.NoError(t, c.Batch(ctx,
		SetOperation("a", []byte("2")),
		DeleteOperation("keep"),
		SetOperation("b", []byte("3")),
	))
	require.NoError(t, c.Close(ctx))

	// Two entries on disk: the initial set and the batch.
	log, err := wal.Open(filepath.Join(dir, "journal"), nil)
	require.NoError(t, err)
	first, err := log.FirstIndex()
	require.NoError(t, err)
	last, err := log.LastIndex()
	require.NoError(t, err)
	require.NoError(t, log.Close())
	assert.Equal(t, uint64(2), last-first+1)

	c, err = NewJournalClient(JournalConfig{Directory: dir})
	require.NoError(t, err)
	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)
	got, err = c.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got)
	got, err = c.Get(ctx, "keep")
	require.NoError(t, err)
	assert.Nil(t, got)
	require.NoError(t, c.Close(ctx))
}

func TestJournalClientSkipsUndecodableEntry(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := NewJournalClient(JournalConfig{Directory: dir})
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "a", []byte("1")))
	require.NoError(t, c.Set(ctx, "b", []byte("2")))
	require.NoError(t, c.Close(ctx))

	// Corrupt the journal payload, not the log container: the entry reads
	// back fine but does not decode.
	log, err := wal.Open(filepath.Join(dir, "journal"), nil)
	require.NoError(t, err)
	last, err := log.LastIndex()
	require.NoError(t, err)
	require.NoError(t, log.Write(last+1, []byte("not json")))
	require.NoError(t, log.Close())

	c, err = NewJournalClient(JournalConfig{Directory: dir})
	require.NoError(t, err)
	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)
	got, err = c.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)

	// The journal stays writable past the bad entry.
	require.NoError(t, c.Set(ctx, "c", []byte("3")))
	require.NoError(t, c.Close(ctx))

	c, err = NewJournalClient(JournalConfig{Directory: dir})
	require.NoError(t, err)
	got, err = c.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got)
	require.NoError(t, c.Close(ctx))
}

func TestJournalClientCompaction(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := NewJournalClient(JournalConfig{Directory: dir, CompactEvery: 3})
	require.NoError(t, err)
	for _, kv := range []struct{ k, v string }{
		{"a", "1"}, {"b", "2"}, {"a", "3"}, {"c", "4"}, {"b", "5"},
	} {
		require.NoError(t, c.Set(ctx, kv.k, []byte(kv.v)))
	}
	require.NoError(t, c.Close(ctx))

	// Compaction dropped the journal prefix.
	log, err := wal.Open(filepath.Join(dir, "journal"), nil)
	require.NoError(t, err)
	first, err := log.FirstIndex()
	require.NoError(t, err)
	require.NoError(t, log.Close())
	assert.Greater(t, first, uint64(1))

	c, err = NewJournalClient(JournalConfig{Directory: dir})
	require.NoError(t, err)
	for k, want := range map[string]string{"a": "3", "b": "5", "c": "4"} {
		got, err := c.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, []byte(want), got, "key %s", k)
	}
	require.NoError(t, c.Close(ctx))
}

func TestJournalClientClosed(t *testing.T) {
	ctx := context.Background()
	c, err := NewJournalClient(JournalConfig{Directory: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, c.Close(ctx))

	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Set(ctx, "k", nil), ErrClosed)
	assert.ErrorIs(t, c.Delete(ctx, "k"), ErrClosed)
	assert.ErrorIs(t, c.Batch(ctx, SetOperation("k", nil)), ErrClosed)
	assert.NoError(t, c.Close(ctx))
}
