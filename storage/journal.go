// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/tidwall/wal"
	"go.uber.org/multierr"
)

const (
	defaultSegmentCacheSize = 300
	defaultCompactEvery     = 1024
)

// JournalConfig configures a JournalClient.
type JournalConfig struct {
	// Directory holds the journal segments. Created if absent.
	Directory string `mapstructure:"directory"`

	// SegmentCacheSize is the number of journal segments kept in memory.
	SegmentCacheSize int `mapstructure:"segment_cache_size"`

	// CompactEvery is the number of appended entries after which the journal
	// is rewritten as a single snapshot entry.
	CompactEvery int `mapstructure:"compact_every"`

	// NoSync disables fsync on every append, trading durability of the most
	// recent entries for write throughput.
	NoSync bool `mapstructure:"no_sync"`
}

func (c *JournalConfig) segmentCacheSize() int {
	if c.SegmentCacheSize > 0 {
		return c.SegmentCacheSize
	}
	return defaultSegmentCacheSize
}

func (c *JournalConfig) compactEvery() int {
	if c.CompactEvery > 0 {
		return c.CompactEvery
	}
	return defaultCompactEvery
}

// journalEntry is one write-ahead-log record: either an operation group
// applied atomically, or a full snapshot that replaces all prior state.
type journalEntry struct {
	Snapshot map[string][]byte `json:"snapshot,omitempty"`
	Ops      []journalOp       `json:"ops,omitempty"`
}

type journalOp struct {
	Key   string `json:"k"`
	Value []byte `json:"v,omitempty"`
	Del   bool   `json:"d,omitempty"`
}

// JournalClient is a durable Client: an in-memory map fronted by a
// write-ahead log of JSON-encoded operation groups. Each Set, Delete or
// Batch call is one log entry, so after a crash at most the most recent
// call is lost and a half-applied batch is never observed.
//
// On open the log is replayed. An entry that cannot be decoded is skipped
// (one operation group lost, the rest intact); an entry that cannot be read
// ends the replay and the unreadable tail is discarded.
type JournalClient struct {
	mu       sync.Mutex
	cfg      JournalConfig
	log      *wal.Log
	data     map[string][]byte
	writeIdx uint64 // last index written to the log
	appended int    // entries since the last snapshot
	closed   bool
}

var _ Client = (*JournalClient)(nil)

// NewJournalClient opens (or creates) the journal under cfg.Directory and
// replays it.
func NewJournalClient(cfg JournalConfig) (*JournalClient, error) {
	if cfg.Directory == "" {
		return nil, errors.New("journal directory is required")
	}
	log, err := wal.Open(filepath.Join(cfg.Directory, "journal"), &wal.Options{
		SegmentCacheSize: cfg.segmentCacheSize(),
		NoCopy:           true,
		NoSync:           cfg.NoSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	c := &JournalClient{cfg: cfg, log: log, data: make(map[string][]byte)}
	if err := c.replay(); err != nil {
		return nil, multierr.Append(err, log.Close())
	}
	return c, nil
}

func (c *JournalClient) replay() error {
	first, err := c.log.FirstIndex()
	if err != nil {
		return fmt.Errorf("failed to read journal first index: %w", err)
	}
	last, err := c.log.LastIndex()
	if err != nil {
		return fmt.Errorf("failed to read journal last index: %w", err)
	}
	c.writeIdx = last
	if last == 0 {
		return nil
	}
	if first == 0 {
		first = 1
	}
	for i := first; i <= last; i++ {
		blob, err := c.log.Read(i)
		if err != nil {
			if i == first {
				return fmt.Errorf("failed to read journal entry %d: %w", i, err)
			}
			if terr := c.log.TruncateBack(i - 1); terr != nil {
				return fmt.Errorf("failed to discard unreadable journal tail at %d: %w", i, terr)
			}
			c.writeIdx = i - 1
			return nil
		}
		var ent journalEntry
		if err := json.Unmarshal(blob, &ent); err != nil {
			// One undecodable entry loses one operation group, not
			// the journal.
			continue
		}
		c.applyLocked(ent)
		if ent.Snapshot != nil {
			c.appended = 0
		} else {
			c.appended++
		}
	}
	return nil
}

func (c *JournalClient) applyLocked(ent journalEntry) {
	if ent.Snapshot != nil {
		c.data = make(map[string][]byte, len(ent.Snapshot))
		for k, v := range ent.Snapshot {
			c.data[k] = v
		}
	}
	for _, op := range ent.Ops {
		if op.Del {
			delete(c.data, op.Key)
		} else {
			c.data[op.Key] = op.Value
		}
	}
}

// Get implements Client.
func (c *JournalClient) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	v, ok := c.data[key]
	if !ok {
		return nil, nil
	}
	return bytes.Clone(v), nil
}

// Set implements Client.
func (c *JournalClient) Set(ctx context.Context, key string, value []byte) error {
	return c.Batch(ctx, SetOperation(key, value))
}

// Delete implements Client.
func (c *JournalClient) Delete(ctx context.Context, key string) error {
	return c.Batch(ctx, DeleteOperation(key))
}

// Batch implements Client.
func (c *JournalClient) Batch(_ context.Context, ops ...Operation) error {
	if len(ops) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	ent := journalEntry{Ops: make([]journalOp, 0, len(ops))}
	for _, op := range ops {
		ent.Ops = append(ent.Ops, journalOp{Key: op.Key, Value: op.Value, Del: op.Kind == OpDelete})
	}
	if err := c.appendLocked(ent); err != nil {
		return err
	}
	// The in-memory state changes only once the entry is on disk.
	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			c.data[op.Key] = bytes.Clone(op.Value)
		case OpDelete:
			delete(c.data, op.Key)
		}
	}
	return c.maybeCompactLocked()
}

func (c *JournalClient) appendLocked(ent journalEntry) error {
	blob, err := json.Marshal(ent)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}
	if err := c.log.Write(c.writeIdx+1, blob); err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	c.writeIdx++
	c.appended++
	return nil
}

// maybeCompactLocked rewrites the journal as one snapshot entry once enough
// entries accumulated, then drops everything before the snapshot.
func (c *JournalClient) maybeCompactLocked() error {
	if c.appended < c.cfg.compactEvery() {
		return nil
	}
	snap := make(map[string][]byte, len(c.data))
	for k, v := range c.data {
		snap[k] = v
	}
	if err := c.appendLocked(journalEntry{Snapshot: snap}); err != nil {
		return err
	}
	if err := c.log.TruncateFront(c.writeIdx); err != nil && !errors.Is(err, wal.ErrOutOfRange) {
		return fmt.Errorf("failed to truncate journal: %w", err)
	}
	c.appended = 0
	return nil
}

// Close implements Client. The journal is synced before closing.
func (c *JournalClient) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return multierr.Combine(c.log.Sync(), c.log.Close())
}
