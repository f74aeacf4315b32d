// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"strconv"
	"sync"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/pulselog/pulselog-go/event"
	"github.com/pulselog/pulselog-go/storage"
)

const (
	nextIDKey       = "wi"
	liveIndexKey    = "li"
	recordKeyPrefix = "evt."
)

func recordKey(id uint64) string {
	return recordKeyPrefix + strconv.FormatUint(id, 10)
}

// eventStore is the durable bounded buffer of pending records.
//
// Records live in memory, keyed by id, with an ascending manifest of live
// ids; every mutation mirrors itself into the storage client as one atomic
// batch, so a crash loses at most the most recent mutation. In-flight marks
// are memory-only on purpose: a restart returns every stored record to
// pending, and records of an interrupted upload are offered again
// (at-least-once delivery).
//
// A storage write failure is logged and the mutation stays applied in
// memory; durability degrades, the producer contract does not.
type eventStore struct {
	mu       sync.Mutex
	logger   *zap.Logger
	client   storage.Client
	records  map[uint64]event.Record
	live     []uint64 // ascending ids of stored records
	inFlight map[uint64]struct{}
	nextID   uint64
}

// openEventStore loads the persisted state from client. A record that cannot
// be read back is dropped with a log line; the remainder survives.
func openEventStore(ctx context.Context, logger *zap.Logger, client storage.Client) (*eventStore, error) {
	s := &eventStore{
		logger:   logger,
		client:   client,
		records:  make(map[uint64]event.Record),
		inFlight: make(map[uint64]struct{}),
	}
	if err := s.restore(ctx); err != nil {
		return nil, err
	}
	if s.nextID == 0 {
		// Id zero stays reserved for "not assigned yet".
		s.nextID = 1
	}
	return s, nil
}

func (s *eventStore) restore(ctx context.Context) error {
	if raw, err := s.client.Get(ctx, nextIDKey); err != nil {
		return err
	} else if raw != nil {
		if err := json.Unmarshal(raw, &s.nextID); err != nil {
			s.logger.Warn("Failed to decode the stored id counter, starting over", zap.Error(err))
			s.nextID = 0
		}
	}

	var manifest []uint64
	if raw, err := s.client.Get(ctx, liveIndexKey); err != nil {
		return err
	} else if raw != nil {
		if err := json.Unmarshal(raw, &manifest); err != nil {
			s.logger.Warn("Failed to decode the stored event manifest, starting over", zap.Error(err))
			manifest = nil
		}
	}

	var dropped []uint64
	for _, id := range manifest {
		if id >= s.nextID {
			// The manifest outran the persisted counter; never reissue
			// an id that was already handed out.
			s.nextID = id + 1
		}
		raw, err := s.client.Get(ctx, recordKey(id))
		if err != nil {
			return err
		}
		var rec event.Record
		if raw == nil || json.Unmarshal(raw, &rec) != nil {
			dropped = append(dropped, id)
			continue
		}
		rec.ID = id
		s.records[id] = rec
		s.live = append(s.live, id)
	}

	if len(dropped) > 0 {
		s.logger.Warn("Dropped unreadable events during restore", zap.Int("count", len(dropped)))
		ops := []storage.Operation{storage.SetOperation(liveIndexKey, encodeIDs(s.live))}
		for _, id := range dropped {
			ops = append(ops, storage.DeleteOperation(recordKey(id)))
		}
		if err := s.client.Batch(ctx, ops...); err != nil {
			s.logger.Error("Failed to clean up unreadable events", zap.Error(err))
		}
	}
	return nil
}

// enqueue appends rec, assigns its id and enforces the bound by evicting the
// oldest records that are not in flight. When everything older is in flight
// the just-appended record itself is the one evicted. It reports the assigned
// id and the number of evicted records.
func (s *eventStore) enqueue(ctx context.Context, rec event.Record, maxPending int) (uint64, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	rec.ID = id
	s.records[id] = rec
	s.live = append(s.live, id)

	evicted := s.evictLocked(maxPending)

	ops := []storage.Operation{
		storage.SetOperation(nextIDKey, encodeID(s.nextID)),
		storage.SetOperation(liveIndexKey, encodeIDs(s.live)),
	}
	stillLive := true
	for _, ev := range evicted {
		if ev == id {
			stillLive = false
		}
		ops = append(ops, storage.DeleteOperation(recordKey(ev)))
	}
	if stillLive {
		if blob, err := json.Marshal(rec); err != nil {
			s.logger.Error("Failed to encode event for persistence", zap.Error(err))
		} else {
			ops = append(ops, storage.SetOperation(recordKey(id), blob))
		}
	}
	if err := s.client.Batch(ctx, ops...); err != nil {
		s.logger.Error("Failed to persist enqueued event", zap.Error(err))
	}
	return id, len(evicted)
}

func (s *eventStore) evictLocked(maxPending int) []uint64 {
	over := len(s.live) - maxPending
	if over <= 0 {
		return nil
	}
	var evicted []uint64
	keep := s.live[:0]
	for _, id := range s.live {
		if over > 0 {
			if _, busy := s.inFlight[id]; !busy {
				evicted = append(evicted, id)
				delete(s.records, id)
				over--
				continue
			}
		}
		keep = append(keep, id)
	}
	s.live = keep
	return evicted
}

// peekBatch returns up to limit of the oldest records that are not in
// flight, in ascending id order. It does not change any state; calling it
// twice yields the same batch.
func (s *eventStore) peekBatch(limit int) []event.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []event.Record
	for _, id := range s.live {
		if len(out) == limit {
			break
		}
		if _, busy := s.inFlight[id]; busy {
			continue
		}
		out = append(out, s.records[id])
	}
	return out
}

// markInFlight tags ids as part of the outstanding upload. The tags are not
// persisted.
func (s *eventStore) markInFlight(ids []uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.inFlight[id] = struct{}{}
	}
}

// release returns ids to pending after a failed upload attempt.
func (s *eventStore) release(ids []uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.inFlight, id)
	}
}

// commit removes ids permanently: they were delivered, or dropped after a
// permanent failure.
func (s *eventStore) commit(ctx context.Context, ids []uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idSet := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
		delete(s.inFlight, id)
		delete(s.records, id)
	}
	keep := s.live[:0]
	for _, id := range s.live {
		if _, gone := idSet[id]; !gone {
			keep = append(keep, id)
		}
	}
	s.live = keep

	ops := []storage.Operation{storage.SetOperation(liveIndexKey, encodeIDs(s.live))}
	for _, id := range ids {
		ops = append(ops, storage.DeleteOperation(recordKey(id)))
	}
	if err := s.client.Batch(ctx, ops...); err != nil {
		s.logger.Error("Failed to persist committed batch", zap.Error(err))
	}
}

// len reports the number of stored records, in flight included.
func (s *eventStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

func encodeID(id uint64) []byte {
	blob, _ := json.Marshal(id)
	return blob
}

func encodeIDs(ids []uint64) []byte {
	if ids == nil {
		ids = []uint64{}
	}
	blob, _ := json.Marshal(ids)
	return blob
}
