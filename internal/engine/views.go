// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pulselog/pulselog-go/transport"
)

const viewKeyPrefix = "view."

// viewFetchParallelism bounds how many view lookups run at once.
const viewFetchParallelism = 4

// DynamicViews resolves the given view ids concurrently. A successful lookup
// refreshes the persisted per-id cache; a failed one falls back to the
// cached definition, and ids that resolve neither way are absent from the
// result. Ids are independent: one failure never affects another id, and no
// error is returned.
func (e *Engine) DynamicViews(ctx context.Context, ids ...string) map[string]transport.ViewDefinition {
	out := make(map[string]transport.ViewDefinition, len(ids))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(viewFetchParallelism)
	for _, id := range ids {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
			defer cancel()
			def, err := e.sender.FetchOrCreateView(fctx, id)
			if err == nil {
				e.stats.viewsFetched.Inc()
				e.cacheView(ctx, id, def)
				mu.Lock()
				out[id] = def
				mu.Unlock()
				return nil
			}
			e.logger.Debug("Falling back to the cached view definition",
				zap.String("view", id), zap.Error(err))
			if cached, ok := e.cachedView(ctx, id); ok {
				e.stats.viewsFromCache.Inc()
				mu.Lock()
				out[id] = cached
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// cacheView persists def as the fallback for id. The cache is only ever
// written after a successful round trip.
func (e *Engine) cacheView(ctx context.Context, id string, def transport.ViewDefinition) {
	if err := e.client.Set(ctx, viewKeyPrefix+id, def); err != nil {
		e.logger.Warn("Failed to cache view definition", zap.String("view", id), zap.Error(err))
	}
}

func (e *Engine) cachedView(ctx context.Context, id string) (transport.ViewDefinition, bool) {
	raw, err := e.client.Get(ctx, viewKeyPrefix+id)
	if err != nil {
		e.logger.Warn("Failed to read cached view definition", zap.String("view", id), zap.Error(err))
		return nil, false
	}
	if raw == nil {
		return nil, false
	}
	return transport.ViewDefinition(raw), true
}
