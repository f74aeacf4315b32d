// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"sync"

	"github.com/pulselog/pulselog-go/transport"
)

// fakeSender records every call and fails on demand. Event errors are
// consumed in order, one per SendEvents call; once the script runs out every
// call succeeds.
type fakeSender struct {
	mu        sync.Mutex
	attempts  []transport.EventsPayload
	eventErrs []error
	userInfos []transport.UserInfoPayload
	userErr   error
	viewDefs  map[string]transport.ViewDefinition
	viewErrs  map[string]error
	viewCalls map[string]int
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		viewDefs:  make(map[string]transport.ViewDefinition),
		viewErrs:  make(map[string]error),
		viewCalls: make(map[string]int),
	}
}

func (f *fakeSender) SendEvents(_ context.Context, p transport.EventsPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, p)
	if len(f.eventErrs) > 0 {
		err := f.eventErrs[0]
		f.eventErrs = f.eventErrs[1:]
		return err
	}
	return nil
}

func (f *fakeSender) SendUserInfo(_ context.Context, p transport.UserInfoPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userInfos = append(f.userInfos, p)
	return f.userErr
}

func (f *fakeSender) FetchOrCreateView(_ context.Context, id string) (transport.ViewDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewCalls[id]++
	if err := f.viewErrs[id]; err != nil {
		return nil, err
	}
	if def, ok := f.viewDefs[id]; ok {
		return def, nil
	}
	return transport.ViewDefinition(`{}`), nil
}

func (f *fakeSender) failEventsWith(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eventErrs = append(f.eventErrs, errs...)
}

func (f *fakeSender) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attempts)
}

func (f *fakeSender) attempt(i int) transport.EventsPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[i]
}

func (f *fakeSender) userInfoCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.userInfos)
}

func (f *fakeSender) userInfo(i int) transport.UserInfoPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userInfos[i]
}

func (f *fakeSender) setViewDef(id string, def transport.ViewDefinition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewDefs[id] = def
}

func (f *fakeSender) failViewWith(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewErrs[id] = err
}

func (f *fakeSender) viewCallCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewCalls[id]
}

func eventNames(p transport.EventsPayload) []string {
	names := make([]string, len(p.Events))
	for i, rec := range p.Events {
		names[i] = rec.Name
	}
	return names
}
