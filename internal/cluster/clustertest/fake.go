// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package clustertest provides an in-memory cluster.Source double for
// tests. It is exposed from a plain (non-_test.go) file so other
// packages' tests can import it directly.
package clustertest

import (
	"context"
	"sync"

	"github.com/clusterdns/clusterdns/internal/cluster"
)

// Source is a fully in-memory cluster.Source. Tests push events onto a
// Kind's stream with Push, and fail a Kind's current stream with Fail to
// exercise watcher reconnect behavior.
type Source struct {
	mu      sync.Mutex
	groups  map[string]bool
	objects map[cluster.Kind]map[string]any
	streams map[cluster.Kind][]*stream
}

// NewSource returns an empty fake cluster, with every API group reported
// absent until EnableGroup is called.
func NewSource() *Source {
	return &Source{
		groups:  make(map[string]bool),
		objects: make(map[cluster.Kind]map[string]any),
		streams: make(map[cluster.Kind][]*stream),
	}
}

// EnableGroup makes Probe return true for apiGroup.
func (s *Source) EnableGroup(apiGroup string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[apiGroup] = true
}

func (s *Source) Probe(_ context.Context, apiGroup string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups[apiGroup], nil
}

func (s *Source) Watch(_ context.Context, kind cluster.Kind) (cluster.WatchStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := newStream()
	s.streams[kind] = append(s.streams[kind], st)
	return st, nil
}

func (s *Source) Get(_ context.Context, kind cluster.Kind, namespace, name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	objs, ok := s.objects[kind]
	if !ok {
		return nil, cluster.ErrNotFound
	}
	obj, ok := objs[namespace+"/"+name]
	if !ok {
		return nil, cluster.ErrNotFound
	}
	return obj, nil
}

// Put makes obj fetchable via Get.
func (s *Source) Put(kind cluster.Kind, namespace, name string, obj any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects[kind] == nil {
		s.objects[kind] = make(map[string]any)
	}
	s.objects[kind][namespace+"/"+name] = obj
}

// Push delivers ev to every stream currently open for kind (normally
// there is exactly one - the watcher's current stream).
func (s *Source) Push(kind cluster.Kind, ev cluster.Event) {
	s.mu.Lock()
	streams := append([]*stream(nil), s.streams[kind]...)
	s.mu.Unlock()
	for _, st := range streams {
		st.push(ev)
	}
}

// Fail closes kind's current (most recent) stream with err, simulating a
// dropped watch so the watcher's reconnect loop can be exercised.
func (s *Source) Fail(kind cluster.Kind, err error) {
	s.mu.Lock()
	streams := s.streams[kind]
	var latest *stream
	if len(streams) > 0 {
		latest = streams[len(streams)-1]
	}
	s.mu.Unlock()
	if latest != nil {
		latest.fail(err)
	}
}

type stream struct {
	mu     sync.Mutex
	events chan cluster.Event
	err    error
	closed bool
}

func newStream() *stream {
	return &stream{events: make(chan cluster.Event, 16)}
}

func (s *stream) Events() <-chan cluster.Event { return s.events }
func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

func (s *stream) push(ev cluster.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- ev
}

func (s *stream) fail(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	s.mu.Unlock()
	close(s.events)
}
