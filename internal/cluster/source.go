// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package cluster declares the abstraction watchers use to talk to the
// cluster: a list+watch stream per resource kind, a single object fetch,
// and an API-availability probe. It deliberately says nothing about how
// that contract is fulfilled — internal/cluster/k8s provides the
// client-go-backed implementation the production binary wires up, and
// tests provide an in-memory one.
package cluster

import "context"

// Kind names one of the three resource kinds this system watches.
type Kind string

const (
	KindGateway   Kind = "Gateway"
	KindHTTPRoute Kind = "HTTPRoute"
	KindIngress   Kind = "Ingress"
)

// EventType mirrors the Kubernetes watch event envelope.
type EventType string

const (
	Added    EventType = "ADDED"
	Modified EventType = "MODIFIED"
	Deleted  EventType = "DELETED"
)

// Event is one entry from a watch stream. Object carries the value the
// source decoded for the event's kind (types.Gateway, types.Route, or
// types.Ingress); it is declared untyped so one Event type serves every
// kind, and each watcher's handler type-asserts and validates it.
type Event struct {
	Type   EventType
	Object any
}

// WatchStream is an open, infinite stream of Events for one resource
// Kind. It may fail at any time (Events closes and Err returns a non-nil
// error); the caller is expected to Close and open a fresh stream.
type WatchStream interface {
	// Events returns the channel of events. It is closed when the
	// stream ends, whether cleanly (Close was called) or with an
	// error (check Err after the channel closes).
	Events() <-chan Event

	// Err returns the error that caused Events to close, or nil if
	// the stream ended because Close was called.
	Err() error

	// Close releases the stream's underlying connection. Idempotent.
	Close()
}

// Source is the cluster abstraction every watcher is built against.
type Source interface {
	// Probe reports whether the cluster exposes the named API group,
	// e.g. "gateway.networking.k8s.io". Watchers stay dormant when
	// their required group is absent rather than looping on errors.
	Probe(ctx context.Context, apiGroup string) (bool, error)

	// Watch opens a new stream of events for kind. Each call returns
	// an independent stream positioned at "now"; there is no resource
	// version continuity guarantee across calls, so callers reconnect
	// by opening a fresh stream rather than resuming an old one.
	Watch(ctx context.Context, kind Kind) (WatchStream, error)

	// Get fetches a single object by namespace/name. Returns
	// ErrNotFound if it does not exist.
	Get(ctx context.Context, kind Kind, namespace, name string) (any, error)
}

// ErrNotFound is returned by Source.Get when the object does not exist.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "object not found" }
