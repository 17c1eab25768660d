// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package k8s

import (
	"sync"

	"github.com/hashicorp/go-hclog"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/watch"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
	networkingv1 "k8s.io/api/networking/v1"

	"github.com/clusterdns/clusterdns/internal/cluster"
)

// stream adapts a client-go watch.Interface into a cluster.WatchStream,
// decoding each raw object into the internal/types model as it arrives
// rather than leaving that to callers - the watcher only ever sees
// domain types, never a raw api/* type.
type stream struct {
	log    hclog.Logger
	source watch.Interface

	out chan cluster.Event

	mu     sync.Mutex
	err    error
	closed bool
}

func newStream(log hclog.Logger, w watch.Interface) *stream {
	s := &stream{log: log, source: w, out: make(chan cluster.Event)}
	go s.pump()
	return s
}

func (s *stream) pump() {
	defer close(s.out)
	for ev := range s.source.ResultChan() {
		if ev.Type == watch.Error {
			s.fail(decodeWatchError(ev.Object))
			return
		}

		decoded, err := decode(ev.Object)
		if err != nil {
			s.log.Warn("dropping undecodable watch event", "error", err)
			continue
		}

		var t cluster.EventType
		switch ev.Type {
		case watch.Added:
			t = cluster.Added
		case watch.Modified:
			t = cluster.Modified
		case watch.Deleted:
			t = cluster.Deleted
		default:
			continue
		}

		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}
		s.out <- cluster.Event{Type: t, Object: decoded}
	}
}

func (s *stream) Events() <-chan cluster.Event { return s.out }

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.source.Stop()
}

func (s *stream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.closed = true
	s.mu.Unlock()
}

func decodeWatchError(obj any) error {
	if status, ok := obj.(interface{ Error() string }); ok {
		return status
	}
	return apierrors.NewInternalError(nil)
}

// decode converts the raw client-go/gateway-api objects this package
// watches into the module's own domain types.
func decode(obj any) (any, error) {
	switch v := obj.(type) {
	case *gatewayv1.Gateway:
		return decodeGateway(v), nil
	case *gatewayv1.HTTPRoute:
		return decodeHTTPRoute(v), nil
	case *networkingv1.Ingress:
		return decodeIngress(v), nil
	default:
		return nil, errUnsupportedObject
	}
}
