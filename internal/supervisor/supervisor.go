// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package supervisor boots the three watchers and the configured
// publishers against a shared registry, and coordinates their shutdown:
// cancel the watchers first, let the registry's final snapshot drain
// into each publisher, then call every publisher's Shutdown.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/clusterdns/clusterdns/internal/cluster"
	"github.com/clusterdns/clusterdns/internal/publish"
	"github.com/clusterdns/clusterdns/internal/registry"
	"github.com/clusterdns/clusterdns/internal/watch"
)

// drainDelay is the fixed pause Shutdown takes to let the registry's
// subscriber notifiers deliver their final snapshot before calling
// Publisher.Shutdown.
const drainDelay = 500 * time.Millisecond

// Config is everything Supervisor needs to run.
type Config struct {
	Log        hclog.Logger
	Source     cluster.Source
	Registry   *registry.Registry
	Publishers []publish.Publisher
}

// Supervisor runs the watchers until its context is cancelled, then
// coordinates an orderly shutdown of the registry and publishers.
type Supervisor struct {
	cfg Config

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// Run starts the three watchers against ctx and blocks until they have
// all exited (which only happens once ctx is cancelled, since Loop
// itself never returns early on a stream error).
func (s *Supervisor) Run(ctx context.Context) {
	watchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	specs := []struct {
		kind     cluster.Kind
		apiGroup string
		handler  watch.Handler
	}{
		{cluster.KindGateway, "gateway.networking.k8s.io", watch.GatewayHandler{Registry: s.cfg.Registry}},
		{cluster.KindHTTPRoute, "gateway.networking.k8s.io", watch.HTTPRouteHandler{Registry: s.cfg.Registry}},
		{cluster.KindIngress, "networking.k8s.io", watch.IngressHandler{Registry: s.cfg.Registry}},
	}

	for _, spec := range specs {
		spec := spec
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := watch.Loop(watchCtx, s.cfg.Log.Named(string(spec.kind)), s.cfg.Source, spec.kind, spec.apiGroup, spec.handler); err != nil {
				s.cfg.Log.Error("watcher exited with error", "kind", spec.kind, "error", err)
			}
		}()
	}

	for _, p := range s.cfg.Publishers {
		s.cfg.Registry.Subscribe(p)
	}

	s.wg.Wait()
}

// Shutdown cancels the watchers, gives the registry's final snapshot a
// chance to drain into every publisher, and then shuts every publisher
// down. It blocks until that is complete and returns every publisher's
// shutdown error aggregated together, so an operator sees every
// independent failure rather than only the first one encountered.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	time.Sleep(drainDelay)

	s.cfg.Registry.Close()

	var result *multierror.Error
	for _, p := range s.cfg.Publishers {
		if err := p.Shutdown(ctx); err != nil {
			s.cfg.Log.Warn("publisher shutdown failed", "error", err)
			result = multierror.Append(result, fmt.Errorf("publisher shutdown: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// New constructs a Supervisor.
func New(cfg Config) *Supervisor {
	return &Supervisor{cfg: cfg}
}
