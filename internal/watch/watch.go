// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package watch runs a per-kind watch loop: probe for API availability,
// then loop opening a fresh stream and dispatching its events until the
// stream errors, at which point it reconnects.
package watch

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/clusterdns/clusterdns/internal/cluster"
	"github.com/clusterdns/clusterdns/internal/types"
)

// reconnectDelay is the pause between a failed stream and the next
// attempt, avoiding a tight error loop against an unreachable API
// server.
const reconnectDelay = 2 * time.Second

// Handler reacts to one decoded watch event. Implementations are the
// three concrete watchers below, each calling into a *registry.Registry.
type Handler interface {
	Handle(ev cluster.Event) error
}

// Loop runs the probe-then-watch-forever loop for one kind until ctx is
// cancelled. It never returns early on a stream error; it logs, waits
// reconnectDelay, and opens a new stream. It returns nil only when ctx
// is cancelled.
func Loop(ctx context.Context, log hclog.Logger, src cluster.Source, kind cluster.Kind, apiGroup string, h Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		available, err := src.Probe(ctx, apiGroup)
		if err != nil {
			log.Warn("probe failed, retrying", "api_group", apiGroup, "error", err)
			if !sleep(ctx, reconnectDelay) {
				return nil
			}
			continue
		}
		if !available {
			log.Debug("api group not present, staying dormant", "api_group", apiGroup)
			if !sleep(ctx, reconnectDelay) {
				return nil
			}
			continue
		}

		if !runStream(ctx, log, src, kind, h) {
			return nil
		}
	}
}

// runStream opens one stream and dispatches events from it until it
// closes, returning false only if ctx was cancelled.
func runStream(ctx context.Context, log hclog.Logger, src cluster.Source, kind cluster.Kind, h Handler) bool {
	stream, err := src.Watch(ctx, kind)
	if err != nil {
		log.Warn("watch failed, retrying", "kind", kind, "error", err)
		return sleep(ctx, reconnectDelay)
	}
	defer stream.Close()

	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-stream.Events():
			if !ok {
				if err := stream.Err(); err != nil {
					streamErr := &types.StreamError{Kind: string(kind), Err: err}
					log.Warn("watch stream ended, reconnecting", "kind", kind, "error", streamErr)
				}
				return sleep(ctx, reconnectDelay)
			}
			dispatch(log, kind, h, ev)
		}
	}
}

// dispatch handles one event and classifies the handler's error:
// validation, unidentifiable-resource, and gateway-not-ready errors are
// expected and are logged and skipped; anything else is treated as
// unexpected and logged as an error without aborting the stream.
func dispatch(log hclog.Logger, kind cluster.Kind, h Handler, ev cluster.Event) {
	err := h.Handle(ev)
	if err == nil {
		return
	}

	switch err.(type) {
	case *types.ValidationError:
		log.Warn("skipping invalid object", "kind", kind, "error", err)
	case *types.UnidentifiableResourceError:
		log.Warn("skipping unidentifiable object", "kind", kind, "error", err)
	case *types.GatewayNotReadyError:
		log.Debug("gateway not ready yet", "kind", kind, "error", err)
	default:
		log.Error("unexpected error handling event", "kind", kind, "error", err)
	}
}

// sleep waits for d or ctx cancellation, reporting which happened.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
