// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"github.com/clusterdns/clusterdns/internal/cluster"
	"github.com/clusterdns/clusterdns/internal/types"
)

// RouteRegistry is the subset of *registry.Registry an HTTPRouteHandler
// needs.
type RouteRegistry interface {
	UpsertRoute(types.Route)
	RemoveRoute(routeID string)
}

// HTTPRouteHandler applies HTTPRoute watch events to a registry.
type HTTPRouteHandler struct {
	Registry RouteRegistry
}

func (h HTTPRouteHandler) Handle(ev cluster.Event) error {
	route, ok := ev.Object.(types.Route)
	if !ok {
		return &types.ValidationError{Resource: "HTTPRoute", Reason: "decoded object was not a Route"}
	}
	if route.ID == "" {
		return &types.UnidentifiableResourceError{Reason: "httproute has no namespace/name"}
	}

	switch ev.Type {
	case cluster.Added, cluster.Modified:
		if len(route.Hostnames) == 0 {
			return &types.ValidationError{Resource: "HTTPRoute", Reason: "route has no hostnames"}
		}
		if !route.StatusReported {
			// No Gateway controller has reconciled this route yet, so
			// its acceptance is unknown rather than false. Leave the
			// registry untouched until a later event carries a real
			// status; an earlier upsert here would either publish the
			// route as wrongly-accepted or wrongly-rejected.
			return nil
		}
		h.Registry.UpsertRoute(route)
	case cluster.Deleted:
		h.Registry.RemoveRoute(route.ID)
	}
	return nil
}
