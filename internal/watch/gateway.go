// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"github.com/clusterdns/clusterdns/internal/cluster"
	"github.com/clusterdns/clusterdns/internal/types"
)

// GatewayRegistry is the subset of *registry.Registry a GatewayHandler
// needs, kept narrow so this package never imports registry (registry
// already depends on nothing here, and importing it back would create a
// cycle the moment registry needs anything from watch).
type GatewayRegistry interface {
	UpsertGateway(types.Gateway)
	RemoveGateway(gatewayID string)
}

// GatewayHandler applies Gateway watch events to a registry.
type GatewayHandler struct {
	Registry GatewayRegistry
}

func (h GatewayHandler) Handle(ev cluster.Event) error {
	gw, ok := ev.Object.(types.Gateway)
	if !ok {
		return &types.ValidationError{Resource: "Gateway", Reason: "decoded object was not a Gateway"}
	}
	if gw.ID == "" {
		return &types.UnidentifiableResourceError{Reason: "gateway has no namespace/name"}
	}

	switch ev.Type {
	case cluster.Added, cluster.Modified:
		h.Registry.UpsertGateway(gw)
	case cluster.Deleted:
		h.Registry.RemoveGateway(gw.ID)
	}
	return nil
}
