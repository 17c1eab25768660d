// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"github.com/clusterdns/clusterdns/internal/cluster"
	"github.com/clusterdns/clusterdns/internal/types"
)

// IngressRegistry is the subset of *registry.Registry an IngressHandler
// needs.
type IngressRegistry interface {
	UpsertIngress(types.Ingress)
	RemoveIngress(ingressID string)
}

// IngressHandler applies Ingress watch events to a registry.
type IngressHandler struct {
	Registry IngressRegistry
}

func (h IngressHandler) Handle(ev cluster.Event) error {
	ingress, ok := ev.Object.(types.Ingress)
	if !ok {
		return &types.ValidationError{Resource: "Ingress", Reason: "decoded object was not an Ingress"}
	}
	if ingress.ID == "" {
		return &types.UnidentifiableResourceError{Reason: "ingress has no namespace/name"}
	}

	switch ev.Type {
	case cluster.Added, cluster.Modified:
		h.Registry.UpsertIngress(ingress)
	case cluster.Deleted:
		h.Registry.RemoveIngress(ingress.ID)
	}
	return nil
}
