// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"net"

	"github.com/clusterdns/clusterdns/internal/types"
)

// deriveRouteRecords computes one record per (hostname, ip) pair for
// every parent that resolves to a known gateway. An unaccepted route
// contributes nothing; a parent naming an unknown gateway is logged and
// contributes nothing for that parent - a later Gateway arrival
// reconciles it via UpsertGateway's own recomputation.
func deriveRouteRecords(r types.Route, gateways map[string]types.Gateway, log logFunc) []types.Record {
	if !r.Accepted {
		return nil
	}

	var records []types.Record
	for _, parent := range r.Parents {
		gatewayID := parent.GatewayID(r.Namespace)
		gw, ok := gateways[gatewayID]
		if !ok {
			log("route %s references unknown gateway %s; will reconcile when it appears", r.ID, gatewayID)
			continue
		}

		port := resolvePort(parent, gw)

		for _, hostname := range r.Hostnames {
			for _, ip := range gw.Addresses {
				records = append(records, types.Record{
					OwnerID:   r.ID,
					GatewayID: gatewayID,
					Hostname:  hostname,
					IPAddress: ip,
					Port:      port,
				})
			}
		}
	}
	return records
}

// resolvePort resolves a route parent's effective port: an explicit
// parent port wins, then the gateway's listener named by section, then
// the default port.
func resolvePort(parent types.ParentRef, gw types.Gateway) int {
	if parent.Port != 0 {
		return parent.Port
	}
	if parent.SectionName != "" {
		if port, ok := gw.PortBySectionName(parent.SectionName); ok {
			return port
		}
	}
	return types.DefaultPort
}

// deriveIngressRecords computes one record per (hostname, ip) pair for an
// ingress's resolved load-balancer addresses. By default it keeps only
// the first address; multiAddress instead emits one record per address,
// which gives fuller DNS coverage when an ingress has more than one.
func deriveIngressRecords(i types.Ingress, multiAddress bool, log logFunc) []types.Record {
	var addresses []string
	for _, addr := range i.ResolvedAddresses() {
		if net.ParseIP(addr) == nil {
			log("ingress %s load-balancer address %q is not an IP; skipping it", i.ID, addr)
			continue
		}
		addresses = append(addresses, addr)
	}
	if len(addresses) == 0 {
		return nil
	}
	if len(addresses) > 1 && !multiAddress {
		log("ingress %s has %d load-balancer addresses; using only the first", i.ID, len(addresses))
		addresses = addresses[:1]
	}

	var records []types.Record
	for _, hostname := range i.Hostnames {
		for _, ip := range addresses {
			records = append(records, types.Record{
				OwnerID:   i.ID,
				GatewayID: types.NoGatewayID,
				Hostname:  hostname,
				IPAddress: ip,
				Port:      types.DefaultPort,
			})
		}
	}
	return records
}

type logFunc func(format string, args ...any)
