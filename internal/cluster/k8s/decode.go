// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package k8s

import (
	"errors"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	networkingv1 "k8s.io/api/networking/v1"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"

	"github.com/clusterdns/clusterdns/internal/types"
)

var errUnsupportedObject = errors.New("k8s: unsupported object type")

func isNotFound(err error) bool {
	return apierrors.IsNotFound(err)
}

// decodeGateway parses a Gateway's listeners (name, port, protocol) and
// its status addresses of type IPAddress.
func decodeGateway(g *gatewayv1.Gateway) types.Gateway {
	out := types.Gateway{ID: types.ID(g.Namespace, g.Name)}

	for _, l := range g.Spec.Listeners {
		out.Listeners = append(out.Listeners, types.Listener{
			Name:     string(l.Name),
			Port:     int(l.Port),
			Protocol: string(l.Protocol),
		})
	}

	for _, addr := range g.Status.Addresses {
		if addr.Type != nil && *addr.Type == gatewayv1.IPAddressType {
			out.Addresses = append(out.Addresses, addr.Value)
		}
	}

	return out
}

// decodeHTTPRoute parses hostnames, parentRefs, and derives Accepted from
// status.parents - true only when every reported parent carries an
// Accepted=True condition. StatusReported is false when the controller
// has not yet published any parent status at all.
func decodeHTTPRoute(r *gatewayv1.HTTPRoute) types.Route {
	out := types.Route{
		ID:        types.ID(r.Namespace, r.Name),
		Namespace: r.Namespace,
	}
	for _, h := range r.Spec.Hostnames {
		out.Hostnames = append(out.Hostnames, string(h))
	}

	for _, p := range r.Spec.ParentRefs {
		parent := types.ParentRef{GatewayName: string(p.Name)}
		if p.Namespace != nil {
			parent.GatewayNamespace = string(*p.Namespace)
		}
		if p.SectionName != nil {
			parent.SectionName = string(*p.SectionName)
		}
		if p.Port != nil {
			parent.Port = int(*p.Port)
		}
		out.Parents = append(out.Parents, parent)
	}

	out.StatusReported = len(r.Status.Parents) > 0
	out.Accepted = httpRouteAccepted(r)
	return out
}

func httpRouteAccepted(r *gatewayv1.HTTPRoute) bool {
	if len(r.Status.Parents) == 0 {
		return false
	}
	for _, parentStatus := range r.Status.Parents {
		accepted := false
		for _, cond := range parentStatus.Conditions {
			if cond.Type == string(gatewayv1.RouteConditionAccepted) && cond.Status == "True" {
				accepted = true
				break
			}
		}
		if !accepted {
			return false
		}
	}
	return true
}

// decodeIngress parses hostnames (from spec.rules[].host) and
// load-balancer addresses (status.loadBalancer.ingress[].{ip,hostname}).
func decodeIngress(i *networkingv1.Ingress) types.Ingress {
	out := types.Ingress{ID: types.ID(i.Namespace, i.Name)}

	for _, rule := range i.Spec.Rules {
		if rule.Host != "" {
			out.Hostnames = append(out.Hostnames, rule.Host)
		}
	}

	for _, lb := range i.Status.LoadBalancer.Ingress {
		switch {
		case lb.IP != "":
			out.LoadBalancerIPs = append(out.LoadBalancerIPs, lb.IP)
		case lb.Hostname != "":
			out.LoadBalancerIPs = append(out.LoadBalancerIPs, lb.Hostname)
		}
	}

	return out
}
