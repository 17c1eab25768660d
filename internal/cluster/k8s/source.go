// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package k8s implements internal/cluster.Source against a real
// Kubernetes API server using client-go's typed clientset for Ingress
// and the generated gateway-api clientset for Gateway/HTTPRoute. It
// intentionally calls Watch directly rather than building an informer -
// internal/cluster.Source asks for nothing more than a raw event
// stream, so there is no need for an informer's cache on top.
package k8s

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/kubernetes"

	gatewayclientset "sigs.k8s.io/gateway-api/pkg/client/clientset/versioned"

	"github.com/clusterdns/clusterdns/internal/cluster"
)

// Source is a cluster.Source backed by real clientsets.
type Source struct {
	log     hclog.Logger
	core    kubernetes.Interface
	gateway gatewayclientset.Interface
	disco   discovery.DiscoveryInterface

	// namespace restricts watches/gets to one namespace. Empty means
	// every namespace, the client-go convention for List/Watch calls.
	namespace string
}

// New constructs a Source. core and gateway must be non-nil;
// disco may be derived from core's REST config by the caller.
func New(log hclog.Logger, core kubernetes.Interface, gateway gatewayclientset.Interface, disco discovery.DiscoveryInterface, namespace string) *Source {
	return &Source{log: log, core: core, gateway: gateway, disco: disco, namespace: namespace}
}

// Probe reports whether apiGroup is served by the cluster's discovery
// document, letting watchers stay dormant when Gateway API CRDs are not
// installed.
func (s *Source) Probe(_ context.Context, apiGroup string) (bool, error) {
	groups, err := s.disco.ServerGroups()
	if err != nil {
		return false, fmt.Errorf("listing server groups: %w", err)
	}
	for _, g := range groups.Groups {
		if g.Name == apiGroup {
			return true, nil
		}
	}
	return false, nil
}

func (s *Source) Watch(ctx context.Context, kind cluster.Kind) (cluster.WatchStream, error) {
	var w watch.Interface
	var err error

	switch kind {
	case cluster.KindGateway:
		w, err = s.gateway.GatewayV1().Gateways(s.namespace).Watch(ctx, metav1.ListOptions{})
	case cluster.KindHTTPRoute:
		w, err = s.gateway.GatewayV1().HTTPRoutes(s.namespace).Watch(ctx, metav1.ListOptions{})
	case cluster.KindIngress:
		w, err = s.core.NetworkingV1().Ingresses(s.namespace).Watch(ctx, metav1.ListOptions{})
	default:
		return nil, fmt.Errorf("k8s: unsupported kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("watching %s: %w", kind, err)
	}
	return newStream(s.log.Named(string(kind)), w), nil
}

func (s *Source) Get(ctx context.Context, kind cluster.Kind, namespace, name string) (any, error) {
	opts := metav1.GetOptions{}
	switch kind {
	case cluster.KindGateway:
		obj, err := s.gateway.GatewayV1().Gateways(namespace).Get(ctx, name, opts)
		if err != nil {
			return nil, translateGetErr(err)
		}
		return decodeGateway(obj), nil
	case cluster.KindHTTPRoute:
		obj, err := s.gateway.GatewayV1().HTTPRoutes(namespace).Get(ctx, name, opts)
		if err != nil {
			return nil, translateGetErr(err)
		}
		return decodeHTTPRoute(obj), nil
	case cluster.KindIngress:
		obj, err := s.core.NetworkingV1().Ingresses(namespace).Get(ctx, name, opts)
		if err != nil {
			return nil, translateGetErr(err)
		}
		return decodeIngress(obj), nil
	default:
		return nil, fmt.Errorf("k8s: unsupported kind %q", kind)
	}
}

func translateGetErr(err error) error {
	if isNotFound(err) {
		return cluster.ErrNotFound
	}
	return err
}
