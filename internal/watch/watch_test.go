// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/clusterdns/clusterdns/internal/cluster"
	"github.com/clusterdns/clusterdns/internal/cluster/clustertest"
	"github.com/clusterdns/clusterdns/internal/types"
)

type fakeGatewayRegistry struct {
	mu       sync.Mutex
	upserted []types.Gateway
	removed  []string
}

func (f *fakeGatewayRegistry) UpsertGateway(g types.Gateway) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, g)
}

func (f *fakeGatewayRegistry) RemoveGateway(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
}

func (f *fakeGatewayRegistry) snapshot() ([]types.Gateway, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Gateway(nil), f.upserted...), append([]string(nil), f.removed...)
}

func TestLoop_DispatchesAddAndDelete(t *testing.T) {
	src := clustertest.NewSource()
	src.EnableGroup("gateway.networking.k8s.io")

	reg := &fakeGatewayRegistry{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Loop(ctx, hclog.NewNullLogger(), src, cluster.KindGateway, "gateway.networking.k8s.io", GatewayHandler{Registry: reg})
	}()

	// Give Loop time to open its stream; Push only reaches streams
	// already open.
	time.Sleep(20 * time.Millisecond)

	gw := types.Gateway{ID: "edge/gw", Addresses: []string{"172.18.0.2"}}
	src.Push(cluster.KindGateway, cluster.Event{Type: cluster.Added, Object: gw})

	require.Eventually(t, func() bool {
		upserted, _ := reg.snapshot()
		return len(upserted) == 1
	}, time.Second, 5*time.Millisecond)

	src.Push(cluster.KindGateway, cluster.Event{Type: cluster.Deleted, Object: gw})

	require.Eventually(t, func() bool {
		_, removed := reg.snapshot()
		return len(removed) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestLoop_ReconnectsAfterStreamFailure(t *testing.T) {
	src := clustertest.NewSource()
	src.EnableGroup("gateway.networking.k8s.io")

	reg := &fakeGatewayRegistry{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Loop(ctx, hclog.NewNullLogger(), src, cluster.KindGateway, "gateway.networking.k8s.io", GatewayHandler{Registry: reg})
	}()

	src.Fail(cluster.KindGateway, errors.New("connection reset"))

	gw := types.Gateway{ID: "edge/gw", Addresses: []string{"172.18.0.2"}}
	require.Eventually(t, func() bool {
		src.Push(cluster.KindGateway, cluster.Event{Type: cluster.Added, Object: gw})
		upserted, _ := reg.snapshot()
		return len(upserted) >= 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}

func TestLoop_StaysDormantWithoutAPIGroup(t *testing.T) {
	src := clustertest.NewSource()

	reg := &fakeGatewayRegistry{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Loop(ctx, hclog.NewNullLogger(), src, cluster.KindGateway, "gateway.networking.k8s.io", GatewayHandler{Registry: reg})
	}()

	time.Sleep(20 * time.Millisecond)
	upserted, removed := reg.snapshot()
	require.Empty(t, upserted)
	require.Empty(t, removed)

	cancel()
	<-done
}

func TestGatewayHandler_RejectsUnidentifiable(t *testing.T) {
	reg := &fakeGatewayRegistry{}
	h := GatewayHandler{Registry: reg}

	err := h.Handle(cluster.Event{Type: cluster.Added, Object: types.Gateway{}})
	require.Error(t, err)
	var unident *types.UnidentifiableResourceError
	require.ErrorAs(t, err, &unident)
}

func TestHTTPRouteHandler_RejectsNoHostnamesOnUpsert(t *testing.T) {
	h := HTTPRouteHandler{Registry: &fakeRouteRegistry{}}
	err := h.Handle(cluster.Event{Type: cluster.Added, Object: types.Route{ID: "app/a", Namespace: "app"}})
	require.Error(t, err)
	var validation *types.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestHTTPRouteHandler_SkipsUpsertWhenStatusNotYetReported(t *testing.T) {
	reg := &fakeRouteRegistry{}
	h := HTTPRouteHandler{Registry: reg}

	route := types.Route{ID: "app/a", Namespace: "app", Hostnames: []string{"a.example.com"}}
	err := h.Handle(cluster.Event{Type: cluster.Added, Object: route})
	require.NoError(t, err)
	require.Empty(t, reg.upserted)
}

func TestHTTPRouteHandler_UpsertsOnceStatusReported(t *testing.T) {
	reg := &fakeRouteRegistry{}
	h := HTTPRouteHandler{Registry: reg}

	route := types.Route{
		ID: "app/a", Namespace: "app", Hostnames: []string{"a.example.com"},
		StatusReported: true,
	}
	err := h.Handle(cluster.Event{Type: cluster.Added, Object: route})
	require.NoError(t, err)
	require.Equal(t, []types.Route{route}, reg.upserted)
}

func TestHTTPRouteHandler_AllowsDeleteWithoutHostnames(t *testing.T) {
	reg := &fakeRouteRegistry{}
	h := HTTPRouteHandler{Registry: reg}
	err := h.Handle(cluster.Event{Type: cluster.Deleted, Object: types.Route{ID: "app/a", Namespace: "app"}})
	require.NoError(t, err)
	require.Equal(t, []string{"app/a"}, reg.removed)
}

type fakeRouteRegistry struct {
	upserted []types.Route
	removed  []string
}

func (f *fakeRouteRegistry) UpsertRoute(r types.Route) { f.upserted = append(f.upserted, r) }
func (f *fakeRouteRegistry) RemoveRoute(id string)     { f.removed = append(f.removed, id) }
