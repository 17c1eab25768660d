// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/clusterdns/clusterdns/internal/cluster"
	"github.com/clusterdns/clusterdns/internal/cluster/clustertest"
	"github.com/clusterdns/clusterdns/internal/publish"
	"github.com/clusterdns/clusterdns/internal/registry"
	"github.com/clusterdns/clusterdns/internal/types"
)

type recordingPublisher struct {
	mu           sync.Mutex
	snapshots    [][]types.Record
	shutdownCall int
}

func (p *recordingPublisher) Notify(snapshot []types.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, snapshot)
}

func (p *recordingPublisher) Shutdown(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shutdownCall++
	return nil
}

func (p *recordingPublisher) count() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snapshots), p.shutdownCall
}

func TestSupervisor_RunDeliversSnapshotsAndShutsDownCleanly(t *testing.T) {
	src := clustertest.NewSource()
	src.EnableGroup("gateway.networking.k8s.io")
	src.EnableGroup("networking.k8s.io")

	reg := registry.New(hclog.NewNullLogger(), registry.Options{}, nil)
	pub := &recordingPublisher{}

	sv := New(Config{
		Log:        hclog.NewNullLogger(),
		Source:     src,
		Registry:   reg,
		Publishers: []publish.Publisher{pub},
	})

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		sv.Run(ctx)
	}()

	// Push only reaches streams already open, so keep pushing until the
	// Gateway watcher has opened its stream and the snapshot arrives.
	require.Eventually(t, func() bool {
		src.Push(cluster.KindGateway, cluster.Event{
			Type:   cluster.Added,
			Object: types.Gateway{ID: "edge/gw", Addresses: []string{"172.18.0.2"}},
		})
		n, _ := pub.count()
		return n >= 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	sv.Shutdown(context.Background())
	<-runDone

	_, shutdowns := pub.count()
	require.Equal(t, 1, shutdowns)
}
