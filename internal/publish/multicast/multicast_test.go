// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package multicast

import (
	"context"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/clusterdns/clusterdns/internal/types"
)

func TestPublisher_IgnoresNonLocalRecords(t *testing.T) {
	p := New(hclog.NewNullLogger(), nil)
	p.Notify([]types.Record{
		{OwnerID: "app/a", Hostname: "app.nostromo.k8s", IPAddress: "10.0.0.1", Port: 80},
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Empty(t, p.registered)
}

func TestPublisher_IgnoresInvalidIPAddress(t *testing.T) {
	p := New(hclog.NewNullLogger(), nil)
	p.Notify([]types.Record{
		{OwnerID: "app/a", Hostname: "app.local", IPAddress: "not-an-ip", Port: 80},
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Empty(t, p.registered)
}

func TestPublisher_UnregisterIsNoopForUnknownRecord(t *testing.T) {
	p := New(hclog.NewNullLogger(), nil)
	p.unregister(types.Record{OwnerID: "app/a", Hostname: "app.local", IPAddress: "10.0.0.1", Port: 80})

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Empty(t, p.registered)
}

func TestPublisher_ShutdownOnEmptyPublisherIsNoop(t *testing.T) {
	p := New(hclog.NewNullLogger(), nil)
	require.NoError(t, p.Shutdown(context.Background()))
}
