// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package publish

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clusterdns/clusterdns/internal/types"
)

func TestFilterSuffix(t *testing.T) {
	records := []types.Record{
		{OwnerID: "a", Hostname: "app.local", IPAddress: "10.0.0.1"},
		{OwnerID: "b", Hostname: "svc.k8s", IPAddress: "10.0.0.2"},
	}

	require.Len(t, FilterSuffix(records, ".local."), 1)
	require.Len(t, FilterSuffix(records, ""), 2)
}

func TestComputeDiff_AddRemoveModify(t *testing.T) {
	published := []types.Record{
		{OwnerID: "a", GatewayID: "gw", Hostname: "app.local", IPAddress: "10.0.0.1", Port: 80},
		{OwnerID: "b", GatewayID: "gw", Hostname: "old.local", IPAddress: "10.0.0.2", Port: 80},
	}
	desired := []types.Record{
		{OwnerID: "a", GatewayID: "gw", Hostname: "app.local", IPAddress: "10.0.0.9", Port: 80},
		{OwnerID: "c", GatewayID: "gw", Hostname: "new.local", IPAddress: "10.0.0.3", Port: 80},
	}

	diff := ComputeDiff(desired, published)

	require.Len(t, diff.ToRemove, 1)
	require.Equal(t, "old.local", diff.ToRemove[0].Hostname)

	require.Len(t, diff.ToAdd, 1)
	require.Equal(t, "new.local", diff.ToAdd[0].Hostname)

	require.Len(t, diff.ToModify, 1)
	require.Equal(t, "10.0.0.9", diff.ToModify[0].IPAddress)
}

func TestComputeDiff_NoChanges(t *testing.T) {
	records := []types.Record{
		{OwnerID: "a", GatewayID: "gw", Hostname: "app.local", IPAddress: "10.0.0.1", Port: 80},
	}
	diff := ComputeDiff(records, records)
	require.Empty(t, diff.ToRemove)
	require.Empty(t, diff.ToAdd)
	require.Empty(t, diff.ToModify)
}
