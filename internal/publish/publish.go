// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package publish holds the Publisher contract and the diff algorithm
// every concrete publisher (multicast, unicast) shares: compare the
// registry's latest snapshot, filtered to records this publisher cares
// about, against what it last published, and apply removes before adds
// before modifies.
package publish

import (
	"context"

	"github.com/clusterdns/clusterdns/internal/types"
)

// Publisher receives the registry's full record snapshot on every
// change and reconciles its external representation (mDNS records, DNS
// zone entries) against it. The registry calls Notify from a
// per-subscriber notifier goroutine rather than from its mutation path,
// so implementations do their network I/O synchronously inside Notify.
type Publisher interface {
	// Notify is called with the latest full snapshot. Implementations
	// filter it to the records they own (a suffix match) before
	// diffing.
	Notify(snapshot []types.Record)

	// Shutdown unregisters everything this publisher has published and
	// releases its resources. Called once, during supervisor shutdown.
	Shutdown(ctx context.Context) error
}

// Diff is the result of comparing a desired record set against a
// previously-published one.
type Diff struct {
	ToRemove []types.Record
	ToAdd    []types.Record
	ToModify []types.Record
}

// FilterSuffix returns the subset of records whose FQDN ends with
// suffix. An empty suffix matches everything.
func FilterSuffix(records []types.Record, suffix string) []types.Record {
	if suffix == "" {
		return records
	}
	out := make([]types.Record, 0, len(records))
	for _, r := range records {
		if hasSuffix(r.FQDN(), suffix) {
			out = append(out, r)
		}
	}
	return out
}

// ComputeDiff compares desired against published, keyed on
// (OwnerID, GatewayID, Hostname) so that a record whose IP or port
// changed under the same owner/hostname is reported as a modify rather
// than a remove+add.
func ComputeDiff(desired, published []types.Record) Diff {
	desiredByKey := indexByKey(desired)
	publishedByKey := indexByKey(published)

	var d Diff
	for key, rec := range publishedByKey {
		if _, ok := desiredByKey[key]; !ok {
			d.ToRemove = append(d.ToRemove, rec)
		}
	}
	for key, rec := range desiredByKey {
		if _, ok := publishedByKey[key]; !ok {
			d.ToAdd = append(d.ToAdd, rec)
		}
	}
	for key, rec := range desiredByKey {
		if old, ok := publishedByKey[key]; ok && old != rec {
			d.ToModify = append(d.ToModify, rec)
		}
	}
	return d
}

type recordKey struct {
	OwnerID   string
	GatewayID string
	Hostname  string
}

func indexByKey(records []types.Record) map[recordKey]types.Record {
	out := make(map[recordKey]types.Record, len(records))
	for _, r := range records {
		out[recordKey{OwnerID: r.OwnerID, GatewayID: r.GatewayID, Hostname: r.Hostname}] = r
	}
	return out
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
