// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package registry holds the single-writer, in-memory join of gateways,
// routes, and ingresses into the current set of DNS Records, and fans
// that set out to subscribers whenever it changes. It keeps a local view
// of "what should exist externally" that is rebuilt on every upsert or
// remove and handed to whoever subscribes to it.
package registry

import (
	"fmt"
	"sync"

	"github.com/armon/go-metrics"
	metricsprom "github.com/armon/go-metrics/prometheus"
	"github.com/hashicorp/go-hclog"

	"github.com/clusterdns/clusterdns/internal/types"
)

var (
	recordsGaugeName  = []string{"clusterdns", "registry", "records"}
	upsertCounterName = []string{"clusterdns", "registry", "upsert"}
	removeCounterName = []string{"clusterdns", "registry", "remove"}
)

// RegistryCounters are the counters a command wires into a Prometheus
// sink when metrics are enabled.
var RegistryCounters = []metricsprom.CounterDefinition{
	{
		Name: upsertCounterName,
		Help: "Increments for each gateway, route, or ingress upserted into the registry",
	},
	{
		Name: removeCounterName,
		Help: "Increments for each gateway, route, or ingress removed from the registry",
	},
}

// RegistryGauges are the gauges a command wires into a Prometheus sink
// when metrics are enabled.
var RegistryGauges = []metricsprom.GaugeDefinition{
	{
		Name: recordsGaugeName,
		Help: "Current number of DNS records held by the registry",
	},
}

// Subscriber receives the registry's full record snapshot after every
// mutation. Implementations (the multicast and unicast publishers) are
// responsible for diffing the snapshot against their own published state;
// the registry does not track per-subscriber delivery state.
type Subscriber interface {
	Notify(snapshot []types.Record)
}

// Options configures derivation behavior with more than one reasonable
// answer.
type Options struct {
	// MultiAddressIngress emits one record per ingress load-balancer
	// address instead of keeping only the first.
	MultiAddressIngress bool
}

// Registry is a single-writer, in-memory join of gateways, routes, and
// ingresses into a set of DNS records. All exported methods acquire the
// same mutex, so a mutation and the snapshot delivery it triggers are
// always serialized with respect to every other mutation and every
// snapshot read.
type Registry struct {
	log     hclog.Logger
	opts    Options
	metrics *metrics.Metrics

	mu        sync.Mutex
	gateways  map[string]types.Gateway
	routes    map[string]types.Route
	ingresses map[string]types.Ingress
	records   map[types.Record]struct{}

	notifiers []*notifier
}

// New constructs an empty Registry. m may be nil, in which case
// metrics are discarded (matching armon/go-metrics' own documented
// behavior when constructed with metrics.New and a blackhole sink).
func New(log hclog.Logger, opts Options, m *metrics.Metrics) *Registry {
	if m == nil {
		m, _ = metrics.New(metrics.DefaultConfig("clusterdns"), &metrics.BlackholeSink{})
	}
	return &Registry{
		log:       log,
		opts:      opts,
		metrics:   m,
		gateways:  make(map[string]types.Gateway),
		routes:    make(map[string]types.Route),
		ingresses: make(map[string]types.Ingress),
		records:   make(map[types.Record]struct{}),
	}
}

// Subscribe registers a Subscriber to receive every subsequent snapshot.
// It does not deliver the current snapshot immediately; the first
// notification arrives on the next mutation. Callers that need the
// current state immediately should call Records first.
func (r *Registry) Subscribe(s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifiers = append(r.notifiers, newNotifier(s))
}

// Close stops all subscriber notifier goroutines. Intended for shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifiers {
		n.close()
	}
}

// UpsertGateway replaces any prior gateway with the same id, then
// recomputes records for every route that references it (the route may
// have been skipped earlier for lack of a known gateway, or may need its
// addresses refreshed).
func (r *Registry) UpsertGateway(g types.Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gateways[g.ID] = g
	r.removeRecordsWhereLocked(func(rec types.Record) bool { return rec.GatewayID == g.ID })
	for _, route := range r.routes {
		r.addRecordsLocked(deriveRouteRecords(route, r.gateways, r.warnf))
	}
	r.metrics.IncrCounterWithLabels(upsertCounterName, 1, []metrics.Label{{Name: "kind", Value: "gateway"}})
	r.notifyLocked()
}

// RemoveGateway purges exactly the records whose gateway id matches.
func (r *Registry) RemoveGateway(gatewayID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.gateways, gatewayID)
	r.removeRecordsWhereLocked(func(rec types.Record) bool { return rec.GatewayID == gatewayID })
	r.metrics.IncrCounterWithLabels(removeCounterName, 1, []metrics.Label{{Name: "kind", Value: "gateway"}})
	r.notifyLocked()
}

// UpsertRoute replaces the route's prior records before recomputing, so
// an edit that shrinks the hostname list correctly drops the records
// that no longer apply rather than leaving them stale.
func (r *Registry) UpsertRoute(route types.Route) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes[route.ID] = route
	r.removeRecordsWhereLocked(func(rec types.Record) bool { return rec.OwnerID == route.ID })
	r.addRecordsLocked(deriveRouteRecords(route, r.gateways, r.warnf))
	r.metrics.IncrCounterWithLabels(upsertCounterName, 1, []metrics.Label{{Name: "kind", Value: "route"}})
	r.notifyLocked()
}

// RemoveRoute purges exactly the records owned by routeID.
func (r *Registry) RemoveRoute(routeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.routes, routeID)
	r.removeRecordsWhereLocked(func(rec types.Record) bool { return rec.OwnerID == routeID })
	r.metrics.IncrCounterWithLabels(removeCounterName, 1, []metrics.Label{{Name: "kind", Value: "route"}})
	r.notifyLocked()
}

// UpsertIngress replaces the ingress's prior records before recomputing.
func (r *Registry) UpsertIngress(ingress types.Ingress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ingresses[ingress.ID] = ingress
	r.removeRecordsWhereLocked(func(rec types.Record) bool { return rec.OwnerID == ingress.ID })
	r.addRecordsLocked(deriveIngressRecords(ingress, r.opts.MultiAddressIngress, r.warnf))
	r.metrics.IncrCounterWithLabels(upsertCounterName, 1, []metrics.Label{{Name: "kind", Value: "ingress"}})
	r.notifyLocked()
}

// RemoveIngress purges exactly the records owned by ingressID.
func (r *Registry) RemoveIngress(ingressID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.ingresses, ingressID)
	r.removeRecordsWhereLocked(func(rec types.Record) bool { return rec.OwnerID == ingressID })
	r.metrics.IncrCounterWithLabels(removeCounterName, 1, []metrics.Label{{Name: "kind", Value: "ingress"}})
	r.notifyLocked()
}

// Records returns a snapshot of the current record set, optionally
// filtered to fqdns ending with suffix.
func (r *Registry) Records(suffix string) []types.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(suffix)
}

func (r *Registry) snapshotLocked(suffix string) []types.Record {
	out := make([]types.Record, 0, len(r.records))
	for rec := range r.records {
		if suffix == "" || hasSuffix(rec.FQDN(), suffix) {
			out = append(out, rec)
		}
	}
	return out
}

func (r *Registry) addRecordsLocked(recs []types.Record) {
	for _, rec := range recs {
		r.records[rec] = struct{}{}
	}
}

func (r *Registry) removeRecordsWhereLocked(match func(types.Record) bool) {
	for rec := range r.records {
		if match(rec) {
			delete(r.records, rec)
		}
	}
}

func (r *Registry) notifyLocked() {
	snapshot := r.snapshotLocked("")
	r.metrics.SetGauge(recordsGaugeName, float32(len(snapshot)))
	for _, n := range r.notifiers {
		n.post(snapshot)
	}
}

func (r *Registry) warnf(format string, args ...any) {
	r.log.Warn(fmt.Sprintf(format, args...))
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
