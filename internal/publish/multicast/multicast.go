// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package multicast publishes Records ending in ".local." via multicast
// DNS, using github.com/hashicorp/mdns. It keeps a map of Record to
// registered service and reconciles it against the registry's snapshot
// in three passes (remove, add, modify); each Record gets its own
// *mdns.Server advertising one service instance, since hashicorp/mdns's
// Config takes a single Zone per server rather than a mutable
// multi-record zone.
package multicast

import (
	"context"
	"net"
	"sync"

	"github.com/armon/go-metrics"
	metricsprom "github.com/armon/go-metrics/prometheus"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/mdns"

	"github.com/clusterdns/clusterdns/internal/publish"
	"github.com/clusterdns/clusterdns/internal/types"
)

// serviceType is a generic "_http._tcp.local." service type; a type is
// required by Apple's mDNS responder even though this system does not
// run an HTTP server on the advertised port.
const serviceType = "_http._tcp.local."

var (
	addedName   = []string{"clusterdns", "publish", "multicast", "added"}
	removedName = []string{"clusterdns", "publish", "multicast", "removed"}
)

// Counters is exported so a command wiring a Prometheus sink can include
// this publisher's counters.
var Counters = []metricsprom.CounterDefinition{
	{Name: addedName, Help: "Increments for each record advertised over multicast DNS"},
	{Name: removedName, Help: "Increments for each record unregistered from multicast DNS"},
}

// Publisher advertises ".local." records over multicast DNS.
type Publisher struct {
	log     hclog.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	registered map[types.Record]*mdns.Server
}

// New constructs a Publisher. It only ever considers records whose fqdn
// ends in ".local.". m may be nil, in which case metrics are discarded.
func New(log hclog.Logger, m *metrics.Metrics) *Publisher {
	if m == nil {
		m, _ = metrics.New(metrics.DefaultConfig("clusterdns"), &metrics.BlackholeSink{})
	}
	return &Publisher{log: log, metrics: m, registered: make(map[types.Record]*mdns.Server)}
}

func (p *Publisher) Notify(snapshot []types.Record) {
	desired := publish.FilterSuffix(snapshot, ".local.")

	p.mu.Lock()
	published := make([]types.Record, 0, len(p.registered))
	for rec := range p.registered {
		published = append(published, rec)
	}
	p.mu.Unlock()

	diff := publish.ComputeDiff(desired, published)

	for _, rec := range diff.ToRemove {
		p.unregister(rec)
	}
	// A changed IP/port needs a fresh *mdns.Server since the
	// underlying MDNSService is immutable once advertised, so the server
	// of the previously published record with the same key is torn down.
	for _, rec := range diff.ToModify {
		for _, old := range published {
			if old.OwnerID == rec.OwnerID && old.GatewayID == rec.GatewayID && old.Hostname == rec.Hostname {
				p.unregister(old)
			}
		}
	}
	toRegister := make([]types.Record, 0, len(diff.ToAdd)+len(diff.ToModify))
	toRegister = append(toRegister, diff.ToAdd...)
	toRegister = append(toRegister, diff.ToModify...)
	for _, rec := range toRegister {
		p.register(rec)
	}
}

func (p *Publisher) register(rec types.Record) {
	ip := net.ParseIP(rec.IPAddress)
	if ip == nil {
		p.log.Warn("ignoring record because ip address is invalid", "owner_id", rec.OwnerID, "fqdn", rec.FQDN())
		return
	}

	svc, err := mdns.NewMDNSService(rec.Unqualified(), serviceType, "", rec.FQDN(), rec.EffectivePort(), []net.IP{ip}, nil)
	if err != nil {
		p.log.Warn("ignoring record because name is invalid", "owner_id", rec.OwnerID, "fqdn", rec.FQDN(), "error", err)
		return
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: svc})
	if err != nil {
		p.log.Warn("ignoring record because it is already registered", "owner_id", rec.OwnerID, "fqdn", rec.FQDN(), "error", err)
		return
	}

	p.mu.Lock()
	p.registered[rec] = server
	p.mu.Unlock()
	p.metrics.IncrCounter(addedName, 1)
	p.log.Info("added record", "fqdn", rec.FQDN(), "ip", rec.IPAddress, "port", rec.EffectivePort(), "owner_id", rec.OwnerID)
}

func (p *Publisher) unregister(rec types.Record) {
	p.mu.Lock()
	server, ok := p.registered[rec]
	delete(p.registered, rec)
	p.mu.Unlock()
	if !ok {
		return
	}
	_ = server.Shutdown()
	p.metrics.IncrCounter(removedName, 1)
	p.log.Info("removed record", "fqdn", rec.FQDN(), "owner_id", rec.OwnerID)
}

// Shutdown unregisters every advertised service and stops their servers.
func (p *Publisher) Shutdown(_ context.Context) error {
	p.mu.Lock()
	servers := make(map[types.Record]*mdns.Server, len(p.registered))
	for rec, s := range p.registered {
		servers[rec] = s
	}
	p.registered = make(map[types.Record]*mdns.Server)
	p.mu.Unlock()

	for _, s := range servers {
		_ = s.Shutdown()
	}
	return nil
}
