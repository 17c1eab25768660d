// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package unicast publishes Records as RFC 2136 dynamic DNS updates
// against a conventional authoritative nameserver, using
// github.com/miekg/dns. It reconciles a single DNS zone against the
// registry's snapshot, signing updates with TSIG when a key is
// configured, and expresses adds and modifies as the same RRset-replace
// operation.
package unicast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/armon/go-metrics"
	metricsprom "github.com/armon/go-metrics/prometheus"
	"github.com/hashicorp/go-hclog"
	"github.com/miekg/dns"

	"github.com/clusterdns/clusterdns/internal/publish"
	"github.com/clusterdns/clusterdns/internal/types"
)

// recordTTL is the TTL set on every published A record.
const recordTTL = 300

// queryTimeout bounds how long a single DNS UPDATE exchange may take.
const queryTimeout = 10 * time.Second

var (
	updatedName = []string{"clusterdns", "publish", "unicast", "updated"}
	failedName  = []string{"clusterdns", "publish", "unicast", "failed"}
)

// Counters is exported so a command wiring a Prometheus sink can include
// this publisher's counters.
var Counters = []metricsprom.CounterDefinition{
	{Name: updatedName, Help: "Increments for each successful DNS UPDATE (add, modify, or remove)"},
	{Name: failedName, Help: "Increments for each DNS UPDATE rejected or failed in transit"},
}

// Config configures a Publisher.
type Config struct {
	// Zone is the DNS zone updates are sent for, e.g. "nostromo.k8s.".
	Zone string
	// Server is the nameserver address, host:port.
	Server string
	// TSIGKey and TSIGSecret enable signed updates when both are set.
	TSIGKey    string
	TSIGSecret string
	// DomainSuffix restricts which records this publisher owns; only
	// records whose fqdn ends with it are considered.
	DomainSuffix string
}

// Publisher reconciles a DNS zone against the registry's snapshot via
// dynamic update.
type Publisher struct {
	log     hclog.Logger
	cfg     Config
	metrics *metrics.Metrics

	mu        sync.Mutex
	published []types.Record
}

// New constructs a Publisher. cfg.DomainSuffix should usually match
// cfg.Zone so only records meant for this zone are published. m may be
// nil, in which case metrics are discarded.
func New(log hclog.Logger, cfg Config, m *metrics.Metrics) *Publisher {
	if m == nil {
		m, _ = metrics.New(metrics.DefaultConfig("clusterdns"), &metrics.BlackholeSink{})
	}
	return &Publisher{log: log, cfg: cfg, metrics: m}
}

func (p *Publisher) Notify(snapshot []types.Record) {
	desired := publish.FilterSuffix(snapshot, p.cfg.DomainSuffix)

	p.mu.Lock()
	diff := publish.ComputeDiff(desired, p.published)
	p.mu.Unlock()

	var stillPublished []types.Record
	p.mu.Lock()
	stillPublished = append(stillPublished, p.published...)
	p.mu.Unlock()

	for _, rec := range diff.ToRemove {
		if p.remove(rec) {
			stillPublished = removeRecord(stillPublished, rec)
		}
	}
	for _, rec := range diff.ToAdd {
		if p.replace(rec, "add") {
			stillPublished = append(stillPublished, rec)
		}
	}
	for _, rec := range diff.ToModify {
		if p.replace(rec, "modify") {
			stillPublished = replaceRecord(stillPublished, rec)
		}
	}

	p.mu.Lock()
	p.published = stillPublished
	p.mu.Unlock()
}

// remove issues a DNS UPDATE deleting rec's single A record (its name and
// address); other A records for the same name are left in place.
func (p *Publisher) remove(rec types.Record) bool {
	msg := new(dns.Msg)
	msg.SetUpdate(dns.Fqdn(p.cfg.Zone))

	rr, err := dns.NewRR(fmt.Sprintf("%s %d A %s", dns.Fqdn(rec.FQDN()), recordTTL, rec.IPAddress))
	if err != nil {
		p.log.Warn("building RR for removal failed", "fqdn", rec.FQDN(), "error", err)
		return false
	}
	msg.Remove([]dns.RR{rr})

	if !p.exchange(msg, "remove", rec) {
		return false
	}
	p.log.Info("removed record", "fqdn", rec.FQDN(), "owner_id", rec.OwnerID)
	return true
}

// replace issues a DNS UPDATE that replaces rec's A RRset, used for both
// the add and modify passes.
func (p *Publisher) replace(rec types.Record, verb string) bool {
	msg := new(dns.Msg)
	msg.SetUpdate(dns.Fqdn(p.cfg.Zone))

	rr, err := dns.NewRR(fmt.Sprintf("%s %d A %s", dns.Fqdn(rec.FQDN()), recordTTL, rec.IPAddress))
	if err != nil {
		p.log.Warn("building RR failed", "fqdn", rec.FQDN(), "error", err)
		return false
	}
	msg.RemoveRRset([]dns.RR{rr})
	msg.Insert([]dns.RR{rr})

	if !p.exchange(msg, verb, rec) {
		return false
	}
	p.log.Info(fmt.Sprintf("%sed record", verb), "fqdn", rec.FQDN(), "ip", rec.IPAddress, "owner_id", rec.OwnerID)
	return true
}

// exchange sends msg over TCP, optionally TSIG-signed, and reports
// whether the server accepted it with rcode NOERROR. A non-NOERROR
// response or transport error leaves the record unpublished so the next
// Notify retries it.
func (p *Publisher) exchange(msg *dns.Msg, verb string, rec types.Record) bool {
	client := &dns.Client{Net: "tcp", Timeout: queryTimeout}

	if p.cfg.TSIGKey != "" && p.cfg.TSIGSecret != "" {
		keyName := dns.Fqdn(p.cfg.TSIGKey)
		msg.SetTsig(keyName, dns.HmacSHA256, 300, time.Now().Unix())
		client.TsigSecret = map[string]string{keyName: p.cfg.TSIGSecret}
	}

	reply, _, err := client.Exchange(msg, p.cfg.Server)
	if err != nil {
		p.metrics.IncrCounter(failedName, 1)
		p.log.Warn(fmt.Sprintf("exception while %s", verb), "fqdn", rec.FQDN(), "error", err)
		return false
	}
	if reply.Rcode != dns.RcodeSuccess {
		p.metrics.IncrCounter(failedName, 1)
		p.log.Warn(fmt.Sprintf("failed to %s", verb), "fqdn", rec.FQDN(), "rcode", dns.RcodeToString[reply.Rcode])
		return false
	}
	p.metrics.IncrCounter(updatedName, 1)
	return true
}

// Shutdown removes every record this publisher has published.
func (p *Publisher) Shutdown(_ context.Context) error {
	p.mu.Lock()
	published := append([]types.Record(nil), p.published...)
	p.mu.Unlock()

	for _, rec := range published {
		p.remove(rec)
	}

	p.mu.Lock()
	p.published = nil
	p.mu.Unlock()
	return nil
}

func removeRecord(records []types.Record, target types.Record) []types.Record {
	out := records[:0:0]
	for _, r := range records {
		if r != target {
			out = append(out, r)
		}
	}
	return out
}

func replaceRecord(records []types.Record, updated types.Record) []types.Record {
	out := make([]types.Record, len(records))
	copy(out, records)
	for i, r := range out {
		if r.OwnerID == updated.OwnerID && r.GatewayID == updated.GatewayID && r.Hostname == updated.Hostname {
			out[i] = updated
			return out
		}
	}
	return append(out, updated)
}
