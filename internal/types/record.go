// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package types

import "strings"

// DefaultPort is used for any record whose route or ingress does not
// resolve an explicit port.
const DefaultPort = 80

// Record is the unit of DNS publication: a (hostname, ip, port) triple
// tagged with the owner and gateway that caused it to exist, so that
// either one disappearing can invalidate exactly the records it caused.
//
// Record is a plain value: two Records with equal fields are the same
// record, which is what lets the registry hold them in a set and what
// lets publishers diff one set of records against another.
type Record struct {
	OwnerID   string
	GatewayID string
	Hostname  string
	IPAddress string
	Port      int
}

// FQDN returns the hostname with a trailing dot, regardless of whether the
// caller already supplied one.
func (r Record) FQDN() string {
	if strings.HasSuffix(r.Hostname, ".") {
		return r.Hostname
	}
	return r.Hostname + "."
}

// Domain returns the last label of the hostname, e.g. "local" for
// "app.local" or "app.local.".
func (r Record) Domain() string {
	labels := strings.Split(strings.TrimSuffix(r.FQDN(), "."), ".")
	if len(labels) == 0 {
		return ""
	}
	return labels[len(labels)-1]
}

// Unqualified returns the hostname with its trailing domain label removed,
// e.g. "app" for "app.local".
func (r Record) Unqualified() string {
	trimmed := strings.TrimSuffix(r.FQDN(), ".")
	idx := strings.LastIndex(trimmed, ".")
	if idx < 0 {
		return trimmed
	}
	return trimmed[:idx]
}

// EffectivePort returns Port if set, otherwise DefaultPort.
func (r Record) EffectivePort() int {
	if r.Port == 0 {
		return DefaultPort
	}
	return r.Port
}
