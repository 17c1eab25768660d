// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unicast

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"github.com/clusterdns/clusterdns/internal/types"
)

// fakeZoneServer is a minimal RFC 2136 server: it accepts any UPDATE
// message, records it, and always replies NOERROR.
type fakeZoneServer struct {
	server *dns.Server

	mu   sync.Mutex
	msgs []*dns.Msg
}

func startFakeZoneServer(t *testing.T) (*fakeZoneServer, string) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeZoneServer{}
	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, r *dns.Msg) {
		f.mu.Lock()
		f.msgs = append(f.msgs, r)
		f.mu.Unlock()

		reply := new(dns.Msg)
		reply.SetReply(r)
		reply.Rcode = dns.RcodeSuccess
		_ = w.WriteMsg(reply)
	})

	f.server = &dns.Server{Listener: listener, Handler: mux}
	go func() { _ = f.server.ActivateAndServe() }()

	t.Cleanup(func() { _ = f.server.Shutdown() })

	// Give the server a moment to start accepting.
	time.Sleep(20 * time.Millisecond)
	return f, listener.Addr().String()
}

func (f *fakeZoneServer) received() []*dns.Msg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*dns.Msg(nil), f.msgs...)
}

func TestPublisher_AddThenModifyThenRemove(t *testing.T) {
	fake, addr := startFakeZoneServer(t)

	p := New(hclog.NewNullLogger(), Config{
		Zone:         "nostromo.k8s.",
		Server:       addr,
		DomainSuffix: "nostromo.k8s.",
	}, nil)

	rec := types.Record{OwnerID: "app/a", GatewayID: "edge/gw", Hostname: "app.nostromo.k8s", IPAddress: "10.0.0.1", Port: 80}
	p.Notify([]types.Record{rec})
	require.Len(t, fake.received(), 1)

	modified := rec
	modified.IPAddress = "10.0.0.9"
	p.Notify([]types.Record{modified})
	require.Len(t, fake.received(), 2)

	p.Notify(nil)
	require.Len(t, fake.received(), 3)

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPublisher_FiltersBySuffix(t *testing.T) {
	fake, addr := startFakeZoneServer(t)

	p := New(hclog.NewNullLogger(), Config{
		Zone:         "nostromo.k8s.",
		Server:       addr,
		DomainSuffix: "nostromo.k8s.",
	}, nil)

	p.Notify([]types.Record{
		{OwnerID: "app/a", Hostname: "app.nostromo.k8s", IPAddress: "10.0.0.1", Port: 80},
		{OwnerID: "app/b", Hostname: "app.local", IPAddress: "10.0.0.2", Port: 80},
	})

	require.Len(t, fake.received(), 1)
}

func TestPublisher_ShutdownRemovesPublished(t *testing.T) {
	fake, addr := startFakeZoneServer(t)

	p := New(hclog.NewNullLogger(), Config{Zone: "nostromo.k8s.", Server: addr, DomainSuffix: "nostromo.k8s."}, nil)
	p.Notify([]types.Record{{OwnerID: "app/a", Hostname: "app.nostromo.k8s", IPAddress: "10.0.0.1", Port: 80}})
	require.Len(t, fake.received(), 1)

	require.NoError(t, p.Shutdown(context.Background()))
	require.Len(t, fake.received(), 2)
}
