// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"sync"

	"github.com/clusterdns/clusterdns/internal/types"
)

// notifier delivers the freshest snapshot to one subscriber, decoupling a
// slow publisher from the registry's mutation path. It is a single-slot
// coalescer: a pending snapshot that hasn't been delivered yet is
// overwritten rather than queued, so a subscriber that falls behind only
// ever sees the latest state instead of building up a backlog.
type notifier struct {
	sub Subscriber

	mu      sync.Mutex
	pending []types.Record
	have    bool
	signal  chan struct{}

	closeOnce sync.Once
	done      chan struct{}
}

func newNotifier(sub Subscriber) *notifier {
	n := &notifier{
		sub:    sub,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go n.loop()
	return n
}

// post replaces whatever snapshot is currently queued for delivery with
// the newest one. It never blocks the caller (the registry's mutation
// path), matching the "freshest supersedes any pending one" contract.
func (n *notifier) post(snapshot []types.Record) {
	n.mu.Lock()
	n.pending = snapshot
	n.have = true
	n.mu.Unlock()

	select {
	case n.signal <- struct{}{}:
	default:
	}
}

func (n *notifier) loop() {
	for {
		select {
		case <-n.signal:
			n.mu.Lock()
			snapshot := n.pending
			have := n.have
			n.have = false
			n.mu.Unlock()
			if have {
				n.sub.Notify(snapshot)
			}
		case <-n.done:
			return
		}
	}
}

func (n *notifier) close() {
	n.closeOnce.Do(func() { close(n.done) })
}
