// SPDX-License-Identifier: GPL-3.0-or-later

package nat

import (
	"sync"

	"github.com/rbmk-project/mocknet/netsim/event"
)

// Firewall models a host firewall.
//
// The zero value is not ready to use; construct using [NewFirewall].
type Firewall struct {
	// allowed optionally restricts who may send Connect.
	allowed map[event.Endpoint]struct{}

	// blocked contains endpoints whose events we always drop.
	blocked map[event.Endpoint]struct{}

	// mu protects allowed and blocked.
	mu sync.RWMutex

	// reject causes blocked Connect to be answered with ConnectFailure.
	reject bool
}

// NewFirewall creates a new [*Firewall].
//
// When reject is true, blocked Connect events are answered with a
// ConnectFailure on behalf of the host, otherwise they are dropped.
func NewFirewall(reject bool) *Firewall {
	return &Firewall{
		allowed: make(map[event.Endpoint]struct{}),
		blocked: make(map[event.Endpoint]struct{}),
		reject:  reject,
	}
}

// Allow adds endpoints to the allow list. Once the allow list is not
// empty, only the listed endpoints may open connections.
func (fw *Firewall) Allow(eps ...event.Endpoint) {
	fw.mu.Lock()
	for _, ep := range eps {
		fw.allowed[ep] = struct{}{}
	}
	fw.mu.Unlock()
}

// Block adds endpoints to the block list.
func (fw *Firewall) Block(eps ...event.Endpoint) {
	fw.mu.Lock()
	for _, ep := range eps {
		fw.blocked[ep] = struct{}{}
	}
	fw.mu.Unlock()
}

// Unblock removes endpoints from the block list.
func (fw *Firewall) Unblock(eps ...event.Endpoint) {
	fw.mu.Lock()
	for _, ep := range eps {
		delete(fw.blocked, ep)
	}
	fw.mu.Unlock()
}

var _ event.Filter = &Firewall{}

// Filter implements [event.Filter].
func (fw *Firewall) Filter(d *event.Delivery) (event.Target, []*event.Delivery) {
	if fw.allow(d) {
		return event.ACCEPT, nil
	}
	if !fw.reject || d.Event.Kind != event.Connect {
		return event.DROP, nil
	}
	failure := &event.Delivery{
		Sender:   d.Receiver,
		Receiver: d.Sender,
		Event:    event.New(event.ConnectFailure),
	}
	return event.DROP, []*event.Delivery{failure}
}

// allow returns whether the firewall lets the delivery through.
func (fw *Firewall) allow(d *event.Delivery) bool {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	if _, found := fw.blocked[d.Sender]; found {
		return false
	}
	if d.Event.Kind != event.Connect || len(fw.allowed) <= 0 {
		return true
	}
	_, found := fw.allowed[d.Sender]
	return found
}
