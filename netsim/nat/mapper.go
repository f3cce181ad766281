// SPDX-License-Identifier: GPL-3.0-or-later

package nat

import (
	"fmt"
	"net/netip"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rbmk-project/mocknet/netsim/event"
)

// Class is the NAT class of a simulated host.
type Class int

const (
	// None means the host has a public address and accepts all traffic.
	None = Class(iota)

	// FullCone accepts inbound traffic from any endpoint as soon as
	// the host has sent at least one event.
	FullCone

	// AddressRestricted accepts inbound traffic from endpoints whose
	// address the host has previously sent to, regardless of port.
	AddressRestricted

	// PortRestricted accepts inbound traffic only from endpoints the
	// host has previously sent to.
	PortRestricted

	// Symmetric behaves like [PortRestricted] for replies but drops all
	// inbound Connect events, since the mapping a remote learns about
	// through a third party never matches the one towards itself.
	Symmetric
)

// String returns the string representation of the class.
func (c Class) String() string {
	switch c {
	case None:
		return "none"
	case FullCone:
		return "fullCone"
	case AddressRestricted:
		return "addressRestricted"
	case PortRestricted:
		return "portRestricted"
	case Symmetric:
		return "symmetric"
	default:
		return "unknown"
	}
}

// DefaultTableSize is the default capacity of the mapping table.
const DefaultTableSize = 64

// Mapper models the NAT in front of a simulated host.
//
// Construct using [NewMapper].
type Mapper struct {
	// addrs tracks the remote addresses we sent to.
	addrs *lru.Cache[netip.Addr, struct{}]

	// class is the NAT class.
	class Class

	// eps tracks the remote endpoints we sent to.
	eps *lru.Cache[event.Endpoint, struct{}]

	// mu makes Outbound and Filter atomic with respect to each other.
	mu sync.Mutex
}

// NewMapper creates a new [*Mapper] for the given [Class].
//
// The size is the mapping table capacity; use zero for [DefaultTableSize].
func NewMapper(class Class, size int) (*Mapper, error) {
	if class < None || class > Symmetric {
		return nil, fmt.Errorf("nat: invalid class: %d", class)
	}
	if size < 0 {
		return nil, fmt.Errorf("nat: invalid table size: %d", size)
	}
	if size == 0 {
		size = DefaultTableSize
	}
	addrs, err := lru.New[netip.Addr, struct{}](size)
	if err != nil {
		return nil, err
	}
	eps, err := lru.New[event.Endpoint, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &Mapper{addrs: addrs, class: class, eps: eps}, nil
}

// Class returns the NAT class.
func (m *Mapper) Class() Class {
	return m.class
}

// Outbound records that the host sent an event to the given endpoint.
//
// The returned func removes the mappings this call created and should
// be called when the event could not be sent after all. Mappings that
// already existed are left in place.
func (m *Mapper) Outbound(remote event.Endpoint) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	newAddr := !m.addrs.Contains(remote.Addr())
	newEP := !m.eps.Contains(remote)
	m.addrs.Add(remote.Addr(), struct{}{})
	m.eps.Add(remote, struct{}{})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if newAddr {
			m.addrs.Remove(remote.Addr())
		}
		if newEP {
			m.eps.Remove(remote)
		}
	}
}

// Mapped returns whether there is a mapping towards the given endpoint.
func (m *Mapper) Mapped(remote event.Endpoint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eps.Contains(remote)
}

// Len returns the number of endpoint mappings.
func (m *Mapper) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eps.Len()
}

var _ event.Filter = &Mapper{}

// Filter implements [event.Filter].
func (m *Mapper) Filter(d *event.Delivery) (event.Target, []*event.Delivery) {
	if m.allow(d) {
		return event.ACCEPT, nil
	}
	return event.DROP, nil
}

// allow returns whether the NAT lets the inbound delivery through.
func (m *Mapper) allow(d *event.Delivery) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Contains does not update the recency, so the
	// verdict only depends on the outbound history.
	switch m.class {
	case None:
		return true

	case FullCone:
		return m.eps.Len() > 0

	case AddressRestricted:
		return m.addrs.Contains(d.Sender.Addr())

	case PortRestricted:
		return m.eps.Contains(d.Sender)

	default:
		return d.Event.Kind != event.Connect && m.eps.Contains(d.Sender)
	}
}
