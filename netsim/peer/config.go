// SPDX-License-Identifier: GPL-3.0-or-later

package peer

import (
	"errors"
	"log/slog"

	"github.com/rbmk-project/mocknet/netsim/event"
	"github.com/rbmk-project/mocknet/netsim/nat"
)

// NATClass is an alias for [nat.Class].
type NATClass = nat.Class

// NAT classes.
const (
	NATNone              = nat.None
	NATFullCone          = nat.FullCone
	NATAddressRestricted = nat.AddressRestricted
	NATPortRestricted    = nat.PortRestricted
	NATSymmetric         = nat.Symmetric
)

// Observer observes the events a [*Peer] drops.
type Observer interface {
	// DroppedByPeer is called when the peer filters out a delivery.
	DroppedByPeer(d *event.Delivery)
}

// Config contains the settings of a simulated host.
//
// The zero value is a host with a public address that
// is not listening for inbound connections.
type Config struct {
	// ListeningTCP is the initial listening state. A listening peer
	// answers Connect with ConnectSuccess, otherwise with ConnectFailure.
	ListeningTCP bool

	// NAT is the NAT class of the host. Unless it is [NATNone],
	// inbound events are dropped unless the host has a matching
	// mapping created by its own outbound traffic.
	NAT NATClass

	// NATTableSize is the capacity of the NAT mapping table. When
	// zero, we use [nat.DefaultTableSize].
	NATTableSize int

	// Filters contains optional filters (e.g., a [*nat.Firewall])
	// applied to inbound events after the NAT.
	Filters []event.Filter

	// Logger is the optional structured logger. If this field
	// is nil, we will not be emitting structured logs.
	Logger *slog.Logger

	// Observer is the optional [Observer].
	Observer Observer
}

// validate returns an error if the configuration is not valid.
func (cfg *Config) validate() error {
	if cfg.NAT < NATNone || cfg.NAT > NATSymmetric {
		return errors.New("peer: invalid NAT class")
	}
	if cfg.NATTableSize < 0 {
		return errors.New("peer: NAT table size must not be negative")
	}
	for _, f := range cfg.Filters {
		if f == nil {
			return errors.New("peer: nil filter")
		}
	}
	return nil
}
