// SPDX-License-Identifier: GPL-3.0-or-later

package netsim

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rbmk-project/mocknet/netsim/peer"
)

// DefaultPort is the port of the endpoints allocated by [*Scenario].
const DefaultPort = 5483

// ScenarioConfig contains configuration for creating a new [*Scenario].
//
// The zero value is a silent scenario without metrics.
type ScenarioConfig struct {
	// Logger is the optional structured logger shared by the network,
	// the peers, and the services. If nil, we do not log.
	Logger *slog.Logger

	// Registerer optionally specifies where to register the traffic
	// metrics. If nil, we do not collect metrics.
	Registerer prometheus.Registerer
}

// PeerConfig contains configuration for creating a new [*Peer].
type PeerConfig struct {
	// Endpoint is the optional peer endpoint. If zero, the scenario
	// allocates the next free address in 10.0.0.0/8 using [DefaultPort].
	Endpoint Endpoint

	// Filters contains optional filters applied to inbound events
	// after the NAT (e.g., a firewall created with [NewFirewall]).
	Filters []Filter

	// ListeningTCP is the initial listening state of the peer.
	ListeningTCP bool

	// NAT is the NAT class of the peer.
	NAT NATClass

	// NATTableSize optionally overrides the NAT mapping table size.
	NATTableSize int
}

// validate returns an error if the configuration is not valid.
func (cfg *PeerConfig) validate() error {
	if cfg.Endpoint.IsValid() && cfg.Endpoint.Port() == 0 {
		return errors.New("netsim: the endpoint port must not be zero")
	}
	return nil
}

// peerConfig returns the corresponding [peer.Config].
func (cfg *PeerConfig) peerConfig(s *Scenario) peer.Config {
	pc := peer.Config{
		Filters:      cfg.Filters,
		ListeningTCP: cfg.ListeningTCP,
		Logger:       s.logger,
		NAT:          cfg.NAT,
		NATTableSize: cfg.NATTableSize,
	}
	if s.metrics != nil {
		pc.Observer = s.metrics
	}
	return pc
}
