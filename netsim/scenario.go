// SPDX-License-Identifier: GPL-3.0-or-later

package netsim

import (
	"errors"
	"log/slog"
	"net/netip"
	"slices"
	"sync"

	"github.com/rbmk-project/common/runtimex"
	"github.com/rbmk-project/mocknet/closepool"
	"github.com/rbmk-project/mocknet/netsim/metrics"
	"github.com/rbmk-project/mocknet/netsim/network"
	"github.com/rbmk-project/mocknet/netsim/peer"
	"github.com/rbmk-project/mocknet/netsim/service"
)

// firstAddr is the first address allocated by a [*Scenario].
var firstAddr = netip.MustParseAddr("10.0.0.1")

// lastAddr is the last address allocated by a [*Scenario].
var lastAddr = netip.MustParseAddr("10.255.255.254")

// Scenario manages network simulation components using a star topology,
// where all peers are attached to a central [*Network].
//
// Construct using [NewScenario] or [MustNewScenario].
type Scenario struct {
	// logger is the optional logger.
	logger *slog.Logger

	// metrics is nil when we are not collecting metrics.
	metrics *metrics.Metrics

	// mu provides mutual exclusion.
	mu sync.Mutex

	// network is the central event router.
	network *network.Network

	// nextaddr is the next address to allocate.
	nextaddr netip.Addr

	// pool tracks the network and the peers, in creation order.
	pool closepool.Pool
}

// NewScenario creates a new network simulation scenario.
//
// A nil config is equivalent to the zero [ScenarioConfig].
func NewScenario(config *ScenarioConfig) (*Scenario, error) {
	if config == nil {
		config = &ScenarioConfig{}
	}
	s := &Scenario{
		logger:   config.Logger,
		network:  network.New(),
		nextaddr: firstAddr,
	}
	s.pool.Add(s.network)
	s.network.Logger = config.Logger
	if config.Registerer != nil {
		m, err := metrics.New(config.Registerer)
		if err != nil {
			return nil, err
		}
		s.metrics = m
		s.network.Observer = m
	}
	return s, nil
}

// MustNewScenario is like [NewScenario] but panics on error.
func MustNewScenario(config *ScenarioConfig) *Scenario {
	return runtimex.Try1(NewScenario(config))
}

// Network returns the central [*Network].
func (s *Scenario) Network() *Network {
	return s.network
}

// Metrics returns the traffic metrics or nil if the scenario
// was created without a [prometheus.Registerer].
func (s *Scenario) Metrics() *metrics.Metrics {
	return s.metrics
}

// NewPeer creates a new [*Peer] attached to the scenario network.
func (s *Scenario) NewPeer(config *PeerConfig) (*Peer, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ep := config.Endpoint
	if !ep.IsValid() {
		var err error
		if ep, err = s.allocateLocked(); err != nil {
			return nil, err
		}
	}
	p, err := peer.New(s.network, ep, config.peerConfig(s))
	if err != nil {
		return nil, err
	}
	s.pool.Add(p)
	return p, nil
}

// MustNewPeer is like [*Scenario.NewPeer] but panics on error.
func (s *Scenario) MustNewPeer(config *PeerConfig) *Peer {
	return runtimex.Try1(s.NewPeer(config))
}

// allocateLocked returns the next endpoint not yet registered.
func (s *Scenario) allocateLocked() (Endpoint, error) {
	used := s.network.Endpoints()
	for s.nextaddr.Compare(lastAddr) <= 0 {
		ep := netip.AddrPortFrom(s.nextaddr, DefaultPort)
		s.nextaddr = s.nextaddr.Next()
		if !slices.Contains(used, ep) {
			return ep, nil
		}
	}
	return Endpoint{}, errors.New("netsim: no more addresses to allocate")
}

// NewService binds a new [*Service] to the given peer. The service
// writes its events on sink and uses the peer port as the discovery port.
func (s *Scenario) NewService(p *Peer, sink chan<- ServiceEvent) (*Service, error) {
	svc, err := service.New(p, sink, p.Endpoint().Port())
	if err != nil {
		return nil, err
	}
	svc.Logger = s.logger
	return svc, nil
}

// MustNewService is like [*Scenario.NewService] but panics on error.
func (s *Scenario) MustNewService(p *Peer, sink chan<- ServiceEvent) *Service {
	return runtimex.Try1(s.NewService(p, sink))
}

// ProcessEvents drains the network queue. See [*Network.ProcessEvents].
func (s *Scenario) ProcessEvents() (int, error) {
	return s.network.ProcessEvents()
}

// MustProcessEvents is like [*Scenario.ProcessEvents] but panics on error.
func (s *Scenario) MustProcessEvents() int {
	return runtimex.Try1(s.ProcessEvents())
}

// Close closes the peers in reverse creation order and then the network.
//
// The returned error joins all the errors that occurred.
func (s *Scenario) Close() error {
	return s.pool.Close()
}
