// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package service implements a mock network service on top of a simulated peer.

A [*Service] exposes the API the application layer expects from a real
network service ([Interface]) and executes it against a peer.Peer. It
translates application requests into events sent by the peer and the peer
notifications into application [Event] values posted on a channel.

The service callbacks run on the goroutine draining the network and post
on the event channel: make sure the channel is buffered or concurrently
drained, otherwise the drain blocks.
*/
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/rbmk-project/common/errclass"
	"github.com/rbmk-project/mocknet/netsim/event"
	"github.com/rbmk-project/mocknet/netsim/peer"
)

// ErrUnknownPeer is an alias for [event.ErrUnknownPeer].
var ErrUnknownPeer = event.ErrUnknownPeer

// Interface is the network service API used by the application layer.
//
// Both the [*Service] and a real-transport-backed service implement it, so
// the application code does not know which one it is running against.
type Interface interface {
	// StartListening starts accepting inbound connections.
	StartListening()

	// Connect asynchronously connects to the given endpoint. The outcome
	// is a [Connected] or [ConnectFailed] [Event].
	Connect(ep Endpoint) error

	// Send sends a payload to a connected peer.
	Send(id PeerID, payload []byte) error

	// Disconnect tears down the connection with a connected peer.
	Disconnect(id PeerID) error
}

// Peer is the [*peer.Peer] as seen by a [*Service].
type Peer interface {
	Bind(h peer.Handler) error
	Endpoint() Endpoint
	SendTo(receiver Endpoint, ev event.Event) error
	StartListening()
	StopListening()
}

var _ Peer = &peer.Peer{}

// Service is the mock network service.
//
// Construct using [New].
type Service struct {
	// Logger is the optional structured logger. If this field
	// is nil, we will not be emitting structured logs.
	Logger *slog.Logger

	// discoveryPort is the service discovery port.
	discoveryPort uint16

	// eps maps peer IDs to endpoints.
	eps map[PeerID]Endpoint

	// ids maps endpoints to peer IDs.
	ids map[Endpoint]PeerID

	// mu protects eps and ids.
	mu sync.Mutex

	// peer is the bound peer.
	peer Peer

	// sink is where we post application events.
	sink chan<- Event
}

var (
	_ Interface    = &Service{}
	_ peer.Handler = &Service{}
)

// New creates a new [*Service] bound to the given [Peer].
//
// The sink channel receives the application events. The discovery port is
// the port a real service would use for local service discovery; here it
// is only recorded, since discovery is the application layer's business.
func New(p Peer, sink chan<- Event, discoveryPort uint16) (*Service, error) {
	if sink == nil {
		return nil, errors.New("service: nil event sink")
	}
	s := &Service{
		discoveryPort: discoveryPort,
		eps:           make(map[PeerID]Endpoint),
		ids:           make(map[Endpoint]PeerID),
		peer:          p,
		sink:          sink,
	}
	if err := p.Bind(s); err != nil {
		return nil, err
	}
	return s, nil
}

// DiscoveryPort returns the service discovery port.
func (s *Service) DiscoveryPort() uint16 {
	return s.discoveryPort
}

// LocalEndpoint returns the endpoint of the bound peer.
func (s *Service) LocalEndpoint() Endpoint {
	return s.peer.Endpoint()
}

// StartListening implements [Interface].
func (s *Service) StartListening() {
	s.peer.StartListening()
}

// StopListening stops accepting inbound connections.
func (s *Service) StopListening() {
	s.peer.StopListening()
}

// Connect implements [Interface].
func (s *Service) Connect(ep Endpoint) error {
	return s.peer.SendTo(ep, event.New(event.Connect))
}

// Send implements [Interface].
//
// It returns [ErrUnknownPeer] if id is not a connected peer.
func (s *Service) Send(id PeerID, payload []byte) error {
	ep, found := s.Endpoint(id)
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, id)
	}
	return s.peer.SendTo(ep, event.NewSend(payload))
}

// Disconnect implements [Interface].
//
// It returns [ErrUnknownPeer] if id is not a connected peer. We do
// not emit a [Disconnected] event for locally closed connections. When
// the disconnection cannot be sent, the peer stays connected.
func (s *Service) Disconnect(id PeerID) error {
	ep, found := s.Endpoint(id)
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, id)
	}
	if err := s.peer.SendTo(ep, event.New(event.Disconnect)); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.eps, id)
	delete(s.ids, ep)
	s.mu.Unlock()
	return nil
}

// Endpoint returns the endpoint of a connected peer.
func (s *Service) Endpoint(id PeerID) (Endpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, found := s.eps[id]
	return ep, found
}

// PeerID returns the ID of the peer connected at the given endpoint.
func (s *Service) PeerID(ep Endpoint) (PeerID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, found := s.ids[ep]
	return id, found
}

// Connections returns the IDs of the connected peers sorted by endpoint.
func (s *Service) Connections() []PeerID {
	s.mu.Lock()
	eps := make([]Endpoint, 0, len(s.ids))
	for ep := range s.ids {
		eps = append(eps, ep)
	}
	slices.SortFunc(eps, func(a, b Endpoint) int { return a.Compare(b) })
	ids := make([]PeerID, 0, len(eps))
	for _, ep := range eps {
		ids = append(ids, s.ids[ep])
	}
	s.mu.Unlock()
	return ids
}

// OnConnect implements [peer.Handler].
func (s *Service) OnConnect(remote Endpoint) {
	id := s.insert(remote)
	s.emit(Event{Kind: Connected, PeerID: id, Endpoint: remote})
}

// OnAccept implements [peer.Handler].
func (s *Service) OnAccept(remote Endpoint) {
	id := s.insert(remote)
	s.emit(Event{Kind: Connected, PeerID: id, Endpoint: remote, Inbound: true})
}

// OnConnectFailure implements [peer.Handler].
func (s *Service) OnConnectFailure(remote Endpoint) {
	s.emit(Event{Kind: ConnectFailed, Endpoint: remote})
}

// OnReceive implements [peer.Handler].
func (s *Service) OnReceive(remote Endpoint, payload []byte) {
	id, found := s.PeerID(remote)
	if !found {
		s.logUnknown(remote)
		return
	}
	s.emit(Event{Kind: Received, PeerID: id, Endpoint: remote, Payload: payload})
}

// OnDisconnect implements [peer.Handler].
func (s *Service) OnDisconnect(remote Endpoint) {
	s.mu.Lock()
	id, found := s.ids[remote]
	delete(s.ids, remote)
	delete(s.eps, id)
	s.mu.Unlock()
	if !found {
		s.logUnknown(remote)
		return
	}
	s.emit(Event{Kind: Disconnected, PeerID: id, Endpoint: remote})
}

// insert maps the given endpoint to its [PeerID].
func (s *Service) insert(remote Endpoint) PeerID {
	id := NewPeerID(remote)
	s.mu.Lock()
	s.ids[remote] = id
	s.eps[id] = remote
	s.mu.Unlock()
	return id
}

// emit posts an [Event] on the sink.
func (s *Service) emit(ev Event) {
	if s.Logger != nil {
		s.Logger.Debug(
			"serviceEvent",
			slog.String("local", s.peer.Endpoint().String()),
			slog.String("remote", ev.Endpoint.String()),
			slog.String("peerID", ev.PeerID.String()),
			slog.String("kind", ev.Kind.String()),
			slog.Bool("inbound", ev.Inbound),
		)
	}
	s.sink <- ev
}

func (s *Service) logUnknown(remote Endpoint) {
	if s.Logger != nil {
		err := fmt.Errorf("%w: %s", ErrUnknownPeer, remote)
		s.Logger.Warn(
			"serviceEvent",
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.String("local", s.peer.Endpoint().String()),
			slog.String("remote", remote.String()),
		)
	}
}
