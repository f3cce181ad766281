// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package peer simulates the network-facing behavior of a single host.

A [*Peer] registers itself with a [Network] under its own endpoint, sends
events through it, and receives the events addressed to it. Inbound events
first go through the filters (NAT, firewall, and connection state) and, if
accepted, drive the connection state machine, which notifies the bound
[Handler] (usually a service.Service).

The connection state is kept per remote endpoint: connecting to or
disconnecting from a remote never affects the others. Only the listening
flag is global to the peer.
*/
package peer

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"

	"github.com/rbmk-project/common/errclass"
	"github.com/rbmk-project/mocknet/netsim/event"
	"github.com/rbmk-project/mocknet/netsim/nat"
	"github.com/rbmk-project/mocknet/netsim/network"
)

// Endpoint is an alias for [event.Endpoint].
type Endpoint = event.Endpoint

// Event is an alias for [event.Event].
type Event = event.Event

var (
	// ErrNoServiceBound is an alias for [event.ErrNoServiceBound].
	ErrNoServiceBound = event.ErrNoServiceBound

	// ErrAlreadyBound is an alias for [event.ErrAlreadyBound].
	ErrAlreadyBound = event.ErrAlreadyBound
)

// Network is the [*network.Network] as seen by a [*Peer].
type Network interface {
	Register(ep Endpoint, rx network.Receiver) error
	Deregister(ep Endpoint) error
	Send(sender, receiver Endpoint, ev Event) error
}

var _ Network = &network.Network{}

// Handler receives the notifications of a [*Peer].
//
// The methods run on the goroutine draining the network.
type Handler interface {
	// OnConnect is called when our Connect succeeded.
	OnConnect(remote Endpoint)

	// OnConnectFailure is called when our Connect failed.
	OnConnectFailure(remote Endpoint)

	// OnAccept is called when we accepted an inbound Connect.
	OnAccept(remote Endpoint)

	// OnReceive is called when a connected remote sent us a payload.
	OnReceive(remote Endpoint, payload []byte)

	// OnDisconnect is called when a connected remote disconnected.
	OnDisconnect(remote Endpoint)
}

// ConnState is the state of the connection with a remote endpoint.
type ConnState int

const (
	// NotConnected means there is no connection.
	NotConnected = ConnState(iota)

	// Connecting means we sent Connect and await the reply.
	Connecting

	// Connected means the connection is established.
	Connected
)

// String returns the string representation of the state.
func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "notConnected"
	}
}

// Peer is a simulated host.
//
// Construct using [New].
type Peer struct {
	// closed indicates that Close has been called.
	closed bool

	// config is the peer configuration.
	config Config

	// ep is the peer endpoint.
	ep Endpoint

	// filters contains the NAT and the configured filters.
	filters event.Chain

	// handler is the bound handler.
	handler Handler

	// listening is the listening flag.
	listening bool

	// mapper models the NAT mappings.
	mapper *nat.Mapper

	// mu protects closed, handler, listening, and states.
	mu sync.Mutex

	// nw is the network we're attached to.
	nw Network

	// states contains the state of each non-idle connection.
	states map[Endpoint]ConnState
}

// New creates a new [*Peer] and registers it with the given [Network].
//
// The returned peer has no bound [Handler]: bind one with [*Peer.Bind]
// before draining events addressed to this peer.
func New(nw Network, ep Endpoint, config Config) (*Peer, error) {
	if !ep.IsValid() {
		return nil, fmt.Errorf("%w: %s", event.EINVAL, ep)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	mapper, err := nat.NewMapper(config.NAT, config.NATTableSize)
	if err != nil {
		return nil, err
	}
	p := &Peer{
		config:    config,
		ep:        ep,
		filters:   append(event.Chain{mapper}, config.Filters...),
		listening: config.ListeningTCP,
		mapper:    mapper,
		nw:        nw,
		states:    make(map[Endpoint]ConnState),
	}
	if err := nw.Register(ep, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Endpoint returns the peer endpoint.
func (p *Peer) Endpoint() Endpoint {
	return p.ep
}

// Bind binds the [Handler]. The binding can be set just once.
func (p *Peer) Bind(h Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handler != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyBound, p.ep)
	}
	p.handler = h
	return nil
}

// StartListening causes the peer to accept inbound connections.
func (p *Peer) StartListening() {
	p.setListening(true)
}

// StopListening causes the peer to reject inbound connections.
func (p *Peer) StopListening() {
	p.setListening(false)
}

func (p *Peer) setListening(value bool) {
	p.mu.Lock()
	p.listening = value
	p.mu.Unlock()
}

// Listening returns whether the peer accepts inbound connections.
func (p *Peer) Listening() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listening
}

// State returns the state of the connection with the given remote.
func (p *Peer) State(remote Endpoint) ConnState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.states[remote]
}

// Remotes returns the remotes in the given state in ascending order.
func (p *Peer) Remotes(state ConnState) []Endpoint {
	p.mu.Lock()
	var eps []Endpoint
	for ep, st := range p.states {
		if st == state {
			eps = append(eps, ep)
		}
	}
	p.mu.Unlock()
	slices.SortFunc(eps, func(a, b Endpoint) int { return a.Compare(b) })
	return eps
}

// SendTo sends an event to the given receiver through the [Network].
//
// Sending Connect moves the remote to [Connecting] and sending Disconnect
// moves it to [NotConnected]. Any outbound event creates a NAT mapping
// towards the receiver. When the network refuses the event, the state and
// the mapping are restored. After Close, this method returns [net.ErrClosed].
func (p *Peer) SendTo(receiver Endpoint, ev Event) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return net.ErrClosed
	}
	prev, hadPrev := p.states[receiver]
	switch ev.Kind {
	case event.Connect:
		p.states[receiver] = Connecting
	case event.Disconnect:
		delete(p.states, receiver)
	}
	p.mu.Unlock()

	// Map before sending, since a concurrent driver may deliver the reply
	// before Send returns.
	unmap := p.mapper.Outbound(receiver)
	if err := p.nw.Send(p.ep, receiver, ev); err != nil {
		unmap()
		p.restoreState(receiver, prev, hadPrev)
		return err
	}
	return nil
}

// restoreState restores the state after a failed send.
func (p *Peer) restoreState(remote Endpoint, prev ConnState, hadPrev bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if hadPrev {
		p.states[remote] = prev
		return
	}
	delete(p.states, remote)
}

// Disconnect tears down the connection with the given remote.
func (p *Peer) Disconnect(remote Endpoint) error {
	return p.SendTo(remote, event.New(event.Disconnect))
}

var _ network.Receiver = &Peer{}

// ReceiveFrom implements [network.Receiver].
//
// Filtered events are dropped without callbacks or state changes and
// without any reply, except for the deliveries the filters inject
// themselves (e.g., the ConnectFailure of a rejecting [*nat.Firewall]),
// which are sent on behalf of the peer before returning.
//
// After Close, this method returns [network.ErrUnknownEndpoint], as if the
// network had not found the peer when delivering.
func (p *Peer) ReceiveFrom(sender Endpoint, ev Event) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return fmt.Errorf("%w: %s", event.ErrUnknownEndpoint, p.ep)
	}

	d := &event.Delivery{Sender: sender, Receiver: p.ep, Event: ev}
	target, injected := p.filter(d)
	for _, inj := range injected {
		if err := p.nw.Send(inj.Sender, inj.Receiver, inj.Event); err != nil {
			return err
		}
	}
	if target == event.DROP {
		p.logDrop(d)
		if p.config.Observer != nil {
			p.config.Observer.DroppedByPeer(d)
		}
		return nil
	}
	return p.ProcessEvent(sender, ev)
}

// FilterEvent returns whether the peer would accept the given event.
//
// The result only depends on the peer state and configuration. Calling
// this method has no side effects.
func (p *Peer) FilterEvent(sender Endpoint, ev Event) bool {
	target, _ := p.filter(&event.Delivery{Sender: sender, Receiver: p.ep, Event: ev})
	return target == event.ACCEPT
}

// filter applies the NAT, the configured filters, and the state policy.
func (p *Peer) filter(d *event.Delivery) (event.Target, []*event.Delivery) {
	target, injected := p.filters.Filter(d)
	if target == event.DROP || !p.expected(d) {
		return event.DROP, injected
	}
	return event.ACCEPT, injected
}

// expected returns whether the event makes sense given the state
// of the connection with the sender. Replies are only expected while
// connecting, while payloads and disconnections require a connection.
func (p *Peer) expected(d *event.Delivery) bool {
	p.mu.Lock()
	state := p.states[d.Sender]
	p.mu.Unlock()
	switch d.Event.Kind {
	case event.Connect:
		return true
	case event.ConnectSuccess, event.ConnectFailure:
		return state == Connecting
	case event.Send, event.Disconnect:
		return state == Connected
	default:
		return false
	}
}

// ProcessEvent runs the state machine for an accepted event.
//
// It returns [ErrNoServiceBound] when there is no bound [Handler].
func (p *Peer) ProcessEvent(sender Endpoint, ev Event) error {
	p.mu.Lock()
	h := p.handler
	if h == nil {
		p.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrNoServiceBound, p.ep)
		p.logFailure(sender, ev, err)
		return err
	}

	switch ev.Kind {
	case event.Connect:
		listening, connected := p.listening, p.states[sender] == Connected
		p.mu.Unlock()
		if !listening {
			// A Connect from a connected remote means the remote lost
			// the old connection, which is therefore gone.
			p.setState(sender, NotConnected)
			if connected {
				h.OnDisconnect(sender)
			}
			return p.SendTo(sender, event.New(event.ConnectFailure))
		}
		if err := p.SendTo(sender, event.New(event.ConnectSuccess)); err != nil {
			return err
		}
		p.setState(sender, Connected)
		h.OnAccept(sender)

	case event.ConnectSuccess:
		p.mu.Unlock()
		p.setState(sender, Connected)
		h.OnConnect(sender)

	case event.ConnectFailure:
		p.mu.Unlock()
		p.setState(sender, NotConnected)
		h.OnConnectFailure(sender)

	case event.Disconnect:
		p.mu.Unlock()
		p.setState(sender, NotConnected)
		h.OnDisconnect(sender)

	case event.Send:
		p.mu.Unlock()
		h.OnReceive(sender, ev.Payload)

	default:
		p.mu.Unlock()
		return fmt.Errorf("%w: unknown event kind %d", event.EINVAL, ev.Kind)
	}
	return nil
}

// setState sets the state of the connection with the given remote.
func (p *Peer) setState(remote Endpoint, state ConnState) {
	p.mu.Lock()
	if state == NotConnected {
		delete(p.states, remote)
	} else {
		p.states[remote] = state
	}
	p.mu.Unlock()

	if p.config.Logger != nil {
		p.config.Logger.Debug(
			"peerStateChange",
			slog.String("local", p.ep.String()),
			slog.String("remote", remote.String()),
			slog.String("state", state.String()),
		)
	}
}

// Close deregisters the peer from the [Network].
//
// This method is idempotent.
func (p *Peer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	if err := p.nw.Deregister(p.ep); err != nil && !errors.Is(err, event.ErrUnknownEndpoint) {
		return err
	}
	return nil
}

func (p *Peer) logDrop(d *event.Delivery) {
	if p.config.Logger != nil {
		p.config.Logger.Info(
			"peerFilter",
			slog.String("local", p.ep.String()),
			slog.String("remote", d.Sender.String()),
			slog.String("kind", d.Event.Kind.String()),
			slog.String("nat", p.mapper.Class().String()),
		)
	}
}

func (p *Peer) logFailure(sender Endpoint, ev Event, err error) {
	if p.config.Logger != nil {
		p.config.Logger.Error(
			"peerProcess",
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.String("local", p.ep.String()),
			slog.String("remote", sender.String()),
			slog.String("kind", ev.Kind.String()),
		)
	}
}
