// SPDX-License-Identifier: GPL-3.0-or-later

// Package event contains [Event], [Endpoint], and the related definitions.
package event

import (
	"fmt"
	"net/netip"
)

// Endpoint is the address of a simulated peer.
//
// Endpoints are only used as lookup keys. Filters in the nat
// package additionally interpret the address and port split.
type Endpoint = netip.AddrPort

// Kind is the kind of an [Event].
type Kind uint8

const (
	// Connect is a request to establish a logical connection.
	Connect = Kind(iota + 1)

	// ConnectSuccess is the positive reply to [Connect].
	ConnectSuccess

	// ConnectFailure is the negative reply to [Connect].
	ConnectFailure

	// Disconnect notifies that the sender tore down the connection.
	Disconnect

	// Send carries an opaque payload.
	Send
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case Connect:
		return "connect"

	case ConnectSuccess:
		return "connectSuccess"

	case ConnectFailure:
		return "connectFailure"

	case Disconnect:
		return "disconnect"

	case Send:
		return "send"

	default:
		return "unknown"
	}
}

// Kinds returns all the valid kinds in declaration order.
func Kinds() []Kind {
	return []Kind{Connect, ConnectSuccess, ConnectFailure, Disconnect, Send}
}

// Event is a single unit of simulated network activity.
//
// Construct using [New] or [NewSend]. Once created, an event
// is never modified: receivers get their own copy.
type Event struct {
	// Kind is the event kind.
	Kind Kind

	// Payload is the payload carried by [Send] events.
	Payload []byte
}

// New creates a new payload-less [Event] of the given kind.
func New(kind Kind) Event {
	return Event{Kind: kind}
}

// NewSend creates a new [Send] [Event].
//
// We copy the payload, so the caller can reuse the buffer.
func NewSend(payload []byte) Event {
	return Event{Kind: Send, Payload: append([]byte{}, payload...)}
}

// String returns the string representation of the event.
func (ev Event) String() string {
	if ev.Kind == Send {
		return fmt.Sprintf("%s length=%d", ev.Kind, len(ev.Payload))
	}
	return ev.Kind.String()
}

// Delivery is an [Event] in flight between two endpoints.
type Delivery struct {
	// Seq is the sequence number assigned when the event was queued.
	//
	// Deliveries injected by filters get their number when queued.
	Seq uint64

	// Sender is the source endpoint.
	Sender Endpoint

	// Receiver is the destination endpoint.
	Receiver Endpoint

	// Event is the event being delivered.
	Event Event
}

// String returns the string representation of the delivery.
func (d *Delivery) String() string {
	return fmt.Sprintf("#%d %s -> %s %s", d.Seq, d.Sender, d.Receiver, d.Event)
}
