// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rbmk-project/mocknet/netsim/event"
)

// PeerID identifies a remote peer at the application level.
//
// Unlike [Endpoint], which is a transport address, a PeerID is what the
// application layer uses to refer to connected peers.
type PeerID uuid.UUID

// peerIDNamespace is the UUID namespace of [PeerID].
var peerIDNamespace = uuid.MustParse("6ba7b812-9dad-11d1-80b4-00c04fd430c8")

// NewPeerID returns the [PeerID] of the given [Endpoint].
//
// The result is a name-based UUID, so the same endpoint always maps to
// the same identifier and simulation runs are reproducible.
func NewPeerID(ep Endpoint) PeerID {
	return PeerID(uuid.NewSHA1(peerIDNamespace, []byte(ep.String())))
}

// String returns the string representation of the peer ID.
func (id PeerID) String() string {
	return uuid.UUID(id).String()
}

// EventKind is the kind of an application [Event].
type EventKind int

const (
	// Connected means a connection has been established. The Inbound
	// field tells whether we accepted it or we initiated it.
	Connected = EventKind(iota + 1)

	// ConnectFailed means an outbound connection attempt failed.
	ConnectFailed

	// Received means a connected peer sent us a payload.
	Received

	// Disconnected means a connected peer went away.
	Disconnected
)

// String returns the string representation of the kind.
func (k EventKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case ConnectFailed:
		return "connectFailed"
	case Received:
		return "received"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is an application-level event emitted by a [*Service].
type Event struct {
	// Kind is the event kind.
	Kind EventKind

	// PeerID is the remote peer ID. It is the zero value for
	// [ConnectFailed], since no connection exists.
	PeerID PeerID

	// Endpoint is the remote endpoint.
	Endpoint Endpoint

	// Inbound is true for [Connected] events of accepted connections.
	Inbound bool

	// Payload is the payload of [Received] events.
	Payload []byte
}

// String returns the string representation of the event.
func (ev Event) String() string {
	switch ev.Kind {
	case Received:
		return fmt.Sprintf("%s %s length=%d", ev.Kind, ev.Endpoint, len(ev.Payload))
	case Connected:
		return fmt.Sprintf("%s %s inbound=%v", ev.Kind, ev.Endpoint, ev.Inbound)
	default:
		return fmt.Sprintf("%s %s", ev.Kind, ev.Endpoint)
	}
}

// Endpoint is an alias for [event.Endpoint].
type Endpoint = event.Endpoint
