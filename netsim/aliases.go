//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Aliases
//

package netsim

import (
	"github.com/rbmk-project/mocknet/netsim/event"
	"github.com/rbmk-project/mocknet/netsim/nat"
	"github.com/rbmk-project/mocknet/netsim/network"
	"github.com/rbmk-project/mocknet/netsim/peer"
	"github.com/rbmk-project/mocknet/netsim/service"
)

// Endpoint is an alias for [event.Endpoint].
type Endpoint = event.Endpoint

// Event is an alias for [event.Event].
type Event = event.Event

// Filter is an alias for [event.Filter].
type Filter = event.Filter

// Network is an alias for [network.Network].
type Network = network.Network

// Peer is an alias for [peer.Peer].
type Peer = peer.Peer

// Service is an alias for [service.Service].
type Service = service.Service

// ServiceInterface is an alias for [service.Interface].
type ServiceInterface = service.Interface

// ServiceEvent is an alias for [service.Event].
type ServiceEvent = service.Event

// PeerID is an alias for [service.PeerID].
type PeerID = service.PeerID

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

// Service event kinds.
const (
	Connected     = service.Connected
	ConnectFailed = service.ConnectFailed
	Received      = service.Received
	Disconnected  = service.Disconnected
)

// NewNetwork is an alias for [network.New].
var NewNetwork = network.New

// NewFirewall is an alias for [nat.NewFirewall].
var NewFirewall = nat.NewFirewall

// NewPeerID is an alias for [service.NewPeerID].
var NewPeerID = service.NewPeerID
