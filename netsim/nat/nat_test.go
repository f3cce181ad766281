// SPDX-License-Identifier: GPL-3.0-or-later

package nat_test

import (
	"net/netip"
	"testing"

	"github.com/rbmk-project/mocknet/netsim/event"
	"github.com/rbmk-project/mocknet/netsim/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	self     = netip.MustParseAddrPort("10.0.0.1:5483")
	remote   = netip.MustParseAddrPort("10.0.0.2:5483")
	sameAddr = netip.MustParseAddrPort("10.0.0.2:6000")
	stranger = netip.MustParseAddrPort("10.0.0.3:5483")
)

func inbound(sender event.Endpoint, kind event.Kind) *event.Delivery {
	return &event.Delivery{Sender: sender, Receiver: self, Event: event.New(kind)}
}

func TestMapper(t *testing.T) {
	tests := []struct {
		class nat.Class

		// expectations after sending to remote
		remoteReply    bool
		remoteConnect  bool
		sameAddrReply  bool
		strangerReply  bool
		beforeOutbound bool
	}{
		{nat.None, true, true, true, true, true},
		{nat.FullCone, true, true, true, true, false},
		{nat.AddressRestricted, true, true, true, false, false},
		{nat.PortRestricted, true, true, false, false, false},
		{nat.Symmetric, true, false, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.class.String(), func(t *testing.T) {
			m, err := nat.NewMapper(tt.class, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.class, m.Class())

			accepts := func(d *event.Delivery) bool {
				target, extra := m.Filter(d)
				assert.Empty(t, extra)
				return target == event.ACCEPT
			}

			assert.Equal(t, tt.beforeOutbound, accepts(inbound(remote, event.ConnectSuccess)))

			m.Outbound(remote)
			assert.True(t, m.Mapped(remote))
			assert.Equal(t, tt.remoteReply, accepts(inbound(remote, event.ConnectSuccess)))
			assert.Equal(t, tt.remoteConnect, accepts(inbound(remote, event.Connect)))
			assert.Equal(t, tt.sameAddrReply, accepts(inbound(sameAddr, event.Send)))
			assert.Equal(t, tt.strangerReply, accepts(inbound(stranger, event.Send)))
		})
	}
}

func TestMapperEviction(t *testing.T) {
	m, err := nat.NewMapper(nat.PortRestricted, 2)
	require.NoError(t, err)

	m.Outbound(remote)
	m.Outbound(sameAddr)
	m.Outbound(stranger)

	assert.Equal(t, 2, m.Len())
	assert.False(t, m.Mapped(remote))
	target, _ := m.Filter(inbound(remote, event.Send))
	assert.Equal(t, event.DROP, target)
	target, _ = m.Filter(inbound(stranger, event.Send))
	assert.Equal(t, event.ACCEPT, target)
}

func TestMapperOutboundRevert(t *testing.T) {
	m, err := nat.NewMapper(nat.AddressRestricted, 0)
	require.NoError(t, err)

	t.Run("removes new mappings", func(t *testing.T) {
		unmap := m.Outbound(remote)
		assert.True(t, m.Mapped(remote))
		unmap()
		assert.False(t, m.Mapped(remote))
		assert.Equal(t, 0, m.Len())
		target, _ := m.Filter(inbound(sameAddr, event.Send))
		assert.Equal(t, event.DROP, target)
	})

	t.Run("keeps existing mappings", func(t *testing.T) {
		m.Outbound(remote)
		unmapSame := m.Outbound(sameAddr)
		m.Outbound(remote)()
		unmapSame()
		assert.True(t, m.Mapped(remote))
		assert.False(t, m.Mapped(sameAddr))
		target, _ := m.Filter(inbound(sameAddr, event.Send))
		assert.Equal(t, event.ACCEPT, target)
	})
}

func TestNewMapperErrors(t *testing.T) {
	_, err := nat.NewMapper(nat.Class(42), 0)
	assert.Error(t, err)
	_, err = nat.NewMapper(nat.None, -1)
	assert.Error(t, err)
}

func TestFirewall(t *testing.T) {
	t.Run("block list drops everything", func(t *testing.T) {
		fw := nat.NewFirewall(false)
		fw.Block(remote)
		for _, kind := range event.Kinds() {
			target, extra := fw.Filter(inbound(remote, kind))
			assert.Equal(t, event.DROP, target, kind.String())
			assert.Empty(t, extra)
		}
		target, _ := fw.Filter(inbound(stranger, event.Connect))
		assert.Equal(t, event.ACCEPT, target)

		fw.Unblock(remote)
		target, _ = fw.Filter(inbound(remote, event.Connect))
		assert.Equal(t, event.ACCEPT, target)
	})

	t.Run("allow list only restricts connect", func(t *testing.T) {
		fw := nat.NewFirewall(false)
		fw.Allow(remote)
		target, _ := fw.Filter(inbound(remote, event.Connect))
		assert.Equal(t, event.ACCEPT, target)
		target, _ = fw.Filter(inbound(stranger, event.Connect))
		assert.Equal(t, event.DROP, target)
		target, _ = fw.Filter(inbound(stranger, event.Send))
		assert.Equal(t, event.ACCEPT, target)
	})

	t.Run("rejecting firewall answers connect", func(t *testing.T) {
		fw := nat.NewFirewall(true)
		fw.Block(remote)
		target, extra := fw.Filter(inbound(remote, event.Connect))
		assert.Equal(t, event.DROP, target)
		require.Len(t, extra, 1)
		assert.Equal(t, self, extra[0].Sender)
		assert.Equal(t, remote, extra[0].Receiver)
		assert.Equal(t, event.ConnectFailure, extra[0].Event.Kind)

		target, extra = fw.Filter(inbound(remote, event.Send))
		assert.Equal(t, event.DROP, target)
		assert.Empty(t, extra)
	})
}
