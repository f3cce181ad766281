// SPDX-License-Identifier: GPL-3.0-or-later

package netsim_test

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rbmk-project/mocknet/netsim"
	"github.com/rbmk-project/mocknet/netsim/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScenario(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		s, err := netsim.NewScenario(nil)
		require.NoError(t, err)
		assert.NotNil(t, s.Network())
		assert.Nil(t, s.Metrics())
		assert.NoError(t, s.Close())
	})

	t.Run("with metrics", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		s, err := netsim.NewScenario(&netsim.ScenarioConfig{Registerer: reg})
		require.NoError(t, err)
		assert.NotNil(t, s.Metrics())

		// Registering the same collectors twice must fail.
		_, err = netsim.NewScenario(&netsim.ScenarioConfig{Registerer: reg})
		assert.Error(t, err)
		assert.Panics(t, func() {
			netsim.MustNewScenario(&netsim.ScenarioConfig{Registerer: reg})
		})
	})
}

func TestScenarioNewPeer(t *testing.T) {
	s := netsim.MustNewScenario(nil)
	defer s.Close()

	t.Run("sequential allocation", func(t *testing.T) {
		p0 := s.MustNewPeer(&netsim.PeerConfig{})
		p1 := s.MustNewPeer(&netsim.PeerConfig{})
		assert.Equal(t, "10.0.0.1:5483", p0.Endpoint().String())
		assert.Equal(t, "10.0.0.2:5483", p1.Endpoint().String())
	})

	t.Run("explicit endpoints are skipped by the allocator", func(t *testing.T) {
		ep := netip.MustParseAddrPort("10.0.0.3:5483")
		p2 := s.MustNewPeer(&netsim.PeerConfig{Endpoint: ep})
		p3 := s.MustNewPeer(&netsim.PeerConfig{})
		assert.Equal(t, ep, p2.Endpoint())
		assert.Equal(t, "10.0.0.4:5483", p3.Endpoint().String())
	})

	t.Run("duplicate endpoint", func(t *testing.T) {
		_, err := s.NewPeer(&netsim.PeerConfig{Endpoint: netip.MustParseAddrPort("10.0.0.1:5483")})
		assert.True(t, errors.Is(err, event.ErrDuplicateEndpoint))
		assert.True(t, errors.Is(err, event.EADDRINUSE))
	})

	t.Run("zero port", func(t *testing.T) {
		_, err := s.NewPeer(&netsim.PeerConfig{Endpoint: netip.MustParseAddrPort("10.0.0.9:0")})
		assert.Error(t, err)
		assert.Panics(t, func() {
			s.MustNewPeer(&netsim.PeerConfig{Endpoint: netip.MustParseAddrPort("10.0.0.9:0")})
		})
	})

	assert.Len(t, s.Network().Endpoints(), 4)
}

func TestScenarioNewService(t *testing.T) {
	s := netsim.MustNewScenario(nil)
	defer s.Close()

	p := s.MustNewPeer(&netsim.PeerConfig{})
	svc := s.MustNewService(p, make(chan netsim.ServiceEvent, 1))
	assert.Equal(t, uint16(netsim.DefaultPort), svc.DiscoveryPort())
	assert.Equal(t, p.Endpoint(), svc.LocalEndpoint())

	t.Run("already bound", func(t *testing.T) {
		_, err := s.NewService(p, make(chan netsim.ServiceEvent, 1))
		assert.True(t, errors.Is(err, event.ErrAlreadyBound))
	})

	t.Run("nil sink", func(t *testing.T) {
		other := s.MustNewPeer(&netsim.PeerConfig{})
		assert.Panics(t, func() {
			s.MustNewService(other, nil)
		})
	})
}

func TestScenarioClose(t *testing.T) {
	s := netsim.MustNewScenario(nil)
	p0 := s.MustNewPeer(&netsim.PeerConfig{})
	p1 := s.MustNewPeer(&netsim.PeerConfig{})

	require.NoError(t, s.Close())
	assert.Empty(t, s.Network().Endpoints())

	err := s.Network().Send(p0.Endpoint(), p1.Endpoint(), event.New(event.Connect))
	assert.True(t, errors.Is(err, event.ErrNetworkClosed))

	_, err = s.NewPeer(&netsim.PeerConfig{})
	assert.True(t, errors.Is(err, event.ErrNetworkClosed))

	assert.NoError(t, s.Close())
}

func TestScenarioMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := netsim.MustNewScenario(&netsim.ScenarioConfig{Registerer: reg})
	defer s.Close()

	server := s.MustNewPeer(&netsim.PeerConfig{ListeningTCP: true, NAT: netsim.NATPortRestricted})
	client := s.MustNewPeer(&netsim.PeerConfig{})
	serverEvents := make(chan netsim.ServiceEvent, 4)
	clientEvents := make(chan netsim.ServiceEvent, 4)
	s.MustNewService(server, serverEvents)
	cs := s.MustNewService(client, clientEvents)

	// The server is behind a NAT, hence the connect is dropped.
	require.NoError(t, cs.Connect(server.Endpoint()))
	assert.Equal(t, 1, s.MustProcessEvents())
	assert.Empty(t, serverEvents)
	assert.Empty(t, clientEvents)

	m := s.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EnqueuedTotal.WithLabelValues("connect")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedTotal.WithLabelValues("connect", "peer")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.DeliveredTotal.WithLabelValues("connectSuccess")))
}
