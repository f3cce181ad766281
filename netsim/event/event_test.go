// SPDX-License-Identifier: GPL-3.0-or-later

package event_test

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/rbmk-project/mocknet/netsim/event"
	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind event.Kind
		want string
	}{
		{event.Connect, "connect"},
		{event.ConnectSuccess, "connectSuccess"},
		{event.ConnectFailure, "connectFailure"},
		{event.Disconnect, "disconnect"},
		{event.Send, "send"},
		{event.Kind(0), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestNewSend(t *testing.T) {
	buf := []byte("hello")
	ev := event.NewSend(buf)
	buf[0] = 'J'
	assert.Equal(t, event.Send, ev.Kind)
	assert.Equal(t, []byte("hello"), ev.Payload)
	assert.Equal(t, "send length=5", ev.String())
}

func TestDeliveryString(t *testing.T) {
	d := &event.Delivery{
		Seq:      7,
		Sender:   netip.MustParseAddrPort("10.0.0.1:5483"),
		Receiver: netip.MustParseAddrPort("10.0.0.2:5483"),
		Event:    event.New(event.Connect),
	}
	assert.Equal(t, "#7 10.0.0.1:5483 -> 10.0.0.2:5483 connect", d.String())
}

func TestChain(t *testing.T) {
	d := &event.Delivery{Event: event.New(event.Connect)}
	inject := &event.Delivery{Event: event.New(event.ConnectFailure)}

	accept := event.FilterFunc(func(*event.Delivery) (event.Target, []*event.Delivery) {
		return event.ACCEPT, nil
	})
	reject := event.FilterFunc(func(*event.Delivery) (event.Target, []*event.Delivery) {
		return event.DROP, []*event.Delivery{inject}
	})
	var called bool
	never := event.FilterFunc(func(*event.Delivery) (event.Target, []*event.Delivery) {
		called = true
		return event.ACCEPT, nil
	})

	t.Run("empty chain accepts", func(t *testing.T) {
		target, extra := event.Chain(nil).Filter(d)
		assert.Equal(t, event.ACCEPT, target)
		assert.Empty(t, extra)
	})

	t.Run("stops at first drop", func(t *testing.T) {
		target, extra := event.Chain{accept, reject, never}.Filter(d)
		assert.Equal(t, event.DROP, target)
		assert.Equal(t, []*event.Delivery{inject}, extra)
		assert.False(t, called)
	})
}

func TestErrors(t *testing.T) {
	tests := []struct {
		err   error
		errno error
	}{
		{event.ErrDuplicateEndpoint, event.EADDRINUSE},
		{event.ErrUnknownEndpoint, event.EHOSTUNREACH},
		{event.ErrNetworkClosed, event.ENETDOWN},
		{event.ErrNoServiceBound, event.EINVAL},
		{event.ErrAlreadyBound, event.EISCONN},
		{event.ErrUnknownPeer, event.ENOTCONN},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.errno))
		})
	}
}
