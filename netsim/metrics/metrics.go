// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics counts the simulated traffic using Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rbmk-project/mocknet/netsim/event"
	"github.com/rbmk-project/mocknet/netsim/network"
	"github.com/rbmk-project/mocknet/netsim/peer"
)

// Metrics observes a network and its peers.
//
// Construct using [New].
type Metrics struct {
	// DeliveredTotal counts the deliveries by kind.
	DeliveredTotal *prometheus.CounterVec

	// DroppedTotal counts the dropped deliveries by kind and by
	// who dropped them ("network" or "peer").
	DroppedTotal *prometheus.CounterVec

	// EnqueuedTotal counts the queued deliveries by kind.
	EnqueuedTotal *prometheus.CounterVec
}

var (
	_ network.Observer = &Metrics{}
	_ peer.Observer    = &Metrics{}
)

// New creates the collectors and registers them with the given registerer.
//
// It returns an error if the collectors are already registered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		DeliveredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mocknet",
			Name:      "events_delivered_total",
			Help:      "Number of events delivered to their receiver.",
		}, []string{"kind"}),
		DroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mocknet",
			Name:      "events_dropped_total",
			Help:      "Number of events dropped by filters.",
		}, []string{"kind", "by"}),
		EnqueuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mocknet",
			Name:      "events_enqueued_total",
			Help:      "Number of events queued for delivery.",
		}, []string{"kind"}),
	}
	for _, c := range []prometheus.Collector{m.DeliveredTotal, m.DroppedTotal, m.EnqueuedTotal} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Enqueued implements [network.Observer].
func (m *Metrics) Enqueued(d *event.Delivery) {
	m.EnqueuedTotal.WithLabelValues(d.Event.Kind.String()).Inc()
}

// Delivered implements [network.Observer].
func (m *Metrics) Delivered(d *event.Delivery) {
	m.DeliveredTotal.WithLabelValues(d.Event.Kind.String()).Inc()
}

// DroppedByNetwork implements [network.Observer].
func (m *Metrics) DroppedByNetwork(d *event.Delivery) {
	m.DroppedTotal.WithLabelValues(d.Event.Kind.String(), "network").Inc()
}

// DroppedByPeer implements [peer.Observer].
func (m *Metrics) DroppedByPeer(d *event.Delivery) {
	m.DroppedTotal.WithLabelValues(d.Event.Kind.String(), "peer").Inc()
}
