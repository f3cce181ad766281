// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package network implements the simulated network routing events between endpoints.

A [*Network] owns a routing table mapping each [Endpoint] to a [Receiver] and
a FIFO queue of pending deliveries. [*Network.Send] only queues; delivery happens
when the test driver invokes [*Network.ProcessEvents] or
[*Network.WaitAndProcessEvents]. This allows tests to decide exactly when
traffic moves and makes runs deterministic.

# Drain Policy

Events queued while delivering (e.g., the ConnectSuccess a peer sends while
processing a Connect) are appended to the same queue and delivered by the same
drain. Therefore, when ProcessEvents returns successfully, all message chains
have settled and the queue is empty.

# Concurrency

A single mutex protects the routing table and the queue; a condition variable
on the same mutex implements waiting. A Send returning nil happens before any
drain that delivers the queued event. Deliveries run on the draining goroutine
with the mutex released, so receivers may Send and may reentrantly call
ProcessEvents on the same goroutine. Concurrent drains from distinct goroutines
are not serialized and make the delivery order nondeterministic: use a
single driver goroutine.
*/
package network

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/rbmk-project/common/errclass"
	"github.com/rbmk-project/mocknet/netsim/event"
)

// Endpoint is an alias for [event.Endpoint].
type Endpoint = event.Endpoint

// Event is an alias for [event.Event].
type Event = event.Event

// Delivery is an alias for [event.Delivery].
type Delivery = event.Delivery

var (
	// ErrDuplicateEndpoint is an alias for [event.ErrDuplicateEndpoint].
	ErrDuplicateEndpoint = event.ErrDuplicateEndpoint

	// ErrUnknownEndpoint is an alias for [event.ErrUnknownEndpoint].
	ErrUnknownEndpoint = event.ErrUnknownEndpoint

	// ErrNetworkClosed is an alias for [event.ErrNetworkClosed].
	ErrNetworkClosed = event.ErrNetworkClosed
)

// Receiver receives deliveries from the [*Network].
type Receiver interface {
	// ReceiveFrom delivers an event sent by the given endpoint.
	//
	// A non-nil error aborts the current drain.
	ReceiveFrom(sender Endpoint, ev Event) error
}

// Observer observes the traffic flowing through the [*Network].
//
// Methods are invoked synchronously, so implementations must be quick
// and must not call back into the [*Network].
type Observer interface {
	// Enqueued is called after a delivery has been queued.
	Enqueued(d *Delivery)

	// Delivered is called after a delivery reached its receiver.
	Delivered(d *Delivery)

	// DroppedByNetwork is called when the interceptor drops a delivery.
	DroppedByNetwork(d *Delivery)
}

// Network routes events between registered endpoints.
//
// Construct using [New]. Set the optional fields before using the
// network and do not modify them afterwards.
type Network struct {
	// Interceptor is the optional network-wide [event.Filter] applied to
	// each delivery right before reaching the receiver. Deliveries it
	// returns are queued after the current tail.
	Interceptor event.Filter

	// Logger is the optional structured logger. If this field
	// is nil, we will not be emitting structured logs.
	Logger *slog.Logger

	// Observer is the optional [Observer].
	Observer Observer

	// closed indicates that Close has been called.
	closed bool

	// cond is signalled when the queue grows or the network closes.
	cond *sync.Cond

	// mu protects closed, nextseq, peers, and queue.
	mu sync.Mutex

	// nextseq is the next sequence number.
	nextseq uint64

	// peers is the routing table.
	peers map[Endpoint]Receiver

	// queue contains the pending deliveries in FIFO order.
	queue []*Delivery
}

// New creates a new [*Network].
func New() *Network {
	n := &Network{
		peers: make(map[Endpoint]Receiver),
	}
	n.cond = sync.NewCond(&n.mu)
	return n
}

// Register adds a [Receiver] to the routing table.
//
// It returns [ErrDuplicateEndpoint] if the endpoint is already registered.
func (n *Network) Register(ep Endpoint, rx Receiver) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrNetworkClosed
	}
	if _, found := n.peers[ep]; found {
		return fmt.Errorf("%w: %s", ErrDuplicateEndpoint, ep)
	}
	n.peers[ep] = rx
	return nil
}

// Deregister removes an endpoint from the routing table.
//
// Pending deliveries addressed to the endpoint are not cancelled and
// will fail with [ErrUnknownEndpoint] when the network tries to deliver them.
func (n *Network) Deregister(ep Endpoint) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, found := n.peers[ep]; !found {
		return fmt.Errorf("%w: %s", ErrUnknownEndpoint, ep)
	}
	delete(n.peers, ep)
	return nil
}

// Endpoints returns the registered endpoints in ascending order.
func (n *Network) Endpoints() []Endpoint {
	n.mu.Lock()
	eps := make([]Endpoint, 0, len(n.peers))
	for ep := range n.peers {
		eps = append(eps, ep)
	}
	n.mu.Unlock()
	slices.SortFunc(eps, func(a, b Endpoint) int { return a.Compare(b) })
	return eps
}

// Pending returns the number of queued deliveries.
func (n *Network) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

// Send queues an event from sender to receiver.
//
// This method never blocks and never delivers. It returns [ErrUnknownEndpoint]
// if the receiver is not registered and [ErrNetworkClosed] after Close.
func (n *Network) Send(sender, receiver Endpoint, ev Event) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrNetworkClosed
	}
	if _, found := n.peers[receiver]; !found {
		n.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrUnknownEndpoint, receiver)
		n.logSendFailure(sender, receiver, ev, err)
		return err
	}
	d := n.enqueueLocked(&Delivery{Sender: sender, Receiver: receiver, Event: ev})
	n.mu.Unlock()

	n.observeEnqueued(d)
	return nil
}

// enqueueLocked assigns the sequence number, appends the delivery
// to the queue, and wakes up the waiters.
//
// The caller must hold the mu lock.
func (n *Network) enqueueLocked(d *Delivery) *Delivery {
	d.Seq = n.nextseq
	n.nextseq++
	n.queue = append(n.queue, d)
	n.cond.Broadcast()
	return d
}

// ProcessEvents delivers all the pending events in FIFO order, including
// the ones queued while delivering, and returns the number of deliveries.
//
// The drain stops at the first error, which is either [ErrUnknownEndpoint], if
// the receiver has been deregistered, or the error returned by the receiver.
// The failed delivery is consumed, while the following ones remain queued.
func (n *Network) ProcessEvents() (int, error) {
	var count int
	for {
		d, rx, found := n.dequeue()
		if d == nil {
			return count, nil
		}
		if !found {
			err := fmt.Errorf("delivering %s: %w", d, ErrUnknownEndpoint)
			n.logDeliverFailure(d, err)
			return count, err
		}
		delivered, err := n.deliver(d, rx)
		if err != nil {
			err = fmt.Errorf("delivering %s: %w", d, err)
			n.logDeliverFailure(d, err)
			return count, err
		}
		if delivered {
			count++
		}
	}
}

// dequeue pops the head of the queue and resolves its receiver.
func (n *Network) dequeue() (*Delivery, Receiver, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.queue) <= 0 {
		return nil, nil, false
	}
	d := n.queue[0]
	n.queue[0] = nil
	n.queue = n.queue[1:]
	rx, found := n.peers[d.Receiver]
	return d, rx, found
}

// deliver runs the interceptor and hands the delivery to the receiver.
//
// The caller must not hold the mu lock.
func (n *Network) deliver(d *Delivery, rx Receiver) (bool, error) {
	if n.Interceptor != nil {
		target, injected := n.Interceptor.Filter(d)
		if err := n.inject(injected); err != nil {
			return false, err
		}
		if target == event.DROP {
			n.logDrop(d)
			if n.Observer != nil {
				n.Observer.DroppedByNetwork(d)
			}
			return false, nil
		}
	}

	n.logDeliver(d)
	if err := rx.ReceiveFrom(d.Sender, d.Event); err != nil {
		return false, err
	}
	if n.Observer != nil {
		n.Observer.Delivered(d)
	}
	return true, nil
}

// inject queues the deliveries returned by the interceptor.
func (n *Network) inject(injected []*Delivery) error {
	for _, d := range injected {
		if err := n.Send(d.Sender, d.Receiver, d.Event); err != nil {
			return fmt.Errorf("injecting %s: %w", d, err)
		}
	}
	return nil
}

// WaitAndProcessEvents blocks until at least one event is pending and
// then behaves like [*Network.ProcessEvents].
//
// It returns early with the context error when the context is done, and
// with [ErrNetworkClosed] when the network is closed while waiting.
func (n *Network) WaitAndProcessEvents(ctx context.Context) (int, error) {
	// Wake up the waiter when the context is done.
	stop := context.AfterFunc(ctx, func() {
		n.mu.Lock()
		n.cond.Broadcast()
		n.mu.Unlock()
	})
	defer stop()

	n.mu.Lock()
	for len(n.queue) <= 0 && !n.closed && ctx.Err() == nil {
		n.cond.Wait()
	}
	pending, closed := len(n.queue), n.closed
	n.mu.Unlock()

	switch {
	case pending > 0:
		return n.ProcessEvents()
	case closed:
		return 0, ErrNetworkClosed
	default:
		return 0, ctx.Err()
	}
}

// Close closes the network and wakes up all the waiters.
//
// After Close, Send and Register fail with [ErrNetworkClosed], while
// already queued events can still be drained. This method is idempotent.
func (n *Network) Close() error {
	n.mu.Lock()
	n.closed = true
	n.cond.Broadcast()
	n.mu.Unlock()
	return nil
}

func (n *Network) observeEnqueued(d *Delivery) {
	if n.Logger != nil {
		n.Logger.Debug(
			"networkEnqueue",
			slog.Uint64("seq", d.Seq),
			slog.String("sender", d.Sender.String()),
			slog.String("receiver", d.Receiver.String()),
			slog.String("kind", d.Event.Kind.String()),
		)
	}
	if n.Observer != nil {
		n.Observer.Enqueued(d)
	}
}

func (n *Network) logDeliver(d *Delivery) {
	if n.Logger != nil {
		n.Logger.Debug(
			"networkDeliver",
			slog.Uint64("seq", d.Seq),
			slog.String("sender", d.Sender.String()),
			slog.String("receiver", d.Receiver.String()),
			slog.String("kind", d.Event.Kind.String()),
			slog.Int("payloadSize", len(d.Event.Payload)),
		)
	}
}

func (n *Network) logDrop(d *Delivery) {
	if n.Logger != nil {
		n.Logger.Info(
			"networkDrop",
			slog.Uint64("seq", d.Seq),
			slog.String("sender", d.Sender.String()),
			slog.String("receiver", d.Receiver.String()),
			slog.String("kind", d.Event.Kind.String()),
		)
	}
}

func (n *Network) logSendFailure(sender, receiver Endpoint, ev Event, err error) {
	if n.Logger != nil {
		n.Logger.Warn(
			"networkEnqueue",
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.String("sender", sender.String()),
			slog.String("receiver", receiver.String()),
			slog.String("kind", ev.Kind.String()),
		)
	}
}

func (n *Network) logDeliverFailure(d *Delivery, err error) {
	if n.Logger != nil {
		n.Logger.Error(
			"networkDeliver",
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.Uint64("seq", d.Seq),
			slog.String("sender", d.Sender.String()),
			slog.String("receiver", d.Receiver.String()),
			slog.String("kind", d.Event.Kind.String()),
		)
	}
}
