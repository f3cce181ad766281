// SPDX-License-Identifier: GPL-3.0-or-later

package event

// Target is the verdict returned by a [Filter].
type Target int

const (
	// ACCEPT lets the delivery through.
	ACCEPT = Target(iota)

	// DROP silently discards the delivery.
	DROP
)

// String returns the string representation of the target.
func (t Target) String() string {
	if t == DROP {
		return "DROP"
	}
	return "ACCEPT"
}

// Filter decides the fate of a [*Delivery].
//
// The returned deliveries, if any, are injected into the network
// regardless of the verdict. This allows to model middleboxes that
// answer on behalf of the receiver (e.g., a rejecting firewall).
//
// A Filter must not modify the [*Delivery] and must be
// deterministic given its own state and the delivery.
type Filter interface {
	Filter(d *Delivery) (Target, []*Delivery)
}

// FilterFunc adapts a func to the [Filter] interface.
type FilterFunc func(d *Delivery) (Target, []*Delivery)

var _ Filter = FilterFunc(nil)

// Filter implements [Filter].
func (fx FilterFunc) Filter(d *Delivery) (Target, []*Delivery) {
	return fx(d)
}

// Chain applies each [Filter] in order and stops at the first
// [DROP] verdict. Injected deliveries from all the filters that
// ran are concatenated in order.
type Chain []Filter

var _ Filter = Chain(nil)

// Filter implements [Filter].
func (c Chain) Filter(d *Delivery) (Target, []*Delivery) {
	var injected []*Delivery
	for _, f := range c {
		target, extra := f.Filter(d)
		injected = append(injected, extra...)
		if target == DROP {
			return DROP, injected
		}
	}
	return ACCEPT, injected
}
