// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package nat implements per-peer filters modeling NATs and firewalls.

All filters implement [event.Filter] and are meant to be installed on the
receiving peer, so they see inbound deliveries where the receiver is the
peer itself. Filters can be composed using [event.Chain].

# NAT Mappings

The [*Mapper] type models the inbound behavior of common NAT classes. A
peer reports its outbound traffic using [*Mapper.Outbound]; inbound traffic
is accepted only when it matches an existing mapping, according to the
configured [Class]. The mapping table has a bounded capacity: when it is
full, the least recently used mapping is evicted, which models NAT table
exhaustion. Filtering does not refresh mappings, so the verdict only depends
on the outbound history.

# Firewall

The [*Firewall] type models a host firewall with a block list, which
drops all the events from the listed endpoints, and an optional allow list,
which restricts who may open new connections. A rejecting firewall answers
blocked Connect events with ConnectFailure instead of silently dropping them.
*/
package nat
