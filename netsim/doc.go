// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package netsim provides a deterministic, in-process network simulation
that developers can use to test peer-to-peer networking code without
real sockets, timers, or OS scheduling.

# Usage and Features

A [*Scenario] owns a [*Network], which is the central event router. The
[*Scenario.MustNewPeer] method creates a simulated host registered with
the network and [*Scenario.MustNewService] binds a mock network service
to a given peer. Services expose the same operations a real backend
would (see [ServiceInterface]) and report what happens to the application
by writing [ServiceEvent] values on a channel.

Sending an event never delivers it immediately. The network appends the
event to a FIFO queue and the test decides when to deliver, by calling
[*Scenario.ProcessEvents] (or [*Network.WaitAndProcessEvents] from a
dedicated goroutine). Events sent while draining are delivered during the
same drain, so a connection attempt settles in a single call. Because the
delivery order is the enqueue order, every run is replayable.

Each peer filters inbound events before processing them. The filter
chain emulates NAT (see [NATClass]) and firewalls (see [nat.Firewall])
and rejected events cause no state change and no callback.

The errors returned by this package wrap the same [syscall.Errno] the
kernel would return in similar cases (we use the [x/sys] repository to
pull system-dependent error values).

Subpackages contain the building blocks: [event] defines the data model,
[network] the router, [peer] the simulated host, [service] the mock
service, [nat] the filters, and [metrics] the Prometheus counters.

[x/sys]: https://pkg.go.dev/golang.org/x/sys
*/
package netsim
