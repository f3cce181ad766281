//go:build windows

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Windows errno definitions.
//

package event

import "golang.org/x/sys/windows"

const (
	// EADDRINUSE is the address in use error.
	EADDRINUSE = windows.WSAEADDRINUSE

	// EHOSTUNREACH is the host unreachable error.
	EHOSTUNREACH = windows.WSAEHOSTUNREACH

	// EINVAL is the invalid argument error.
	EINVAL = windows.WSAEINVAL

	// EISCONN is the already connected error.
	EISCONN = windows.WSAEISCONN

	// ENETDOWN is the network is down error.
	ENETDOWN = windows.WSAENETDOWN

	// ENOTCONN is the not connected error.
	ENOTCONN = windows.WSAENOTCONN
)
