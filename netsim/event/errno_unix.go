//go:build unix

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// UNIX errno definitions.
//

package event

import "golang.org/x/sys/unix"

const (
	// EADDRINUSE is the address in use error.
	EADDRINUSE = unix.EADDRINUSE

	// EHOSTUNREACH is the host unreachable error.
	EHOSTUNREACH = unix.EHOSTUNREACH

	// EINVAL is the invalid argument error.
	EINVAL = unix.EINVAL

	// EISCONN is the already connected error.
	EISCONN = unix.EISCONN

	// ENETDOWN is the network is down error.
	ENETDOWN = unix.ENETDOWN

	// ENOTCONN is the not connected error.
	ENOTCONN = unix.ENOTCONN
)
