// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fibservice exposes a fibdev.Device over the service socket
// protocol, and provides a typed client for it.
//
// A socket connection carries exactly one request, so the device
// session cannot be tied to a connection the way it is tied to a file
// descriptor. Instead "open" returns a session token (a ULID) that
// stands in for the descriptor; "seek", "read", "write", and "close"
// name it. The device's exclusivity is unchanged: while any session is
// live, through this socket or through the FUSE mount, "open" fails
// with code BUSY.
//
// # Idle Reclaim
//
// A file descriptor is released by the kernel when its process dies; a
// socket token is not. When IdleTimeout is positive, an "open" that
// finds the device busy first closes any socket session that has not
// been used for IdleTimeout and then tries once more. Sessions that are
// in use are never reclaimed, and nothing is reclaimed in the
// background.
//
// # Actions
//
//	open     → {session}
//	write    {session, data}            → {count}
//	seek     {session, offset, whence}  → {offset}
//	read     {session, size?}           → {digits, count, index, latency_ns}
//	close    {session}
//	latency  → {nanoseconds, sampled}
//	status   → {busy, max_length, max_buf_size, algorithm}
//
// A read without a size uses a buffer of fibdev.MaxBufSize bytes. A size
// of 0 is honoured as a zero-capacity read.
package fibservice
