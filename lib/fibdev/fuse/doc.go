// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fuse presents a fibdev.Device as a FUSE filesystem so that
// unmodified programs can drive it with open, write, lseek, read, and
// close.
//
// The mount contains:
//
//   - fibonacci: the device node. Opening it acquires the device's
//     session (EBUSY while another session is live, including one held
//     over the socket transport). Each read returns the decimal digits
//     of F(position), where position is the file offset of the read.
//     Writes are acknowledged with 1 and otherwise ignored. Releasing
//     the last descriptor closes the session.
//
//   - fib_logger/kt_ns: the latency attribute. Reading it returns the
//     engine time of the most recent device read in nanoseconds,
//     followed by a newline, or "-1" before the first read.
//
// # File Position
//
// Both files are opened with FOPEN_DIRECT_IO so the kernel neither
// caches their content nor rounds reads to page boundaries; every
// read(2) reaches the daemon with the caller's exact offset.
//
// The kernel, not the daemon, owns the descriptor's position, so the
// node differs from a fibdev.Handle in these ways:
//
//   - SEEK_END is relative to the reported size, so lseek(fd, 5,
//     SEEK_END) returns MaxLength+5 instead of MaxLength-5.
//   - lseek does not clamp. SEEK_SET past MaxLength returns the
//     requested offset, and a read there is served as F(MaxLength).
//   - A negative SEEK_SET fails with EINVAL and leaves the position
//     unchanged instead of clamping to 0.
//   - No NUL terminator is stored after the digits. read(2) returns
//     the digit count and the caller's buffer past it is untouched.
//   - Each read advances the position by the digits returned, so a
//     second read without lseek returns a different number.
//
// Callers that want F(n) should lseek (or pread) before every read, as
// the timing harness does.
package fuse
