// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fibdev implements the Fibonacci pseudo-device: a byte-stream
// endpoint where the caller seeks to an index n and reads back the
// decimal digits of F(n).
//
// A [Device] admits one session at a time. [Device.Open] is a
// non-blocking try-acquire: a second caller gets [ErrBusy] immediately
// rather than waiting. The returned [Handle] carries the session's
// cursor and implements the file operations:
//
//   - Seek sets the cursor. Every input is clamped into
//     [0, MaxLength]; seek never fails. io.SeekEnd counts backward from
//     MaxLength, so Seek(5, io.SeekEnd) lands on MaxLength-5.
//   - Read computes F(cursor), copies at most len(p)-1 digits into p
//     followed by a NUL terminator, and returns the digit count. The
//     cursor does not move, so repeated reads return the same digits.
//     A short buffer truncates silently.
//   - Write accepts anything and returns [WriteAcknowledgement].
//   - Close releases the session.
//
// Because Read never advances the cursor and never returns io.EOF, a
// Handle must not be passed to helpers such as io.ReadAll that read
// until end of stream.
//
// # Latency
//
// Each read times the engine computation alone (not the copy into the
// caller's buffer) with the device's clock and stores the interval in
// the device's [LatencyProbe]. The probe is shared by every session of
// the device and holds only the most recent sample. Before the first
// read it reports [NoSample].
//
// Transports live elsewhere: lib/fibdev/fuse presents a Device as a
// FUSE file, lib/fibservice as a socket protocol. Both hold the same
// *Device, so exclusivity spans transports.
package fibdev
