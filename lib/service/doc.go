// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the Unix socket request/response transport
// used by the fibdrv daemon.
//
// The protocol is one CBOR request and one CBOR response per
// connection. A request is a CBOR map with an "action" field plus
// action-specific fields. A response is a [Response] envelope:
//
//	{ok: true, data: <cbor>}
//	{ok: false, error: "...", code: "BUSY"}
//
// [SocketServer] dispatches requests to registered [ActionFunc]s.
// Handlers report failures by returning an error; wrapping it in an
// [*Error] attaches a machine-readable [Code] that the [Client]
// surfaces on [*ServiceError], so callers can branch on the condition
// without parsing messages.
//
// Socket access control is the filesystem's: the socket is created
// with the daemon's umask, and anyone who can connect can drive the
// device.
package service
