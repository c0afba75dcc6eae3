// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Fibdrv-call is a command-line client for the fibdrv socket. "read"
// opens a session, seeks to the index, reads one value and closes the
// session; "latency" and "status" are single stateless calls.
//
// When stdout is a terminal the output is annotated for people;
// otherwise each command prints only its value.
package main
