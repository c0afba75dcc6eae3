// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for fibdrv packages.
//
// [SocketDir] creates a short temporary directory in /tmp for Unix
// domain sockets, whose paths are limited to 108 bytes (sun_path);
// t.TempDir() paths can exceed that under some test runners.
//
// [RequireReceive] and [WaitForSocket] encapsulate the wall-clock
// timeout safety valves tests need when waiting on goroutines and
// listeners, so individual tests do not call time.After directly.
//
// All helpers call t.Fatalf on failure.
//
// This package has no fibdrv-internal dependencies.
package testutil
