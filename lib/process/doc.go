// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for fibdrv
// binaries. It centralizes the raw I/O that happens before the
// structured logger exists or after run() has returned:
//
//   - Fatal error reporting to stderr when the logger may not be
//     initialized.
//   - Exit code selection: usage errors via [UsageError] exit 2, and
//     everything else exits 1.
package process
