// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for testability.
//
// Components that measure elapsed time accept a [Clock] instead of
// calling time.Now directly. Production wiring passes [Real], whose
// readings carry the monotonic clock so that intervals computed with
// Sub are immune to wall-clock adjustments. Tests pass [Fake], which
// stands still until the test moves it with Advance or Set, or which
// steps forward by a fixed amount on every reading when configured
// with SetStep (useful for asserting on measured intervals).
//
// # Wiring Pattern
//
//	type Device struct {
//	    clock clock.Clock
//	    // ...
//	}
//
//	start := d.clock.Now()
//	// ... work ...
//	elapsed := d.clock.Now().Sub(start)
package clock
