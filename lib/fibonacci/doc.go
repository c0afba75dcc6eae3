// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fibonacci computes terms of the Fibonacci sequence in 128-bit
// fixed-width arithmetic and renders them as decimal digits.
//
// An [Engine] is stateless between calls: every [Engine.Compute]
// builds its working storage on entry and drops it on return. Two
// algorithms are registered:
//
//   - "table": bottom-up dynamic programming over an array of
//     index+2 slots. The array size is bounded by
//     [Options].MaxWorkingSlots; a request that would exceed it fails
//     with [ErrAllocation] and produces no digits.
//   - "rolling": the same recurrence with two rolling accumulators.
//     Constant space, identical results.
//
// # Overflow
//
// Terms up to [SafeIndexCeiling] are exact. Past that the true value
// no longer fits in 128 bits and every addition wraps modulo 2^128, so
// Compute returns F(n) mod 2^128. The wrap is deterministic and both
// algorithms agree on it; callers that need exact values must keep
// their indices at or below the ceiling (the device's seek clamp does).
package fibonacci
