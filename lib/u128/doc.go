// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package u128 implements the fixed-width unsigned integer used by the
// Fibonacci engine.
//
// A [Uint128] holds magnitudes up to 2^128 - 1 as two 64-bit words.
// Only the operations the engine needs are provided: wrapping
// addition, division by ten (for rendering), and decimal formatting.
// Arithmetic is modular: [Uint128.Add] silently discards the carry out
// of the high word, which is the overflow policy the engine documents
// for indices past its safe ceiling.
//
// Decimal rendering never allocates beyond the destination slice. The
// widest value, 2^128 - 1, has [MaxDecimalDigits] digits.
//
// This package depends on no other fibdrv packages.
package u128
