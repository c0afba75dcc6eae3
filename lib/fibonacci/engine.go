// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fibonacci

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bureau-foundation/fibdrv/lib/u128"
)

// SafeIndexCeiling is the largest index whose Fibonacci value fits in
// 128 bits. F(186) = 332825110087067562321196029789634457848;
// F(187) exceeds 2^128 - 1.
const SafeIndexCeiling = 186

// DefaultMaxWorkingSlots bounds the table algorithm's working array
// (16M slots, 256 MiB of 128-bit values).
const DefaultMaxWorkingSlots = 1 << 24

// Algorithm names a registered computation strategy.
type Algorithm string

const (
	// AlgorithmTable is bottom-up dynamic programming over an array of
	// index+2 slots.
	AlgorithmTable Algorithm = "table"

	// AlgorithmRolling keeps only the last two terms.
	AlgorithmRolling Algorithm = "rolling"
)

// ErrAllocation is returned when the working storage a computation
// needs exceeds the engine's configured limit.
var ErrAllocation = errors.New("working storage exceeds limit")

// ErrUnknownAlgorithm is returned by New for an unregistered algorithm.
var ErrUnknownAlgorithm = errors.New("unknown algorithm")

// valueFunc computes F(index) with the given slot budget.
type valueFunc func(index, maxSlots uint64) (u128.Uint128, error)

var algorithms = map[Algorithm]valueFunc{
	AlgorithmTable:   tableValue,
	AlgorithmRolling: rollingValue,
}

// Algorithms returns the registered algorithm names in sorted order.
func Algorithms() []Algorithm {
	names := make([]Algorithm, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Options configures an Engine.
type Options struct {
	// Algorithm selects the computation strategy. Empty uses
	// AlgorithmTable.
	Algorithm Algorithm

	// MaxWorkingSlots caps the number of 128-bit slots the table
	// algorithm may allocate for one call. Zero uses
	// DefaultMaxWorkingSlots. Ignored by the rolling algorithm.
	MaxWorkingSlots uint64
}

// Engine computes Fibonacci terms. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	algorithm Algorithm
	maxSlots  uint64
	value     valueFunc
}

// New creates an Engine.
func New(options Options) (*Engine, error) {
	if options.Algorithm == "" {
		options.Algorithm = AlgorithmTable
	}
	if options.MaxWorkingSlots == 0 {
		options.MaxWorkingSlots = DefaultMaxWorkingSlots
	}

	value, ok := algorithms[options.Algorithm]
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %v)", ErrUnknownAlgorithm, options.Algorithm, Algorithms())
	}

	return &Engine{
		algorithm: options.Algorithm,
		maxSlots:  options.MaxWorkingSlots,
		value:     value,
	}, nil
}

// Algorithm returns the engine's configured algorithm.
func (e *Engine) Algorithm() Algorithm {
	return e.algorithm
}

// Value returns F(index) modulo 2^128.
func (e *Engine) Value(index uint64) (u128.Uint128, error) {
	result, err := e.value(index, e.maxSlots)
	if err != nil {
		return u128.Zero, fmt.Errorf("computing F(%d): %w", index, err)
	}
	return result, nil
}

// Compute returns the decimal digits of F(index) modulo 2^128, most
// significant first, without a terminator.
func (e *Engine) Compute(index uint64) ([]byte, error) {
	result, err := e.Value(index)
	if err != nil {
		return nil, err
	}
	return result.AppendDecimal(make([]byte, 0, u128.MaxDecimalDigits)), nil
}

func tableValue(index, maxSlots uint64) (u128.Uint128, error) {
	slots := index + 2
	if slots < index || slots > maxSlots {
		return u128.Zero, fmt.Errorf("%w: table needs %d slots, limit is %d", ErrAllocation, index+2, maxSlots)
	}

	table := make([]u128.Uint128, slots)
	table[0] = u128.Zero
	table[1] = u128.From64(1)
	for i := uint64(2); i <= index; i++ {
		table[i] = table[i-1].Add(table[i-2])
	}
	return table[index], nil
}

func rollingValue(index, _ uint64) (u128.Uint128, error) {
	previous, current := u128.Zero, u128.From64(1)
	if index == 0 {
		return previous, nil
	}
	for i := uint64(2); i <= index; i++ {
		previous, current = current, previous.Add(current)
	}
	return current, nil
}
