// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package u128

import (
	"math/big"
	"math/bits"
)

// MaxDecimalDigits is the number of decimal digits in 2^128 - 1
// (340282366920938463463374607431768211455).
const MaxDecimalDigits = 39

// Uint128 is an unsigned 128-bit integer. The zero value is 0.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// Zero is the additive identity.
var Zero = Uint128{}

// From64 widens a uint64.
func From64(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// IsZero reports whether u is 0.
func (u Uint128) IsZero() bool {
	return u.Hi == 0 && u.Lo == 0
}

// Add returns u + v modulo 2^128.
func (u Uint128) Add(v Uint128) Uint128 {
	lo, carry := bits.Add64(u.Lo, v.Lo, 0)
	hi, _ := bits.Add64(u.Hi, v.Hi, carry)
	return Uint128{Hi: hi, Lo: lo}
}

// QuoRem10 returns u / 10 and u % 10.
func (u Uint128) QuoRem10() (Uint128, uint64) {
	// Long division one word at a time; the remainder of the high word
	// becomes the high half of the dividend for the low word.
	hi, remainder := bits.Div64(0, u.Hi, 10)
	lo, remainder := bits.Div64(remainder, u.Lo, 10)
	return Uint128{Hi: hi, Lo: lo}, remainder
}

// AppendDecimal appends the base-10 representation of u to dst, most
// significant digit first. Zero renders as "0".
func (u Uint128) AppendDecimal(dst []byte) []byte {
	var scratch [MaxDecimalDigits]byte
	count := 0

	// Digits come out least significant first.
	for {
		var digit uint64
		u, digit = u.QuoRem10()
		scratch[count] = byte('0' + digit)
		count++
		if u.IsZero() {
			break
		}
	}

	for i := count - 1; i >= 0; i-- {
		dst = append(dst, scratch[i])
	}
	return dst
}

// String returns the decimal representation of u.
func (u Uint128) String() string {
	return string(u.AppendDecimal(make([]byte, 0, MaxDecimalDigits)))
}

// Big returns u as a newly allocated big.Int.
func (u Uint128) Big() *big.Int {
	result := new(big.Int).SetUint64(u.Hi)
	result.Lsh(result, 64)
	return result.Or(result, new(big.Int).SetUint64(u.Lo))
}
