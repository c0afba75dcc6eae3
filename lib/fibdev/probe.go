// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fibdev

import (
	"strconv"
	"sync/atomic"
	"time"
)

// NoSample is the probe value before any read has completed.
const NoSample int64 = -1

// LatencyProbe holds the most recent engine computation time. Writers
// overwrite each other; readers see whichever sample landed last.
type LatencyProbe struct {
	nanoseconds atomic.Int64
}

func (p *LatencyProbe) reset() {
	p.nanoseconds.Store(NoSample)
}

// Record stores d as the latest sample and returns the stored value.
// Negative intervals (possible only with a clock that moves backward)
// are stored as zero so that a real sample is never confused with
// NoSample.
func (p *LatencyProbe) Record(d time.Duration) time.Duration {
	if d < 0 {
		d = 0
	}
	p.nanoseconds.Store(d.Nanoseconds())
	return d
}

// Nanoseconds returns the latest sample in nanoseconds, or NoSample.
func (p *LatencyProbe) Nanoseconds() int64 {
	return p.nanoseconds.Load()
}

// Last returns the latest sample and whether one exists.
func (p *LatencyProbe) Last() (time.Duration, bool) {
	value := p.nanoseconds.Load()
	if value == NoSample {
		return 0, false
	}
	return time.Duration(value), true
}

// Text renders the latest sample as the latency attribute presents it:
// decimal nanoseconds followed by a newline.
func (p *LatencyProbe) Text() string {
	return strconv.FormatInt(p.nanoseconds.Load(), 10) + "\n"
}
