// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fibdev

import (
	"io"
	"math"
	"sync"
	"time"

	"github.com/bureau-foundation/fibdrv/lib/clock"
)

// ReadResult describes one completed read.
type ReadResult struct {
	// Count is the number of digit bytes copied, excluding the NUL
	// terminator.
	Count int

	// Index is the cursor position the value was computed for.
	Index int64

	// Latency is the engine computation time for this read.
	Latency time.Duration
}

// Handle is an open session on a Device. A Handle is safe for
// concurrent use, but its operations are serialized.
type Handle struct {
	device *Device

	mu     sync.Mutex
	cursor int64
	closed bool
}

var _ io.Closer = (*Handle)(nil)

// ReadDigits computes F(cursor) and copies at most len(p)-1 digits into
// p followed by a NUL terminator. An empty p receives nothing. The
// cursor does not move and the end of the sequence is never reported,
// so repeated calls return the same value. Handle has no io.Reader
// Read method for that reason: io.ReadAll on it would never return.
func (h *Handle) ReadDigits(p []byte) (ReadResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ReadResult{}, ErrClosed
	}

	device := h.device
	start := device.clock.Now()
	digits, err := device.engine.Compute(uint64(h.cursor))
	elapsed := clock.Since(device.clock, start)
	if err != nil {
		device.logger.Error("computation failed", "index", h.cursor, "error", err)
		return ReadResult{}, err
	}

	elapsed = device.latency.Record(elapsed)
	device.metrics.observeRead(elapsed)

	result := ReadResult{Index: h.cursor, Latency: elapsed}
	if len(p) == 0 {
		return result, nil
	}
	result.Count = copy(p[:len(p)-1], digits)
	p[result.Count] = 0
	return result, nil
}

// Write acknowledges p without using it. The return value is always
// WriteAcknowledgement regardless of len(p); this does not satisfy the
// io.Writer byte-count contract, and callers that need it must not
// wrap a Handle in buffered writers.
func (h *Handle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, ErrClosed
	}
	return WriteAcknowledgement, nil
}

// Seek sets the cursor and returns its new value. io.SeekStart sets it
// to offset, io.SeekCurrent adds offset, and io.SeekEnd sets it to
// MaxLength - offset. Any other whence selects position 0. The result
// is clamped into [0, MaxLength]; the error is non-nil only for a
// closed handle. A negative target clamps to 0 instead of failing as
// io.Seeker would.
func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, ErrClosed
	}

	var position int64
	switch whence {
	case io.SeekStart:
		position = offset
	case io.SeekCurrent:
		position = saturatingAdd(h.cursor, offset)
	case io.SeekEnd:
		position = saturatingSub(MaxLength, offset)
	}

	h.cursor = clamp(position)
	return h.cursor, nil
}

// Offset returns the current cursor.
func (h *Handle) Offset() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

// Close releases the session. Closing an already closed handle returns
// ErrClosed and leaves the device untouched, so a stale handle can
// never release a newer session.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	h.closed = true
	h.device.release()
	return nil
}

func clamp(position int64) int64 {
	if position > MaxLength {
		return MaxLength
	}
	if position < 0 {
		return 0
	}
	return position
}

func saturatingAdd(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	if b < 0 && a < math.MinInt64-b {
		return math.MinInt64
	}
	return a + b
}

func saturatingSub(a, b int64) int64 {
	if b == math.MinInt64 {
		// -MinInt64 is not representable; a is non-negative here, so
		// the true result exceeds MaxInt64.
		return math.MaxInt64
	}
	return saturatingAdd(a, -b)
}
