// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fibdev

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/bureau-foundation/fibdrv/lib/clock"
	"github.com/bureau-foundation/fibdrv/lib/fibonacci"
)

const (
	// MaxLength is the largest index the cursor can address.
	MaxLength = 186

	// MaxBufSize is the conventional read buffer size for clients. It
	// is wider than any 128-bit decimal rendering, so reads with a
	// buffer of this size never truncate.
	MaxBufSize = 106

	// WriteAcknowledgement is the value every Write returns.
	WriteAcknowledgement = 1
)

var (
	// ErrBusy is returned by Open while another session is live.
	ErrBusy = errors.New("device is in use")

	// ErrClosed is returned by operations on a closed Handle.
	ErrClosed = errors.New("handle is closed")
)

// Options configures a Device.
type Options struct {
	// Engine computes the Fibonacci terms. Required.
	Engine *fibonacci.Engine

	// Clock times engine computations. If nil, defaults to
	// clock.Real().
	Clock clock.Clock

	// Metrics receives operation counts and latency observations.
	// May be nil.
	Metrics *Metrics

	// Logger receives diagnostic messages. If nil, an error-level
	// stderr logger is used.
	Logger *slog.Logger
}

// Device is the exclusive-access Fibonacci endpoint. The zero value is
// not usable; construct with New.
type Device struct {
	engine  *fibonacci.Engine
	clock   clock.Clock
	metrics *Metrics
	logger  *slog.Logger

	// held is the session lock. Open swaps it false→true; Close swaps
	// it back.
	held atomic.Bool

	latency LatencyProbe
}

// New creates a Device in the Closed state.
func New(options Options) (*Device, error) {
	if options.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	device := &Device{
		engine:  options.Engine,
		clock:   options.Clock,
		metrics: options.Metrics,
		logger:  options.Logger,
	}
	device.latency.reset()
	return device, nil
}

// Open acquires the device's single session. It never blocks: if a
// session is already live it returns ErrBusy and leaves the device
// unchanged.
func (d *Device) Open() (*Handle, error) {
	if !d.held.CompareAndSwap(false, true) {
		d.metrics.busyRejected()
		d.logger.Warn("open rejected, device is in use")
		return nil, ErrBusy
	}

	d.metrics.opened()
	d.logger.Debug("session opened")
	return &Handle{device: d}, nil
}

// Busy reports whether a session is live.
func (d *Device) Busy() bool {
	return d.held.Load()
}

// Latency returns the device's latency probe.
func (d *Device) Latency() *LatencyProbe {
	return &d.latency
}

// Engine returns the engine the device computes with.
func (d *Device) Engine() *fibonacci.Engine {
	return d.engine
}

func (d *Device) release() {
	d.metrics.closed()
	d.held.Store(false)
	d.logger.Debug("session released")
}
