// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fibservice

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bureau-foundation/fibdrv/lib/clock"
	"github.com/bureau-foundation/fibdrv/lib/codec"
	"github.com/bureau-foundation/fibdrv/lib/fibdev"
	"github.com/bureau-foundation/fibdrv/lib/service"
)

// Action names.
const (
	ActionOpen    = "open"
	ActionWrite   = "write"
	ActionSeek    = "seek"
	ActionRead    = "read"
	ActionClose   = "close"
	ActionLatency = "latency"
	ActionStatus  = "status"
)

// Options configures a Service.
type Options struct {
	// Device is the device sessions are opened on. Required.
	Device *fibdev.Device

	// Clock supplies session timestamps and idle checks. If nil,
	// defaults to clock.Real().
	Clock clock.Clock

	// IdleTimeout is how long a socket session may sit unused before
	// a contending open may reclaim it. Zero disables reclaim.
	IdleTimeout time.Duration

	// Logger receives diagnostic messages. If nil, an error-level
	// stderr logger is used.
	Logger *slog.Logger
}

// Service maps socket actions onto a Device.
type Service struct {
	device      *fibdev.Device
	clock       clock.Clock
	idleTimeout time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// session is one socket-held device handle.
type session struct {
	handle   *fibdev.Handle
	lastUsed time.Time
}

// New creates a Service.
func New(options Options) (*Service, error) {
	if options.Device == nil {
		return nil, fmt.Errorf("device is required")
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}
	return &Service{
		device:      options.Device,
		clock:       options.Clock,
		idleTimeout: options.IdleTimeout,
		logger:      options.Logger,
		sessions:    make(map[string]*session),
	}, nil
}

// Register installs the service's actions on server.
func (s *Service) Register(server *service.SocketServer) {
	server.Handle(ActionOpen, s.handleOpen)
	server.Handle(ActionWrite, s.handleWrite)
	server.Handle(ActionSeek, s.handleSeek)
	server.Handle(ActionRead, s.handleRead)
	server.Handle(ActionClose, s.handleClose)
	server.Handle(ActionLatency, s.handleLatency)
	server.Handle(ActionStatus, s.handleStatus)
}

// Close releases every socket session. The daemon calls it on shutdown.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, held := range s.sessions {
		held.handle.Close()
		delete(s.sessions, id)
	}
}

// Sessions returns the number of live socket sessions.
func (s *Service) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// OpenResponse is the data of a successful open.
type OpenResponse struct {
	Session string `cbor:"session"`
}

// WriteResponse is the data of a successful write.
type WriteResponse struct {
	Count int `cbor:"count"`
}

// SeekResponse is the data of a successful seek.
type SeekResponse struct {
	Offset int64 `cbor:"offset"`
}

// ReadResponse is the data of a successful read.
type ReadResponse struct {
	Digits    string `cbor:"digits"`
	Count     int    `cbor:"count"`
	Index     int64  `cbor:"index"`
	LatencyNS int64  `cbor:"latency_ns"`
}

// LatencyResponse is the data of the latency action. Nanoseconds is
// fibdev.NoSample when Sampled is false.
type LatencyResponse struct {
	Nanoseconds int64 `cbor:"nanoseconds"`
	Sampled     bool  `cbor:"sampled"`
}

// StatusResponse is the data of the status action.
type StatusResponse struct {
	Busy       bool   `cbor:"busy"`
	MaxLength  int64  `cbor:"max_length"`
	MaxBufSize int    `cbor:"max_buf_size"`
	Algorithm  string `cbor:"algorithm"`
}

type sessionRequest struct {
	Session string `cbor:"session"`
}

type writeRequest struct {
	Session string `cbor:"session"`
	Data    []byte `cbor:"data"`
}

type seekRequest struct {
	Session string `cbor:"session"`
	Offset  int64  `cbor:"offset"`
	Whence  int    `cbor:"whence"`
}

// readRequest.Size is optional: absent reads with fibdev.MaxBufSize,
// while an explicit 0 is a zero-capacity read.
type readRequest struct {
	Session string `cbor:"session"`
	Size    *int   `cbor:"size,omitempty"`
}

// maxReadSize caps the buffer a read request may ask the daemon to
// allocate. Anything wider than a 128-bit rendering is wasted space.
const maxReadSize = 4096

func decode(raw []byte, request any) error {
	if err := codec.Unmarshal(raw, request); err != nil {
		return service.Errorf(service.CodeInvalidInput, "decoding request: %w", err)
	}
	return nil
}

func (s *Service) handleOpen(ctx context.Context, raw []byte) (any, error) {
	handle, err := s.device.Open()
	if errors.Is(err, fibdev.ErrBusy) && s.reclaimIdle() {
		handle, err = s.device.Open()
	}
	if err != nil {
		if errors.Is(err, fibdev.ErrBusy) {
			return nil, service.WithCode(service.CodeBusy, err)
		}
		return nil, err
	}

	now := s.clock.Now()
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		handle.Close()
		return nil, fmt.Errorf("generating session id: %w", err)
	}

	s.mu.Lock()
	s.sessions[id.String()] = &session{handle: handle, lastUsed: now}
	s.mu.Unlock()

	s.logger.Info("socket session opened", "session", id.String())
	return OpenResponse{Session: id.String()}, nil
}

// reclaimIdle closes socket sessions idle for at least idleTimeout and
// reports whether any were closed.
func (s *Service) reclaimIdle() bool {
	if s.idleTimeout <= 0 {
		return false
	}

	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	reclaimed := false
	for id, held := range s.sessions {
		if now.Sub(held.lastUsed) < s.idleTimeout {
			continue
		}
		held.handle.Close()
		delete(s.sessions, id)
		reclaimed = true
		s.logger.Warn("reclaimed idle socket session",
			"session", id,
			"idle", now.Sub(held.lastUsed),
		)
	}
	return reclaimed
}

// lookup returns the handle for id and refreshes its idle timer.
func (s *Service) lookup(id string) (*fibdev.Handle, error) {
	if id == "" {
		return nil, service.Errorf(service.CodeInvalidInput, "missing required field: session")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	held, ok := s.sessions[id]
	if !ok {
		return nil, service.Errorf(service.CodeNotFound, "no such session %q", id)
	}
	held.lastUsed = s.clock.Now()
	return held.handle, nil
}

func (s *Service) handleWrite(ctx context.Context, raw []byte) (any, error) {
	var request writeRequest
	if err := decode(raw, &request); err != nil {
		return nil, err
	}
	handle, err := s.lookup(request.Session)
	if err != nil {
		return nil, err
	}
	count, err := handle.Write(request.Data)
	if err != nil {
		return nil, s.handleError(request.Session, err)
	}
	return WriteResponse{Count: count}, nil
}

func (s *Service) handleSeek(ctx context.Context, raw []byte) (any, error) {
	var request seekRequest
	if err := decode(raw, &request); err != nil {
		return nil, err
	}
	handle, err := s.lookup(request.Session)
	if err != nil {
		return nil, err
	}
	offset, err := handle.Seek(request.Offset, request.Whence)
	if err != nil {
		return nil, s.handleError(request.Session, err)
	}
	return SeekResponse{Offset: offset}, nil
}

func (s *Service) handleRead(ctx context.Context, raw []byte) (any, error) {
	var request readRequest
	if err := decode(raw, &request); err != nil {
		return nil, err
	}
	size := fibdev.MaxBufSize
	if request.Size != nil {
		size = *request.Size
	}
	if size < 0 || size > maxReadSize {
		return nil, service.Errorf(service.CodeInvalidInput, "size %d outside [0, %d]", size, maxReadSize)
	}

	handle, err := s.lookup(request.Session)
	if err != nil {
		return nil, err
	}

	buffer := make([]byte, size)
	result, err := handle.ReadDigits(buffer)
	if err != nil {
		return nil, s.handleError(request.Session, err)
	}
	return ReadResponse{
		Digits:    string(buffer[:result.Count]),
		Count:     result.Count,
		Index:     result.Index,
		LatencyNS: result.Latency.Nanoseconds(),
	}, nil
}

func (s *Service) handleClose(ctx context.Context, raw []byte) (any, error) {
	var request sessionRequest
	if err := decode(raw, &request); err != nil {
		return nil, err
	}
	if request.Session == "" {
		return nil, service.Errorf(service.CodeInvalidInput, "missing required field: session")
	}

	s.mu.Lock()
	held, ok := s.sessions[request.Session]
	delete(s.sessions, request.Session)
	s.mu.Unlock()

	if !ok {
		return nil, service.Errorf(service.CodeNotFound, "no such session %q", request.Session)
	}
	held.handle.Close()
	s.logger.Info("socket session closed", "session", request.Session)
	return nil, nil
}

func (s *Service) handleLatency(ctx context.Context, raw []byte) (any, error) {
	last, sampled := s.device.Latency().Last()
	if !sampled {
		return LatencyResponse{Nanoseconds: fibdev.NoSample}, nil
	}
	return LatencyResponse{Nanoseconds: last.Nanoseconds(), Sampled: true}, nil
}

func (s *Service) handleStatus(ctx context.Context, raw []byte) (any, error) {
	return StatusResponse{
		Busy:       s.device.Busy(),
		MaxLength:  fibdev.MaxLength,
		MaxBufSize: fibdev.MaxBufSize,
		Algorithm:  string(s.device.Engine().Algorithm()),
	}, nil
}

// handleError maps a handle error to a wire error. A handle closed
// underneath its session (reclaimed between lookup and use) is
// reported as a missing session.
func (s *Service) handleError(id string, err error) error {
	if errors.Is(err, fibdev.ErrClosed) {
		return service.Errorf(service.CodeNotFound, "session %q is closed", id)
	}
	return err
}
