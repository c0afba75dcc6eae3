// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fibservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/fibdrv/lib/fibdev"
	"github.com/bureau-foundation/fibdrv/lib/service"
)

// Client talks to a fibdrv daemon's socket.
type Client struct {
	client *service.Client
}

// NewClient creates a client for the socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{client: service.NewClient(socketPath)}
}

// Session is a device session held over the socket. Its methods mirror
// the device file operations.
type Session struct {
	client *Client
	id     string
}

// ReadResult is the outcome of Session.Read.
type ReadResult struct {
	Digits  string
	Index   int64
	Latency time.Duration
}

// Open acquires the device. It returns an error wrapping fibdev.ErrBusy
// when another session holds the device.
func (c *Client) Open(ctx context.Context) (*Session, error) {
	var response OpenResponse
	if err := c.call(ctx, ActionOpen, nil, &response); err != nil {
		return nil, err
	}
	return &Session{client: c, id: response.Session}, nil
}

// Latency returns the device's most recent computation time, and false
// if no read has completed yet.
func (c *Client) Latency(ctx context.Context) (time.Duration, bool, error) {
	var response LatencyResponse
	if err := c.call(ctx, ActionLatency, nil, &response); err != nil {
		return 0, false, err
	}
	if !response.Sampled {
		return 0, false, nil
	}
	return time.Duration(response.Nanoseconds), true, nil
}

// Status returns the daemon's device status.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var response StatusResponse
	err := c.call(ctx, ActionStatus, nil, &response)
	return response, err
}

// ID returns the session token.
func (s *Session) ID() string {
	return s.id
}

// Write sends p to the device and returns the acknowledgement.
func (s *Session) Write(ctx context.Context, p []byte) (int, error) {
	var response WriteResponse
	if err := s.client.call(ctx, ActionWrite, map[string]any{"session": s.id, "data": p}, &response); err != nil {
		return 0, err
	}
	return response.Count, nil
}

// Seek moves the session's cursor and returns the clamped position.
func (s *Session) Seek(ctx context.Context, offset int64, whence int) (int64, error) {
	var response SeekResponse
	fields := map[string]any{"session": s.id, "offset": offset, "whence": whence}
	if err := s.client.call(ctx, ActionSeek, fields, &response); err != nil {
		return 0, err
	}
	return response.Offset, nil
}

// Read returns the digits of F(cursor) as a buffer of size bytes would
// receive them (at most size-1 digits). The size is always sent, so a
// zero size is a zero-capacity read that returns no digits but still
// records a latency sample.
func (s *Session) Read(ctx context.Context, size int) (ReadResult, error) {
	var response ReadResponse
	if err := s.client.call(ctx, ActionRead, map[string]any{"session": s.id, "size": size}, &response); err != nil {
		return ReadResult{}, err
	}
	return ReadResult{
		Digits:  response.Digits,
		Index:   response.Index,
		Latency: time.Duration(response.LatencyNS),
	}, nil
}

// Close releases the device.
func (s *Session) Close(ctx context.Context) error {
	return s.client.call(ctx, ActionClose, map[string]any{"session": s.id}, nil)
}

// call performs a request and translates the BUSY code back into
// fibdev.ErrBusy.
func (c *Client) call(ctx context.Context, action string, fields map[string]any, result any) error {
	err := c.client.Call(ctx, action, fields, result)
	var serviceError *service.ServiceError
	if errors.As(err, &serviceError) && serviceError.Code == service.CodeBusy {
		return fmt.Errorf("%w: %w", fibdev.ErrBusy, err)
	}
	return err
}
