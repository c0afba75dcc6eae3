// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fibdev

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bureau-foundation/fibdrv/lib/clock"
	"github.com/bureau-foundation/fibdrv/lib/fibonacci"
)

// testEpoch is the fixed start time of the fake clock.
var testEpoch = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

// computeStep is how far the fake clock moves per reading, so every
// read in these tests measures exactly one step.
const computeStep = 750 * time.Nanosecond

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func testDevice(t *testing.T) (*Device, *clock.FakeClock) {
	t.Helper()

	engine, err := fibonacci.New(fibonacci.Options{})
	if err != nil {
		t.Fatalf("fibonacci.New: %v", err)
	}

	fakeClock := clock.Fake(testEpoch)
	fakeClock.SetStep(computeStep)

	device, err := New(Options{
		Engine: engine,
		Clock:  fakeClock,
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return device, fakeClock
}

func openHandle(t *testing.T, device *Device) *Handle {
	t.Helper()
	handle, err := device.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { handle.Close() })
	return handle
}

func seek(t *testing.T, handle *Handle, offset int64, whence int) int64 {
	t.Helper()
	position, err := handle.Seek(offset, whence)
	if err != nil {
		t.Fatalf("Seek(%d, %d): %v", offset, whence, err)
	}
	return position
}

func readString(t *testing.T, handle *Handle, size int) (string, int) {
	t.Helper()
	buffer := make([]byte, size)
	result, err := handle.ReadDigits(buffer)
	if err != nil {
		t.Fatalf("ReadDigits: %v", err)
	}
	return string(buffer[:result.Count]), result.Count
}

func TestNewRequiresEngine(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New without engine succeeded")
	}
}

func TestOpenIsExclusive(t *testing.T) {
	device, _ := testDevice(t)

	first, err := device.Open()
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if !device.Busy() {
		t.Error("device not busy after Open")
	}

	second, err := device.Open()
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("second Open error = %v, want ErrBusy", err)
	}
	if second != nil {
		t.Error("second Open returned a handle")
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if device.Busy() {
		t.Error("device busy after Close")
	}

	third, err := device.Open()
	if err != nil {
		t.Fatalf("Open after Close: %v", err)
	}
	third.Close()
}

func TestConcurrentOpenHasOneWinner(t *testing.T) {
	device, _ := testDevice(t)

	const contenders = 32
	var (
		waitGroup sync.WaitGroup
		mu        sync.Mutex
		winners   []*Handle
		busy      int
	)
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			<-start
			handle, err := device.Open()
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, handle)
			case errors.Is(err, ErrBusy):
				busy++
			default:
				t.Errorf("Open: %v", err)
			}
		}()
	}
	close(start)
	waitGroup.Wait()

	if len(winners) != 1 {
		t.Fatalf("%d winners, want 1", len(winners))
	}
	if busy != contenders-1 {
		t.Errorf("%d busy rejections, want %d", busy, contenders-1)
	}
	winners[0].Close()
}

func TestDoubleCloseDoesNotReleaseNewSession(t *testing.T) {
	device, _ := testDevice(t)

	stale, err := device.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	stale.Close()

	current := openHandle(t, device)
	if err := stale.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close error = %v, want ErrClosed", err)
	}
	if !device.Busy() {
		t.Error("stale Close released the current session")
	}
	if _, err := current.Seek(3, io.SeekStart); err != nil {
		t.Errorf("current handle unusable: %v", err)
	}
}

func TestClosedHandleRejectsOperations(t *testing.T) {
	device, _ := testDevice(t)
	handle, err := device.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	handle.Close()

	if _, err := handle.ReadDigits(make([]byte, MaxBufSize)); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadDigits error = %v, want ErrClosed", err)
	}
	if _, err := handle.Write([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Write error = %v, want ErrClosed", err)
	}
	if _, err := handle.Seek(1, io.SeekStart); !errors.Is(err, ErrClosed) {
		t.Errorf("Seek error = %v, want ErrClosed", err)
	}
}

func TestCursorStartsAtZero(t *testing.T) {
	device, _ := testDevice(t)
	handle := openHandle(t, device)

	if handle.Offset() != 0 {
		t.Errorf("initial offset = %d, want 0", handle.Offset())
	}
	if digits, count := readString(t, handle, MaxBufSize); digits != "0" || count != 1 {
		t.Errorf("read at 0 = %q (%d), want \"0\" (1)", digits, count)
	}
}

func TestSeekClamps(t *testing.T) {
	device, _ := testDevice(t)
	handle := openHandle(t, device)

	tests := []struct {
		name   string
		start  int64
		offset int64
		whence int
		want   int64
	}{
		{"set negative", 0, -5, io.SeekStart, 0},
		{"set in range", 0, 42, io.SeekStart, 42},
		{"set past end", 0, 10_000, io.SeekStart, MaxLength},
		{"set max int", 0, math.MaxInt64, io.SeekStart, MaxLength},
		{"current forward", 10, 5, io.SeekCurrent, 15},
		{"current backward", 10, -20, io.SeekCurrent, 0},
		{"current overflow", MaxLength, math.MaxInt64, io.SeekCurrent, MaxLength},
		{"current underflow", 0, math.MinInt64, io.SeekCurrent, 0},
		{"end", 0, 5, io.SeekEnd, MaxLength - 5},
		{"end zero", 0, 0, io.SeekEnd, MaxLength},
		{"end negative", 0, -5, io.SeekEnd, MaxLength},
		{"end past start", 0, 500, io.SeekEnd, 0},
		{"end min int", 0, math.MinInt64, io.SeekEnd, MaxLength},
		{"end max int", 0, math.MaxInt64, io.SeekEnd, 0},
		{"unknown whence", 50, 7, 99, 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			seek(t, handle, test.start, io.SeekStart)
			if got := seek(t, handle, test.offset, test.whence); got != test.want {
				t.Errorf("Seek(%d, %d) from %d = %d, want %d",
					test.offset, test.whence, test.start, got, test.want)
			}
			if handle.Offset() != test.want {
				t.Errorf("Offset() = %d, want %d", handle.Offset(), test.want)
			}
		})
	}
}

func TestReadKnownValues(t *testing.T) {
	device, _ := testDevice(t)
	handle := openHandle(t, device)

	tests := []struct {
		index int64
		want  string
	}{
		{0, "0"},
		{1, "1"},
		{2, "1"},
		{10, "55"},
		{92, "7540113804746346429"},
		{MaxLength, "332825110087067562321196029789634457848"},
	}
	for _, test := range tests {
		seek(t, handle, test.index, io.SeekStart)
		if got, count := readString(t, handle, MaxBufSize); got != test.want || count != len(test.want) {
			t.Errorf("read at %d = %q (%d), want %q (%d)", test.index, got, count, test.want, len(test.want))
		}
	}
}

func TestReadIsIdempotent(t *testing.T) {
	device, _ := testDevice(t)
	handle := openHandle(t, device)

	seek(t, handle, 77, io.SeekStart)
	first, _ := readString(t, handle, MaxBufSize)
	for i := 0; i < 5; i++ {
		if got, _ := readString(t, handle, MaxBufSize); got != first {
			t.Fatalf("read %d = %q, want %q", i, got, first)
		}
	}
	if handle.Offset() != 77 {
		t.Errorf("read moved cursor to %d", handle.Offset())
	}
}

// TestHandleIsNotAReader pins that a Handle cannot be handed to
// io.ReadAll or io.Copy: reads never advance and never reach io.EOF.
func TestHandleIsNotAReader(t *testing.T) {
	device, _ := testDevice(t)
	handle := openHandle(t, device)

	if _, ok := any(handle).(io.Reader); ok {
		t.Fatal("Handle implements io.Reader")
	}

	seek(t, handle, MaxLength, io.SeekStart)
	buffer := make([]byte, MaxBufSize)
	for i := 0; i < 3; i++ {
		result, err := handle.ReadDigits(buffer)
		if err != nil {
			t.Fatalf("ReadDigits %d at end: %v", i, err)
		}
		if result.Count != 39 || result.Index != MaxLength {
			t.Errorf("ReadDigits %d at end = %+v, want 39 digits of F(%d)", i, result, MaxLength)
		}
	}
	if handle.Offset() != MaxLength {
		t.Errorf("reads moved cursor to %d", handle.Offset())
	}
}

func TestReadTerminatesAndTruncates(t *testing.T) {
	device, _ := testDevice(t)
	handle := openHandle(t, device)
	seek(t, handle, 30, io.SeekStart) // F(30) = 832040

	buffer := bytes.Repeat([]byte{'x'}, 10)
	result, err := handle.ReadDigits(buffer)
	if err != nil {
		t.Fatalf("ReadDigits: %v", err)
	}
	count := result.Count
	if count != 6 || string(buffer[:7]) != "832040\x00" {
		t.Errorf("full read = %q (%d)", buffer, count)
	}

	short := bytes.Repeat([]byte{'x'}, 4)
	result, err = handle.ReadDigits(short)
	if err != nil {
		t.Fatalf("short ReadDigits: %v", err)
	}
	if count = result.Count; count != 3 || string(short) != "832\x00" {
		t.Errorf("short read = %q (%d), want \"832\\x00\" (3)", short, count)
	}

	single := []byte{'x'}
	if result, _ := handle.ReadDigits(single); result.Count != 0 || single[0] != 0 {
		t.Errorf("one-byte read = %q (%d), want NUL (0)", single, result.Count)
	}

	if result, err := handle.ReadDigits(nil); result.Count != 0 || err != nil {
		t.Errorf("empty read = %d, %v", result.Count, err)
	}
}

func TestWriteAcknowledges(t *testing.T) {
	device, _ := testDevice(t)
	handle := openHandle(t, device)
	seek(t, handle, 12, io.SeekStart)

	for _, payload := range [][]byte{nil, []byte("testing writing"), make([]byte, 4096)} {
		count, err := handle.Write(payload)
		if err != nil || count != WriteAcknowledgement {
			t.Errorf("Write(%d bytes) = %d, %v", len(payload), count, err)
		}
	}
	if handle.Offset() != 12 {
		t.Errorf("write moved cursor to %d", handle.Offset())
	}
}

func TestLatencySentinelBeforeFirstRead(t *testing.T) {
	device, _ := testDevice(t)

	if got := device.Latency().Nanoseconds(); got != NoSample {
		t.Errorf("Nanoseconds() = %d, want NoSample", got)
	}
	if _, ok := device.Latency().Last(); ok {
		t.Error("Last() reported a sample before any read")
	}
	if got := device.Latency().Text(); got != "-1\n" {
		t.Errorf("Text() = %q, want \"-1\\n\"", got)
	}

	// Open, seek, and write do not produce samples.
	handle := openHandle(t, device)
	seek(t, handle, 5, io.SeekStart)
	handle.Write([]byte("x"))
	if got := device.Latency().Nanoseconds(); got != NoSample {
		t.Errorf("Nanoseconds() after seek/write = %d, want NoSample", got)
	}
}

func TestReadRecordsComputeLatency(t *testing.T) {
	device, _ := testDevice(t)
	handle := openHandle(t, device)
	seek(t, handle, 50, io.SeekStart)

	result, err := handle.ReadDigits(make([]byte, MaxBufSize))
	if err != nil {
		t.Fatalf("ReadDigits: %v", err)
	}
	if result.Latency != computeStep {
		t.Errorf("result latency = %v, want %v", result.Latency, computeStep)
	}
	if result.Index != 50 || result.Count != len("12586269025") {
		t.Errorf("result = %+v", result)
	}

	last, ok := device.Latency().Last()
	if !ok || last != computeStep {
		t.Errorf("Last() = %v, %v; want %v, true", last, ok, computeStep)
	}
	if got := device.Latency().Text(); got != "750\n" {
		t.Errorf("Text() = %q, want \"750\\n\"", got)
	}
}

func TestLatencyPersistsAcrossSessions(t *testing.T) {
	device, _ := testDevice(t)

	handle, err := device.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	handle.ReadDigits(make([]byte, MaxBufSize))
	handle.Close()

	if got := device.Latency().Nanoseconds(); got != computeStep.Nanoseconds() {
		t.Errorf("sample after close = %d, want %d", got, computeStep.Nanoseconds())
	}
}

func TestLatencyProbeClampsNegative(t *testing.T) {
	var probe LatencyProbe
	probe.reset()
	if stored := probe.Record(-time.Second); stored != 0 {
		t.Errorf("Record(-1s) stored %v, want 0", stored)
	}
	if last, ok := probe.Last(); !ok || last != 0 {
		t.Errorf("Last() = %v, %v; want 0, true", last, ok)
	}
}

func TestReadFailsWithoutPartialResult(t *testing.T) {
	engine, err := fibonacci.New(fibonacci.Options{MaxWorkingSlots: 8})
	if err != nil {
		t.Fatalf("fibonacci.New: %v", err)
	}
	device, err := New(Options{Engine: engine, Logger: testLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	handle := openHandle(t, device)
	seek(t, handle, 20, io.SeekStart)

	buffer := bytes.Repeat([]byte{'x'}, 8)
	result, err := handle.ReadDigits(buffer)
	if !errors.Is(err, fibonacci.ErrAllocation) {
		t.Fatalf("ReadDigits error = %v, want ErrAllocation", err)
	}
	if result.Count != 0 || string(buffer) != "xxxxxxxx" {
		t.Errorf("failed read wrote %q (%d)", buffer, result.Count)
	}
	if device.Latency().Nanoseconds() != NoSample {
		t.Error("failed read recorded a latency sample")
	}
}

func TestMetricsTrackOperations(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewMetrics(registry)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	engine, err := fibonacci.New(fibonacci.Options{Algorithm: fibonacci.AlgorithmRolling})
	if err != nil {
		t.Fatalf("fibonacci.New: %v", err)
	}
	fakeClock := clock.Fake(testEpoch)
	fakeClock.SetStep(computeStep)
	device, err := New(Options{Engine: engine, Clock: fakeClock, Metrics: metrics, Logger: testLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	handle, err := device.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := promtestutil.ToFloat64(metrics.sessionOpen); got != 1 {
		t.Errorf("session_open = %v, want 1", got)
	}
	device.Open()
	handle.ReadDigits(make([]byte, MaxBufSize))
	handle.ReadDigits(make([]byte, MaxBufSize))
	handle.Close()

	checks := []struct {
		name      string
		collector prometheus.Collector
		want      float64
	}{
		{"opens", metrics.opens, 1},
		{"busy", metrics.busyRejections, 1},
		{"reads", metrics.reads, 2},
		{"session_open", metrics.sessionOpen, 0},
		{"last_compute", metrics.lastComputeNanos, float64(computeStep.Nanoseconds())},
	}
	for _, check := range checks {
		if got := promtestutil.ToFloat64(check.collector); got != check.want {
			t.Errorf("%s = %v, want %v", check.name, got, check.want)
		}
	}

	if _, err := NewMetrics(registry); err == nil {
		t.Error("registering metrics twice succeeded")
	}
}

// TestEndToEnd walks the harness sequence: open, write, seek, read,
// then query latency.
func TestEndToEnd(t *testing.T) {
	device, _ := testDevice(t)
	handle := openHandle(t, device)

	if count, err := handle.Write([]byte("testing writing")); err != nil || count != WriteAcknowledgement {
		t.Fatalf("Write = %d, %v", count, err)
	}
	if position := seek(t, handle, 10, io.SeekStart); position != 10 {
		t.Fatalf("Seek = %d, want 10", position)
	}

	buffer := make([]byte, 128)
	result, err := handle.ReadDigits(buffer)
	if err != nil {
		t.Fatalf("ReadDigits: %v", err)
	}
	count := result.Count
	if count != 2 || string(buffer[:count]) != "55" || buffer[count] != 0 {
		t.Errorf("Read = %q (%d)", buffer[:count+1], count)
	}

	if nanoseconds := device.Latency().Nanoseconds(); nanoseconds < 0 {
		t.Errorf("latency = %d, want non-negative", nanoseconds)
	}
}
