// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/fibdrv/lib/fibdev"
	"github.com/bureau-foundation/fibdrv/lib/fibservice"
	"github.com/bureau-foundation/fibdrv/lib/process"
	"github.com/bureau-foundation/fibdrv/lib/version"
)

// socketEnvVar overrides the default socket path.
const socketEnvVar = "FIBDRV_SOCKET"

// callTimeout bounds a whole subcommand, including the session round
// trips a read makes.
const callTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:], os.Stdout, term.IsTerminal(int(os.Stdout.Fd()))); err != nil {
		process.Fatal(err)
	}
}

// run executes one subcommand. When human is false, output is the bare
// value so the command composes in scripts.
func run(args []string, stdout io.Writer, human bool) error {
	var socketPath string
	var size int
	var showVersion bool

	flagSet := pflag.NewFlagSet("fibdrv-call", pflag.ContinueOnError)
	flagSet.SetInterspersed(true)
	flagSet.StringVar(&socketPath, "socket", defaultSocketPath(), "fibdrv socket path (env: "+socketEnvVar+")")
	flagSet.IntVar(&size, "size", fibdev.MaxBufSize, "read buffer size in bytes, including the terminator")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() { printHelp(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return process.Usage("%v", err)
	}

	if showVersion {
		version.Fprint(stdout, "fibdrv-call")
		return nil
	}

	positional := flagSet.Args()
	if len(positional) == 0 {
		printHelp(flagSet)
		return process.Usage("missing subcommand")
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	client := fibservice.NewClient(socketPath)

	switch positional[0] {
	case "read":
		if len(positional) != 2 {
			return process.Usage("usage: fibdrv-call read INDEX [--size N]")
		}
		index, err := strconv.ParseInt(positional[1], 10, 64)
		if err != nil {
			return process.Usage("invalid index %q: %v", positional[1], err)
		}
		return runRead(ctx, client, index, size, stdout, human)

	case "latency":
		if len(positional) != 1 {
			return process.Usage("usage: fibdrv-call latency")
		}
		return runLatency(ctx, client, stdout, human)

	case "status":
		if len(positional) != 1 {
			return process.Usage("usage: fibdrv-call status")
		}
		return runStatus(ctx, client, stdout, human)

	default:
		return process.Usage("unknown subcommand %q", positional[0])
	}
}

func runRead(ctx context.Context, client *fibservice.Client, index int64, size int, stdout io.Writer, human bool) error {
	session, err := client.Open(ctx)
	if err != nil {
		if errors.Is(err, fibdev.ErrBusy) {
			return fmt.Errorf("device is held by another session; try again later: %w", err)
		}
		return err
	}
	defer session.Close(context.WithoutCancel(ctx))

	position, err := session.Seek(ctx, index, io.SeekStart)
	if err != nil {
		return err
	}
	result, err := session.Read(ctx, size)
	if err != nil {
		return err
	}

	if !human {
		fmt.Fprintln(stdout, result.Digits)
		return nil
	}
	if position != index {
		fmt.Fprintf(stdout, "index %d clamped to %d\n", index, position)
	}
	fmt.Fprintf(stdout, "F(%d) = %s  (computed in %s)\n", result.Index, result.Digits, result.Latency)
	return nil
}

func runLatency(ctx context.Context, client *fibservice.Client, stdout io.Writer, human bool) error {
	latency, sampled, err := client.Latency(ctx)
	if err != nil {
		return err
	}
	switch {
	case !human && !sampled:
		fmt.Fprintln(stdout, fibdev.NoSample)
	case !human:
		fmt.Fprintln(stdout, latency.Nanoseconds())
	case !sampled:
		fmt.Fprintln(stdout, "no computation has completed yet")
	default:
		fmt.Fprintf(stdout, "last computation took %s\n", latency)
	}
	return nil
}

func runStatus(ctx context.Context, client *fibservice.Client, stdout io.Writer, human bool) error {
	status, err := client.Status(ctx)
	if err != nil {
		return err
	}
	if !human {
		fmt.Fprintf(stdout, "busy=%t max_length=%d max_buf_size=%d algorithm=%s\n",
			status.Busy, status.MaxLength, status.MaxBufSize, status.Algorithm)
		return nil
	}
	state := "idle"
	if status.Busy {
		state = "in use"
	}
	fmt.Fprintf(stdout, "device:       %s\n", state)
	fmt.Fprintf(stdout, "algorithm:    %s\n", status.Algorithm)
	fmt.Fprintf(stdout, "max index:    %d\n", status.MaxLength)
	fmt.Fprintf(stdout, "buffer size:  %d\n", status.MaxBufSize)
	return nil
}

func defaultSocketPath() string {
	if path := os.Getenv(socketEnvVar); path != "" {
		return path
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".cache", "fibdrv", "fibdrv.sock")
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `fibdrv-call queries a running fibdrv daemon over its socket.

Usage:
  fibdrv-call [flags] read INDEX   print F(INDEX)
  fibdrv-call [flags] latency      print the last computation time in nanoseconds
  fibdrv-call [flags] status       print the device status

Flags:
%s`, flagSet.FlagUsages())
}
