// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/bureau-foundation/fibdrv/lib/fibdev"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"
)

const (
	// DeviceName is the name of the device node at the mount root.
	DeviceName = "fibonacci"

	// LoggerDirName and LatencyAttributeName form the path of the
	// latency attribute: fib_logger/kt_ns.
	LoggerDirName        = "fib_logger"
	LatencyAttributeName = "kt_ns"
)

// fuseDevice is the character device the FUSE kernel module exposes.
const fuseDevice = "/dev/fuse"

// Available reports whether this process can open /dev/fuse for
// reading and writing. It returns nil when a mount can be attempted.
func Available() error {
	if err := unix.Access(fuseDevice, unix.R_OK|unix.W_OK); err != nil {
		return fmt.Errorf("%s is not accessible: %w", fuseDevice, err)
	}
	return nil
}

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	Mountpoint string

	// Device serves the device node and the latency attribute.
	Device *fibdev.Device

	// AllowOther permits other users (including root) to access
	// the mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, an error-level
	// stderr logger is used.
	Logger *slog.Logger
}

// Mount mounts the device filesystem at the configured mountpoint. The
// caller must call Unmount on the returned Server when done. The
// mountpoint directory is created if it does not exist.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Device == nil {
		return nil, fmt.Errorf("device is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &rootNode{options: &options}

	// Names never change, so entries can be cached; attributes carry
	// the latency attribute's length and must stay fresh.
	entryTimeout := 1 * time.Second
	attrTimeout := time.Duration(0)
	negativeTimeout := 100 * time.Millisecond

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "fibdrv",
			Name:       "fibdrv",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("device FUSE filesystem mounted", "mountpoint", options.Mountpoint)
	return server, nil
}

// rootNode is the filesystem root. It has two children: the device
// node and the logger directory.
type rootNode struct {
	gofuse.Inode
	options *Options
}

var _ gofuse.InodeEmbedder = (*rootNode)(nil)
var _ gofuse.NodeOnAdder = (*rootNode)(nil)

func (r *rootNode) OnAdd(ctx context.Context) {
	device := r.NewPersistentInode(ctx, &deviceNode{options: r.options}, gofuse.StableAttr{Mode: syscall.S_IFREG})
	r.AddChild(DeviceName, device, true)

	loggerDir := r.NewPersistentInode(ctx, &loggerDirNode{}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
	r.AddChild(LoggerDirName, loggerDir, true)

	attribute := loggerDir.NewPersistentInode(ctx, &latencyNode{options: r.options}, gofuse.StableAttr{Mode: syscall.S_IFREG})
	loggerDir.AddChild(LatencyAttributeName, attribute, true)
}

// loggerDirNode is the fib_logger/ directory.
type loggerDirNode struct {
	gofuse.Inode
}

var _ gofuse.InodeEmbedder = (*loggerDirNode)(nil)

// deviceNode is the device file. Every Open acquires the device
// session; the resulting deviceFile serves the I/O.
type deviceNode struct {
	gofuse.Inode
	options *Options
}

var _ gofuse.InodeEmbedder = (*deviceNode)(nil)
var _ gofuse.NodeGetattrer = (*deviceNode)(nil)
var _ gofuse.NodeSetattrer = (*deviceNode)(nil)
var _ gofuse.NodeOpener = (*deviceNode)(nil)

func (d *deviceNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o666
	out.Size = fibdev.MaxLength
	return 0
}

// Setattr accepts and ignores attribute changes so that shell
// redirection (which truncates on open) works against the device.
func (d *deviceNode) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	return d.Getattr(ctx, f, out)
}

func (d *deviceNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	handle, err := d.options.Device.Open()
	if err != nil {
		if errors.Is(err, fibdev.ErrBusy) {
			return nil, 0, syscall.EBUSY
		}
		d.options.Logger.Error("device open failed", "error", err)
		return nil, 0, syscall.EIO
	}
	return &deviceFile{handle: handle, logger: d.options.Logger}, fuse.FOPEN_DIRECT_IO, 0
}

// deviceFile is one open descriptor on the device node.
type deviceFile struct {
	handle *fibdev.Handle
	logger *slog.Logger
}

var _ gofuse.FileReader = (*deviceFile)(nil)
var _ gofuse.FileWriter = (*deviceFile)(nil)
var _ gofuse.FileReleaser = (*deviceFile)(nil)

func (f *deviceFile) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if _, err := f.handle.Seek(off, io.SeekStart); err != nil {
		return nil, syscall.EBADF
	}

	result, err := f.handle.ReadDigits(dest)
	if err != nil {
		if errors.Is(err, fibdev.ErrClosed) {
			return nil, syscall.EBADF
		}
		f.logger.Error("device read failed", "offset", off, "error", err)
		return nil, syscall.ENOMEM
	}

	// The terminator stays out of the reply: read(2) reports the digit
	// count and the caller's buffer past it is left as it was. The
	// kernel then advances the file position by that count.
	return fuse.ReadResultData(dest[:result.Count]), 0
}

func (f *deviceFile) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	count, err := f.handle.Write(data)
	if err != nil {
		return 0, syscall.EBADF
	}
	return uint32(count), 0
}

func (f *deviceFile) Release(ctx context.Context) syscall.Errno {
	if err := f.handle.Close(); err != nil && !errors.Is(err, fibdev.ErrClosed) {
		f.logger.Error("device release failed", "error", err)
		return syscall.EIO
	}
	return 0
}

// latencyNode is the fib_logger/kt_ns attribute.
type latencyNode struct {
	gofuse.Inode
	options *Options
}

var _ gofuse.InodeEmbedder = (*latencyNode)(nil)
var _ gofuse.NodeGetattrer = (*latencyNode)(nil)
var _ gofuse.NodeOpener = (*latencyNode)(nil)
var _ gofuse.NodeReader = (*latencyNode)(nil)

func (l *latencyNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o444
	out.Size = uint64(len(l.options.Device.Latency().Text()))
	return 0
}

func (l *latencyNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	// The sample changes on every device read; never serve it from the
	// page cache.
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (l *latencyNode) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	content := l.options.Device.Latency().Text()
	if off >= int64(len(content)) {
		return fuse.ReadResultData(nil), 0
	}
	count := copy(dest, content[off:])
	return fuse.ReadResultData(dest[:count]), 0
}
