// Package overwrite implements erase executors that overwrite a block device
// or disk image in place.
package overwrite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	mrand "math/rand/v2"

	"golang.org/x/time/rate"

	"wipe-go/internal/wipe"
)

// ErrMismatch is wrapped in a *wipe.VerificationError when read-back data
// differs from what the last pass wrote.
var ErrMismatch = errors.New("data does not match last pass")

// VerifyMode selects how much of the device is read back.
type VerifyMode string

const (
	VerifyFull   VerifyMode = "full"
	VerifySample VerifyMode = "sample"
)

// Target is an opened erase target.
type Target interface {
	io.ReaderAt
	io.WriterAt
	Sync() error
	Close() error
}

// Opener opens the target at path and returns it with its size in bytes.
type Opener func(path string) (Target, int64, error)

// Options tune an Executor.
type Options struct {
	BlockSize         int
	MaxBytesPerSecond int64 // 0 = unlimited
	Verify            VerifyMode
	VerifySamples     int
}

const (
	defaultBlockSize     = 1 << 20
	defaultVerifySamples = 64
)

// Executor overwrites one drive block by block. It implements
// wipe.EraseExecutor together with wipe.Preparer, wipe.Finalizer and
// wipe.Releaser. An Executor runs one plan and is not reused.
type Executor struct {
	path    string
	open    Opener
	opts    Options
	limiter *rate.Limiter
	logger  wipe.Logger

	target Target
	size   int64
	last   *source
}

var (
	_ wipe.EraseExecutor = (*Executor)(nil)
	_ wipe.Preparer      = (*Executor)(nil)
	_ wipe.Finalizer     = (*Executor)(nil)
	_ wipe.Releaser      = (*Executor)(nil)
)

// NewExecutor creates an Executor for the target at path.
func NewExecutor(path string, open Opener, opts Options, logger wipe.Logger) *Executor {
	if opts.BlockSize <= 0 {
		opts.BlockSize = defaultBlockSize
	}
	if opts.Verify == "" {
		opts.Verify = VerifySample
	}
	if opts.VerifySamples <= 0 {
		opts.VerifySamples = defaultVerifySamples
	}

	var limiter *rate.Limiter
	if opts.MaxBytesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.MaxBytesPerSecond), opts.BlockSize)
	}
	return &Executor{
		path:    path,
		open:    open,
		opts:    opts,
		limiter: limiter,
		logger:  logger,
	}
}

// Prepare opens the target.
func (e *Executor) Prepare(ctx context.Context) error {
	if e.target != nil {
		return &wipe.DeviceError{Op: "prepare", Err: fmt.Errorf("%s is already open", e.path)}
	}
	target, size, err := e.open(e.path)
	if err != nil {
		return &wipe.DeviceError{Op: "open", Err: err}
	}
	if size <= 0 {
		target.Close()
		return &wipe.DeviceError{Op: "open", Err: fmt.Errorf("%s has no capacity", e.path)}
	}
	e.target = target
	e.size = size
	e.logger.Info("device opened", "path", e.path, "bytes", size, "block_size", e.opts.BlockSize)
	return nil
}

// ExecutePass overwrites the whole target with pass.Pattern and syncs it.
func (e *Executor) ExecutePass(ctx context.Context, pass wipe.Pass, report wipe.ReportFunc) error {
	if e.target == nil {
		return &wipe.DeviceError{Op: "write", Err: fmt.Errorf("%s is not open", e.path)}
	}
	src, err := newSource(pass.Pattern)
	if err != nil {
		return &wipe.DeviceError{Op: "write", Err: err}
	}

	buf := make([]byte, e.opts.BlockSize)
	blocks := e.blockCount()
	for idx := int64(0); idx < blocks; idx++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		off, n := e.block(idx)
		chunk := buf[:n]
		src.fill(chunk, idx)

		if e.limiter != nil {
			if err := e.limiter.WaitN(ctx, n); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return &wipe.DeviceError{Op: "throttle", Err: err}
			}
		}
		if _, err := e.target.WriteAt(chunk, off); err != nil {
			return &wipe.DeviceError{Op: fmt.Sprintf("write at offset %d", off), Err: err}
		}
		report(float64(idx+1) / float64(blocks))
	}

	if err := e.target.Sync(); err != nil {
		return &wipe.DeviceError{Op: "sync", Err: err}
	}
	e.last = src
	e.logger.Debug("pass written", "path", e.path, "pass", pass.Index+1, "of", pass.Total, "pattern", pass.Pattern)
	return nil
}

// Verify reads back the target and compares it with the last pass.
// In sample mode the first and last blocks are always checked.
func (e *Executor) Verify(ctx context.Context, report wipe.ReportFunc) error {
	if e.target == nil || e.last == nil {
		return &wipe.VerificationError{Offset: -1, Err: fmt.Errorf("nothing was written to %s", e.path)}
	}

	indexes := e.verifyIndexes()
	want := make([]byte, e.opts.BlockSize)
	got := make([]byte, e.opts.BlockSize)
	for i, idx := range indexes {
		if err := ctx.Err(); err != nil {
			return err
		}
		off, n := e.block(idx)
		e.last.fill(want[:n], idx)
		if _, err := e.target.ReadAt(got[:n], off); err != nil && !errors.Is(err, io.EOF) {
			return &wipe.DeviceError{Op: fmt.Sprintf("read at offset %d", off), Err: err}
		}
		if !bytes.Equal(want[:n], got[:n]) {
			return &wipe.VerificationError{Offset: off + firstDiff(want[:n], got[:n]), Err: ErrMismatch}
		}
		report(float64(i+1) / float64(len(indexes)))
	}
	e.logger.Debug("verify passed", "path", e.path, "mode", e.opts.Verify, "blocks", len(indexes))
	return nil
}

// Finalize flushes and closes the target.
func (e *Executor) Finalize(ctx context.Context) error {
	if e.target == nil {
		return &wipe.DeviceError{Op: "finalize", Err: fmt.Errorf("%s is not open", e.path)}
	}
	if err := e.target.Sync(); err != nil {
		return &wipe.DeviceError{Op: "sync", Err: err}
	}
	target := e.target
	e.target = nil
	if err := target.Close(); err != nil {
		return &wipe.DeviceError{Op: "close", Err: err}
	}
	e.logger.Info("device closed", "path", e.path)
	return nil
}

// Release closes the target if a run ended before Finalize.
func (e *Executor) Release() error {
	if e.target == nil {
		return nil
	}
	target := e.target
	e.target = nil
	return target.Close()
}

func (e *Executor) blockCount() int64 {
	bs := int64(e.opts.BlockSize)
	return (e.size + bs - 1) / bs
}

// block returns the offset and length of block idx.
func (e *Executor) block(idx int64) (int64, int) {
	off := idx * int64(e.opts.BlockSize)
	n := int64(e.opts.BlockSize)
	if rest := e.size - off; rest < n {
		n = rest
	}
	return off, int(n)
}

func (e *Executor) verifyIndexes() []int64 {
	blocks := e.blockCount()
	if e.opts.Verify == VerifyFull || int64(e.opts.VerifySamples) >= blocks {
		all := make([]int64, blocks)
		for i := range all {
			all[i] = int64(i)
		}
		return all
	}

	picked := map[int64]bool{0: true, blocks - 1: true}
	indexes := []int64{0}
	for len(indexes) < e.opts.VerifySamples-1 {
		idx := mrand.Int64N(blocks)
		if picked[idx] {
			continue
		}
		picked[idx] = true
		indexes = append(indexes, idx)
	}
	return append(indexes, blocks-1)
}

func firstDiff(a, b []byte) int64 {
	for i := range a {
		if a[i] != b[i] {
			return int64(i)
		}
	}
	return 0
}
