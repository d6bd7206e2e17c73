package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lawran/lawran-downloader/internal/model"
	"github.com/lawran/lawran-downloader/internal/progress"
)

// Transport opens the byte stream behind a stream identifier. The returned
// total length is 0 when the platform does not report one.
type Transport interface {
	Open(ctx context.Context, identifier string) (io.ReadCloser, int64, error)
}

// Transfer tuning
const (
	// ChunkSize is the read buffer size; progress is reported per chunk
	ChunkSize = 128 * 1024

	// DefaultStallTimeout fails a stream after this long with zero progress
	DefaultStallTimeout = 60 * time.Second

	// watchdogInterval is how often the stall watchdog checks for progress
	watchdogInterval = time.Second
)

// Result holds the temp files a successful transfer produced. For
// progressive selections the combined stream lands in VideoPath.
type Result struct {
	VideoPath string
	AudioPath string
}

// Executor downloads the streams of one selection concurrently, one bounded
// task per stream, writing each to its own job-scoped temp file. Either
// every stream completes or the whole transfer fails and the temp files are
// removed.
type Executor struct {
	transport Transport
	stall     time.Duration
	log       zerolog.Logger
}

// NewExecutor creates an executor on the given transport.
func NewExecutor(transport Transport, log zerolog.Logger) *Executor {
	return &Executor{
		transport: transport,
		stall:     DefaultStallTimeout,
		log:       log,
	}
}

// SetStallTimeout overrides the zero-progress watchdog period.
func (e *Executor) SetStallTimeout(d time.Duration) {
	if d > 0 {
		e.stall = d
	}
}

// Transfer downloads every stream in the selection to temp files under dir.
// prefix must be job-scoped so concurrent jobs sharing a directory cannot
// collide. notify is called after every chunk; the aggregator carries the
// byte counters. On any failure all temp files written so far are deleted.
func (e *Executor) Transfer(ctx context.Context, sel model.StreamSelection, dir, prefix string, agg *progress.Aggregator, notify func()) (*Result, error) {
	res := &Result{}

	type task struct {
		desc *model.StreamDescriptor
		dest *string
		slot string
	}
	tasks := make([]task, 0, 2)
	if sel.Video != nil {
		tasks = append(tasks, task{desc: sel.Video, dest: &res.VideoPath, slot: "video"})
	}
	if sel.Audio != nil {
		tasks = append(tasks, task{desc: sel.Audio, dest: &res.AudioPath, slot: "audio"})
	}
	if len(tasks) == 0 {
		return nil, &model.TransferError{Err: fmt.Errorf("selection has no streams")}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		path := filepath.Join(dir, fmt.Sprintf("%s-%s.%s", prefix, t.slot, t.desc.Container))
		*t.dest = path
		desc := t.desc
		agg.Register(desc.Identifier, desc.SizeBytes)
		g.Go(func() error {
			return e.fetch(gctx, desc, path, agg, notify)
		})
	}

	if err := g.Wait(); err != nil {
		e.removeTemp(res)
		return nil, err
	}
	return res, nil
}

// fetch streams one descriptor to its temp file, reporting every chunk to
// the aggregator. A watchdog goroutine closes the stream if no byte arrives
// within the stall period, which surfaces as a transfer failure.
func (e *Executor) fetch(ctx context.Context, desc *model.StreamDescriptor, path string, agg *progress.Aggregator, notify func()) error {
	stream, total, err := e.transport.Open(ctx, desc.Identifier)
	if err != nil {
		return &model.TransferError{Stream: desc.Identifier, Err: err}
	}
	defer stream.Close()

	if total > 0 {
		agg.SetTotal(desc.Identifier, total)
	}

	f, err := os.Create(path)
	if err != nil {
		return &model.FilesystemError{Op: "create", Path: path, Err: err}
	}

	var lastAdvance atomic.Int64
	lastAdvance.Store(time.Now().UnixNano())
	var stalled atomic.Bool
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)

	go func() {
		ticker := time.NewTicker(watchdogInterval)
		defer ticker.Stop()
		for {
			select {
			case <-watchdogDone:
				return
			case <-ctx.Done():
				// Unblock a Read waiting on a dead connection.
				stream.Close()
				return
			case <-ticker.C:
				idle := time.Since(time.Unix(0, lastAdvance.Load()))
				if idle >= e.stall {
					stalled.Store(true)
					// Closing the stream unblocks the pending Read.
					stream.Close()
					return
				}
			}
		}
	}()

	buf := make([]byte, ChunkSize)
	var written int64
	for {
		// Cooperative cancellation point between chunks.
		if err := ctx.Err(); err != nil {
			f.Close()
			return &model.TransferError{Stream: desc.Identifier, Err: err}
		}

		n, readErr := stream.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				f.Close()
				return &model.FilesystemError{Op: "write", Path: path, Err: writeErr}
			}
			written += int64(n)
			lastAdvance.Store(time.Now().UnixNano())
			agg.Record(desc.Identifier, written)
			e.safeNotify(notify)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			f.Close()
			if stalled.Load() {
				return &model.TransferError{
					Stream: desc.Identifier,
					Err:    fmt.Errorf("no progress for %s", e.stall),
				}
			}
			if err := ctx.Err(); err != nil {
				return &model.TransferError{Stream: desc.Identifier, Err: err}
			}
			return &model.TransferError{Stream: desc.Identifier, Err: readErr}
		}
	}

	if err := f.Close(); err != nil {
		return &model.FilesystemError{Op: "close", Path: path, Err: err}
	}
	return nil
}

// safeNotify shields the transfer from a broken progress callback.
func (e *Executor) safeNotify(notify func()) {
	if notify == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Debug().Interface("panic", r).Msg("progress callback panicked")
		}
	}()
	notify()
}

func (e *Executor) removeTemp(res *Result) {
	for _, path := range []string{res.VideoPath, res.AudioPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			e.log.Debug().Err(err).Str("path", path).Msg("failed to remove temp file")
		}
	}
}
