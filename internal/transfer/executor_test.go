package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lawran/lawran-downloader/internal/model"
	"github.com/lawran/lawran-downloader/internal/progress"
)

// fakeTransport serves in-memory payloads by identifier.
type fakeTransport struct {
	payloads map[string][]byte
	failures map[string]error
}

func (f *fakeTransport) Open(_ context.Context, id string) (io.ReadCloser, int64, error) {
	if err, ok := f.failures[id]; ok {
		return nil, 0, err
	}
	data, ok := f.payloads[id]
	if !ok {
		return nil, 0, fmt.Errorf("unknown stream %s", id)
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

// brokenReader fails mid-stream after serving a little data.
type brokenReader struct {
	served bool
}

func (b *brokenReader) Read(p []byte) (int, error) {
	if !b.served {
		b.served = true
		copy(p, []byte("partial"))
		return 7, nil
	}
	return 0, errors.New("connection reset")
}

func (b *brokenReader) Close() error { return nil }

type brokenTransport struct {
	good map[string][]byte
	bad  string
}

func (t *brokenTransport) Open(_ context.Context, id string) (io.ReadCloser, int64, error) {
	if id == t.bad {
		return &brokenReader{}, 1 << 20, nil
	}
	data := t.good[id]
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

// stallingReader blocks forever after the first chunk unless closed.
type stallingReader struct {
	served bool
	closed chan struct{}
}

func newStallingReader() *stallingReader {
	return &stallingReader{closed: make(chan struct{})}
}

func (s *stallingReader) Read(p []byte) (int, error) {
	if !s.served {
		s.served = true
		copy(p, []byte("x"))
		return 1, nil
	}
	<-s.closed
	return 0, errors.New("stream closed")
}

func (s *stallingReader) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}

type stallingTransport struct{}

func (stallingTransport) Open(_ context.Context, _ string) (io.ReadCloser, int64, error) {
	return newStallingReader(), 1 << 20, nil
}

func adaptiveSelection() model.StreamSelection {
	return model.StreamSelection{
		Video: &model.StreamDescriptor{Kind: model.StreamVideo, Container: "mp4", Identifier: "v1"},
		Audio: &model.StreamDescriptor{Kind: model.StreamAudio, Container: "m4a", Identifier: "a1"},
		Mode:  model.ModeAdaptiveMerge,
	}
}

func newTestExecutor(t Transport) *Executor {
	return NewExecutor(t, zerolog.Nop())
}

func tempFilesWithPrefix(t *testing.T, dir, prefix string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"*"))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

func TestTransferBothStreams(t *testing.T) {
	dir := t.TempDir()
	videoData := bytes.Repeat([]byte("v"), 300*1024)
	audioData := bytes.Repeat([]byte("a"), 100*1024)
	transport := &fakeTransport{payloads: map[string][]byte{
		"v1": videoData,
		"a1": audioData,
	}}

	agg := progress.NewAggregator(zerolog.Nop())

	notified := 0
	exec := newTestExecutor(transport)
	res, err := exec.Transfer(context.Background(), adaptiveSelection(), dir, ".job-abc", agg, func() { notified++ })
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	for path, want := range map[string][]byte{res.VideoPath: videoData, res.AudioPath: audioData} {
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading %s: %v", path, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("%s: content mismatch (%d vs %d bytes)", path, len(got), len(want))
		}
		if !strings.HasPrefix(filepath.Base(path), ".job-abc-") {
			t.Errorf("temp file %s missing job prefix", path)
		}
	}

	snap := agg.Snapshot()
	if snap.Downloaded != int64(len(videoData)+len(audioData)) {
		t.Errorf("aggregator saw %d bytes, want %d", snap.Downloaded, len(videoData)+len(audioData))
	}
	// Totals were learned from the transport at open time.
	if !snap.KnownTotal {
		t.Error("expected totals known after open")
	}
	if notified == 0 {
		t.Error("expected chunk notifications")
	}
}

func TestTransferPartialFailureCleansUp(t *testing.T) {
	dir := t.TempDir()
	transport := &brokenTransport{
		good: map[string][]byte{"v1": bytes.Repeat([]byte("v"), 64)},
		bad:  "a1",
	}

	agg := progress.NewAggregator(zerolog.Nop())

	exec := newTestExecutor(transport)
	_, err := exec.Transfer(context.Background(), adaptiveSelection(), dir, ".job-abc", agg, nil)

	var transferErr *model.TransferError
	if !errors.As(err, &transferErr) {
		t.Fatalf("expected TransferError, got %v", err)
	}

	if left := tempFilesWithPrefix(t, dir, ".job-abc"); len(left) != 0 {
		t.Errorf("expected all temp files removed after failure, found %v", left)
	}
}

func TestTransferOpenFailure(t *testing.T) {
	dir := t.TempDir()
	transport := &fakeTransport{
		payloads: map[string][]byte{"v1": []byte("video")},
		failures: map[string]error{"a1": errors.New("403 forbidden")},
	}

	agg := progress.NewAggregator(zerolog.Nop())

	exec := newTestExecutor(transport)
	_, err := exec.Transfer(context.Background(), adaptiveSelection(), dir, ".job-x", agg, nil)
	if err == nil {
		t.Fatal("expected error")
	}

	if left := tempFilesWithPrefix(t, dir, ".job-x"); len(left) != 0 {
		t.Errorf("expected cleanup, found %v", left)
	}
}

func TestTransferCancellation(t *testing.T) {
	dir := t.TempDir()
	exec := newTestExecutor(stallingTransport{})
	exec.SetStallTimeout(10 * time.Second)

	agg := progress.NewAggregator(zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := exec.Transfer(ctx, adaptiveSelection(), dir, ".job-c", agg, nil)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not tear down the transfer promptly")
	}

	if left := tempFilesWithPrefix(t, dir, ".job-c"); len(left) != 0 {
		t.Errorf("expected cleanup after cancel, found %v", left)
	}
}

func TestTransferStallWatchdog(t *testing.T) {
	dir := t.TempDir()
	exec := newTestExecutor(stallingTransport{})
	exec.SetStallTimeout(50 * time.Millisecond)

	agg := progress.NewAggregator(zerolog.Nop())

	sel := model.StreamSelection{
		Audio: &model.StreamDescriptor{Kind: model.StreamAudio, Container: "m4a", Identifier: "a1"},
		Mode:  model.ModeAudioOnly,
	}

	start := time.Now()
	_, err := exec.Transfer(context.Background(), sel, dir, ".job-s", agg, nil)

	var transferErr *model.TransferError
	if !errors.As(err, &transferErr) {
		t.Fatalf("expected TransferError from watchdog, got %v", err)
	}
	if !strings.Contains(err.Error(), "no progress") {
		t.Errorf("expected stall message, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("watchdog took too long: %v", elapsed)
	}
}

func TestTransferSurvivesNotifyPanic(t *testing.T) {
	dir := t.TempDir()
	transport := &fakeTransport{payloads: map[string][]byte{"a1": []byte("audio bytes")}}

	agg := progress.NewAggregator(zerolog.Nop())

	sel := model.StreamSelection{
		Audio: &model.StreamDescriptor{Kind: model.StreamAudio, Container: "m4a", Identifier: "a1"},
		Mode:  model.ModeAudioOnly,
	}

	exec := newTestExecutor(transport)
	res, err := exec.Transfer(context.Background(), sel, dir, ".job-p", agg, func() { panic("observer broke") })
	if err != nil {
		t.Fatalf("notify panic must not fail the transfer: %v", err)
	}
	if res.AudioPath == "" {
		t.Fatal("expected audio temp path")
	}
}

func TestTransferEmptySelection(t *testing.T) {
	exec := newTestExecutor(&fakeTransport{})
	_, err := exec.Transfer(context.Background(), model.StreamSelection{}, t.TempDir(), ".job", progress.NewAggregator(zerolog.Nop()), nil)
	if err == nil {
		t.Fatal("expected error for empty selection")
	}
}
