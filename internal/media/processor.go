package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lawran/lawran-downloader/internal/model"
	"github.com/lawran/lawran-downloader/internal/platform"
)

// External tool
const (
	FFmpegCommand = "ffmpeg"

	// BundledDirName is the directory probed next to the executable when
	// ffmpeg is not on PATH
	BundledDirName = "ffmpeg"
)

// Codec settings
const (
	AudioCodecAAC  = "aac"
	AudioCodecMP3  = "libmp3lame"
	DefaultBitrate = "192k"
	FastStartFlag  = "+faststart"
)

// Locate finds the ffmpeg executable: the override path if given, then the
// process search path, then the bundled location next to the application
// binary. Returns ToolNotFoundError when nothing exists. Callers must run
// this before starting transfers for any job that will need processing, so
// a doomed job fails before wasting bandwidth.
func Locate(override string) (string, error) {
	searched := make([]string, 0, 3)

	if override != "" {
		if info, err := os.Stat(override); err == nil && !info.IsDir() {
			return override, nil
		}
		searched = append(searched, override)
	}

	if path, err := exec.LookPath(FFmpegCommand); err == nil {
		return path, nil
	}
	searched = append(searched, "$PATH")

	exe, err := os.Executable()
	if err == nil {
		name := FFmpegCommand
		if runtime.GOOS == "windows" {
			name += ".exe"
		}
		bundled := filepath.Join(filepath.Dir(exe), BundledDirName, name)
		if info, statErr := os.Stat(bundled); statErr == nil && !info.IsDir() {
			return bundled, nil
		}
		searched = append(searched, bundled)
	}

	return "", &model.ToolNotFoundError{Searched: searched}
}

// Processor runs ffmpeg as a child process to merge or transcode downloaded
// streams. One Processor is shared by all jobs; each invocation is a fresh
// process.
type Processor struct {
	bin string
	log zerolog.Logger
}

// NewProcessor creates a processor around a located ffmpeg binary.
func NewProcessor(bin string, log zerolog.Logger) *Processor {
	return &Processor{bin: bin, log: log}
}

// MergeArgs builds the argument list for merging a video file and an audio
// file into one mp4. The video stream is copied unmodified. The audio stream
// is copied too, unless its source container cannot be carried in mp4
// (webm/weba), in which case it is transcoded to AAC. Output is truncated to
// the shorter input and flagged for fast start.
func MergeArgs(videoPath, audioPath, outputPath string) []string {
	audioCodec := "copy"
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(audioPath), ".")) {
	case "webm", "weba":
		audioCodec = AudioCodecAAC
	}

	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", audioCodec,
		"-movflags", FastStartFlag,
		"-shortest",
		outputPath,
	}
}

// TranscodeArgs builds the argument list for re-encoding a downloaded audio
// file into the target codec at the target bitrate.
func TranscodeArgs(inputPath, outputPath, codec, bitrate string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", inputPath,
		"-vn",
		"-c:a", codec,
		"-b:a", bitrate,
		outputPath,
	}
}

// CodecFor maps a requested output format to the ffmpeg encoder name.
func CodecFor(format string) (string, error) {
	switch format {
	case model.FormatMP3:
		return AudioCodecMP3, nil
	case model.FormatM4A:
		return AudioCodecAAC, nil
	default:
		return "", fmt.Errorf("unsupported audio format %q", format)
	}
}

// Merge combines a video temp file and an audio temp file into outputPath.
// On success the source temp files are deleted and the output is synced to
// stable storage before being reported. On failure no output file remains.
func (p *Processor) Merge(ctx context.Context, videoPath, audioPath, outputPath string) (*model.FinalArtifact, error) {
	return p.run(ctx, "merge", MergeArgs(videoPath, audioPath, outputPath), outputPath, videoPath, audioPath)
}

// Transcode re-encodes inputPath into outputPath with the given codec and
// bitrate, following the same sync-then-delete-source discipline as Merge.
func (p *Processor) Transcode(ctx context.Context, inputPath, outputPath, codec, bitrate string) (*model.FinalArtifact, error) {
	return p.run(ctx, "transcode", TranscodeArgs(inputPath, outputPath, codec, bitrate), outputPath, inputPath)
}

func (p *Processor) run(ctx context.Context, op string, args []string, outputPath string, sources ...string) (*model.FinalArtifact, error) {
	start := time.Now()
	p.log.Debug().Str("op", op).Strs("args", args).Msg("invoking ffmpeg")

	cmd := exec.CommandContext(ctx, p.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if cmd.ProcessState != nil {
			exitCode = cmd.ProcessState.ExitCode()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		// Never leave a partial output behind.
		os.Remove(outputPath)
		return nil, &model.ProcessingError{
			Op:       op,
			ExitCode: exitCode,
			Detail:   detail,
		}
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		os.Remove(outputPath)
		return nil, &model.ProcessingError{
			Op:     op,
			Detail: "ffmpeg exited successfully but produced no output",
		}
	}

	if err := platform.SyncFile(outputPath); err != nil {
		os.Remove(outputPath)
		return nil, &model.FilesystemError{Op: "sync", Path: outputPath, Err: err}
	}

	for _, src := range sources {
		if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
			p.log.Warn().Err(err).Str("path", src).Msg("failed to remove source temp file")
		}
	}

	return &model.FinalArtifact{
		Path:      outputPath,
		SizeBytes: info.Size(),
		Elapsed:   time.Since(start),
	}, nil
}
