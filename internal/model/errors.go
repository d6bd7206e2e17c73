package model

import (
	"fmt"
	"strings"
)

// Error detail limits for user-facing output
const (
	MaxErrorDetailLen = 500
)

// ResolutionError means the URL could not be resolved into stream metadata:
// unreachable, unsupported, private. The resolver's message is surfaced
// verbatim to the user.
type ResolutionError struct {
	URL string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying resolver error
func (e *ResolutionError) Unwrap() error { return e.Err }

// NoQualifyingStreamError means no stream satisfied the quality constraint.
// For UHD jobs the constraint is a hard floor, not a ceiling.
type NoQualifyingStreamError struct {
	Requested int
	UHD       bool
}

func (e *NoQualifyingStreamError) Error() string {
	if e.UHD {
		return "no 4K (2160p) or higher stream is available for this URL"
	}
	return fmt.Sprintf("no stream at %dp or below is available for this URL", e.Requested)
}

// NoAudioStreamError means an adaptive video stream was chosen but the
// platform offered no audio stream to merge with it. Silent video is not an
// acceptable substitution, so this is fatal.
type NoAudioStreamError struct{}

func (e *NoAudioStreamError) Error() string {
	return "no audio stream is available to merge with the selected video"
}

// TransferError is a network or I/O failure mid-download. Transfers are not
// retried; the job fails and partial files are purged.
type TransferError struct {
	Stream string // identifier of the stream that failed
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer of stream %s failed: %v", e.Stream, e.Err)
}

// Unwrap returns the underlying transfer failure
func (e *TransferError) Unwrap() error { return e.Err }

// ToolNotFoundError means the external media tool is not installed where the
// application can find it. This is a configuration problem, checked before
// any transfer work for jobs that will need processing.
type ToolNotFoundError struct {
	Searched []string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("ffmpeg not found (searched: %s)", strings.Join(e.Searched, ", "))
}

// ProcessingError means the external media tool exited nonzero. Detail holds
// the tool's diagnostic output, truncated for display.
type ProcessingError struct {
	Op       string // "merge" or "transcode"
	ExitCode int
	Detail   string
}

func (e *ProcessingError) Error() string {
	detail := e.Detail
	if len(detail) > MaxErrorDetailLen {
		detail = detail[:MaxErrorDetailLen] + "…"
	}
	return fmt.Sprintf("ffmpeg %s failed (exit %d): %s", e.Op, e.ExitCode, detail)
}

// FilesystemError is a fatal disk problem: full disk, permission denied.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying OS error
func (e *FilesystemError) Unwrap() error { return e.Err }
