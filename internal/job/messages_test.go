package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lawran/lawran-downloader/internal/model"
)

func TestUserMessageCarriesResolverDetail(t *testing.T) {
	err := &model.ResolutionError{
		URL: "https://example.com/watch?v=x",
		Err: fmt.Errorf("video is private"),
	}
	msg := UserMessage(err)
	if !strings.Contains(msg, "video is private") {
		t.Errorf("resolver message lost: %q", msg)
	}
}

func TestUserMessageCarriesProcessingDetail(t *testing.T) {
	err := &model.ProcessingError{Op: "merge", ExitCode: 1, Detail: "moov atom not found"}
	msg := UserMessage(err)
	if !strings.Contains(msg, "moov atom not found") {
		t.Errorf("tool diagnostic lost: %q", msg)
	}
	if !strings.Contains(msg, "merge") {
		t.Errorf("operation lost: %q", msg)
	}
}

func TestUserMessageTruncatesLongProcessingDetail(t *testing.T) {
	err := &model.ProcessingError{
		Op: "transcode", ExitCode: 1,
		Detail: strings.Repeat("x", model.MaxErrorDetailLen*3),
	}
	msg := UserMessage(err)
	if len(msg) > model.MaxErrorDetailLen+100 {
		t.Errorf("message is %d bytes, expected the detail truncated near %d", len(msg), model.MaxErrorDetailLen)
	}
	if !strings.Contains(msg, "…") {
		t.Errorf("expected a truncation marker in %q", msg)
	}
}

func TestUserMessageKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"cancelled", context.Canceled, "cancelled"},
		{"mix", ErrMixNotSupported, "Mixes are not supported"},
		{"uhd miss", &model.NoQualifyingStreamError{Requested: 2160, UHD: true}, "4K"},
		{"ladder miss", &model.NoQualifyingStreamError{Requested: 480}, "480p"},
		{"no audio", &model.NoAudioStreamError{}, "audio track"},
		{"stall", &model.TransferError{Stream: "a/1", Err: fmt.Errorf("no progress")}, "stalled"},
		{"tool", &model.ToolNotFoundError{Searched: []string{"PATH"}}, "FFMPEG_PATH"},
		{"disk", &model.FilesystemError{Op: "write", Path: "/x", Err: fmt.Errorf("no space")}, "downloads folder"},
		{"unknown", errors.New("mystery"), "Download failed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if msg := UserMessage(tc.err); !strings.Contains(msg, tc.want) {
				t.Errorf("UserMessage(%v) = %q, want it to contain %q", tc.err, msg, tc.want)
			}
		})
	}
}
