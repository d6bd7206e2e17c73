package catalog

import (
	"errors"
	"testing"

	"github.com/lawran/lawran-downloader/internal/model"
)

func video(height, bitrate int) model.StreamDescriptor {
	return model.StreamDescriptor{
		Kind:      model.StreamVideo,
		Container: "mp4",
		Height:    height,
		Bitrate:   bitrate,
	}
}

func progressive(height int) model.StreamDescriptor {
	return model.StreamDescriptor{
		Kind:      model.StreamProgressive,
		Container: "mp4",
		Height:    height,
	}
}

func audio(container string, bitrate int) model.StreamDescriptor {
	return model.StreamDescriptor{
		Kind:      model.StreamAudio,
		Container: container,
		Bitrate:   bitrate,
	}
}

func videoSpec(quality int) model.JobSpec {
	return model.JobSpec{Kind: model.JobKindVideo, Quality: quality, Format: model.FormatMP4}
}

func TestSelectStreamsHighestNotExceeding(t *testing.T) {
	descriptors := []model.StreamDescriptor{
		video(1080, 4_000_000),
		video(720, 2_500_000),
		video(480, 1_200_000),
		audio("m4a", 128_000),
	}

	sel, err := SelectStreams(descriptors, videoSpec(720))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if sel.Mode != model.ModeAdaptiveMerge {
		t.Errorf("expected adaptive-merge, got %s", sel.Mode)
	}
	if sel.Video == nil || sel.Video.Height != 720 {
		t.Errorf("expected 720p video, got %+v", sel.Video)
	}
	if sel.Audio == nil || sel.Audio.Container != "m4a" {
		t.Errorf("expected m4a audio, got %+v", sel.Audio)
	}
}

func TestSelectStreamsNeverExceedsRequested(t *testing.T) {
	descriptors := []model.StreamDescriptor{
		video(2160, 12_000_000),
		video(1080, 4_000_000),
		video(720, 2_500_000),
		video(360, 700_000),
		audio("m4a", 128_000),
	}

	for _, quality := range []int{1080, 720, 480, 360, 240} {
		sel, err := SelectStreams(descriptors, videoSpec(quality))
		if err != nil {
			var noStream *model.NoQualifyingStreamError
			if !errors.As(err, &noStream) {
				t.Fatalf("quality %d: unexpected error %v", quality, err)
			}
			continue
		}
		if sel.Video.Height > quality {
			t.Errorf("quality %d: selected %dp, exceeds ceiling", quality, sel.Video.Height)
		}
	}
}

func TestSelectStreamsTierBitrateTiebreak(t *testing.T) {
	descriptors := []model.StreamDescriptor{
		video(720, 1_800_000),
		video(720, 2_600_000),
		audio("m4a", 128_000),
	}

	sel, err := SelectStreams(descriptors, videoSpec(720))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sel.Video.Bitrate != 2_600_000 {
		t.Errorf("expected highest bitrate within tier, got %d", sel.Video.Bitrate)
	}
}

func TestSelectStreamsProgressiveFallback(t *testing.T) {
	descriptors := []model.StreamDescriptor{
		progressive(720),
		progressive(360),
		audio("webm", 96_000),
	}

	sel, err := SelectStreams(descriptors, videoSpec(1080))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if sel.Mode != model.ModeProgressiveOnly {
		t.Errorf("expected progressive-only, got %s", sel.Mode)
	}
	if sel.Video == nil || sel.Video.Height != 720 {
		t.Errorf("expected 720p progressive, got %+v", sel.Video)
	}
	if sel.Audio != nil {
		t.Error("progressive-only selection must not carry an audio stream")
	}
}

func TestSelectStreamsAdaptiveWithoutAudioFails(t *testing.T) {
	descriptors := []model.StreamDescriptor{
		video(1080, 4_000_000),
	}

	_, err := SelectStreams(descriptors, videoSpec(1080))
	var noAudio *model.NoAudioStreamError
	if !errors.As(err, &noAudio) {
		t.Fatalf("expected NoAudioStreamError, got %v", err)
	}
}

func TestSelectStreamsNothingQualifies(t *testing.T) {
	descriptors := []model.StreamDescriptor{
		video(1080, 4_000_000),
		audio("m4a", 128_000),
	}

	_, err := SelectStreams(descriptors, videoSpec(480))
	var noStream *model.NoQualifyingStreamError
	if !errors.As(err, &noStream) {
		t.Fatalf("expected NoQualifyingStreamError, got %v", err)
	}
	if noStream.Requested != 480 {
		t.Errorf("expected requested 480 in error, got %d", noStream.Requested)
	}
}

func TestSelectStreamsUHDNoFallback(t *testing.T) {
	// Catalog tops out at 1080p: a UHD job must fail, never degrade.
	descriptors := []model.StreamDescriptor{
		video(1080, 4_000_000),
		progressive(720),
		audio("m4a", 128_000),
	}

	_, err := SelectStreams(descriptors, model.JobSpec{Kind: model.JobKindUHD, Format: model.FormatMP4})
	var noStream *model.NoQualifyingStreamError
	if !errors.As(err, &noStream) {
		t.Fatalf("expected NoQualifyingStreamError, got %v", err)
	}
	if !noStream.UHD {
		t.Error("expected UHD flag set on error")
	}
}

func TestSelectStreamsUHDSelectsFloorAndAbove(t *testing.T) {
	descriptors := []model.StreamDescriptor{
		video(4320, 30_000_000),
		video(2160, 16_000_000),
		video(1080, 4_000_000),
		audio("m4a", 128_000),
	}

	sel, err := SelectStreams(descriptors, model.JobSpec{Kind: model.JobKindUHD, Format: model.FormatMP4})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sel.Video.Height < UHDMinHeight {
		t.Errorf("UHD selection below floor: %dp", sel.Video.Height)
	}
	if sel.Video.Height != 4320 {
		t.Errorf("expected highest available UHD tier, got %dp", sel.Video.Height)
	}
	if sel.Mode != model.ModeAdaptiveMerge {
		t.Errorf("expected adaptive-merge, got %s", sel.Mode)
	}
}

func TestSelectStreamsAudioOnly(t *testing.T) {
	descriptors := []model.StreamDescriptor{
		video(1080, 4_000_000),
		audio("webm", 160_000),
		audio("m4a", 128_000),
		audio("m4a", 256_000),
	}

	sel, err := SelectStreams(descriptors, model.JobSpec{Kind: model.JobKindAudio, Format: model.FormatMP3})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if sel.Mode != model.ModeAudioOnly {
		t.Errorf("expected audio-only, got %s", sel.Mode)
	}
	if sel.Video != nil {
		t.Error("audio-only selection must not carry a video stream")
	}
	// Preferred container wins even when another container has a higher bitrate.
	if sel.Audio.Container != "m4a" || sel.Audio.Bitrate != 256_000 {
		t.Errorf("expected best m4a audio, got %+v", sel.Audio)
	}
}

func TestSelectStreamsAudioAnyContainerFallback(t *testing.T) {
	descriptors := []model.StreamDescriptor{
		audio("webm", 96_000),
		audio("webm", 160_000),
	}

	sel, err := SelectStreams(descriptors, model.JobSpec{Kind: model.JobKindAudio, Format: model.FormatM4A})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sel.Audio.Bitrate != 160_000 {
		t.Errorf("expected highest-bitrate fallback, got %d", sel.Audio.Bitrate)
	}
}

func TestSelectionModeInvariants(t *testing.T) {
	adaptive := []model.StreamDescriptor{video(720, 2_000_000), audio("m4a", 128_000)}
	prog := []model.StreamDescriptor{progressive(720)}

	sel, err := SelectStreams(adaptive, videoSpec(720))
	if err != nil {
		t.Fatal(err)
	}
	if sel.Mode == model.ModeAdaptiveMerge && (sel.Video == nil || sel.Audio == nil) {
		t.Error("adaptive-merge requires both descriptors")
	}

	sel, err = SelectStreams(prog, videoSpec(720))
	if err != nil {
		t.Fatal(err)
	}
	if sel.Mode == model.ModeProgressiveOnly && sel.Audio != nil {
		t.Error("progressive-only must not carry audio")
	}
}
