package model

import "time"

// JobKind identifies what a download job produces.
type JobKind string

const (
	// JobKindVideo downloads a single video at or below a requested resolution
	JobKindVideo JobKind = "video"

	// JobKindAudio downloads and extracts the audio track only
	JobKindAudio JobKind = "audio"

	// JobKindUHD downloads a single video at 2160p or higher, never less
	JobKindUHD JobKind = "uhd-video"

	// JobKindPlaylistItem is a single entry executed as part of a playlist batch
	JobKindPlaylistItem JobKind = "playlist-item"
)

// JobSpec is the immutable description of one download job. It is created by
// the caller and never mutated by the pipeline.
type JobSpec struct {
	URL       string
	Kind      JobKind
	Quality   int    // nominal vertical resolution ceiling, e.g. 1080
	Format    string // container/codec target: mp4, mp3, m4a
	OutputDir string
}

// NeedsAudioExtraction reports whether this job ends in an audio transcode
// rather than a video container.
func (s JobSpec) NeedsAudioExtraction() bool {
	return s.Format == FormatMP3 || s.Format == FormatM4A
}

// Container / codec targets accepted in JobSpec.Format.
const (
	FormatMP4 = "mp4"
	FormatMP3 = "mp3"
	FormatM4A = "m4a"
)

// FinalArtifact describes the file a completed job produced.
type FinalArtifact struct {
	Path      string
	SizeBytes int64
	Elapsed   time.Duration
}
