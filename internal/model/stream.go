package model

// StreamKind classifies one fetchable component of a media item.
type StreamKind string

const (
	// StreamVideo is an adaptive video-only stream; it needs a separate audio merge
	StreamVideo StreamKind = "video"

	// StreamAudio is an adaptive audio-only stream
	StreamAudio StreamKind = "audio"

	// StreamProgressive already contains both video and audio
	StreamProgressive StreamKind = "progressive"
)

// StreamDescriptor is one downloadable stream reported by the resolver.
// Descriptors are immutable; the catalog reads them, nothing writes them.
type StreamDescriptor struct {
	Kind            StreamKind
	Container       string // mp4, webm, m4a, weba
	ResolutionLabel string // "1080p", empty for audio streams
	Height          int    // nominal vertical resolution, 0 for audio streams
	Bitrate         int    // bits per second, 0 for video-only streams
	SizeBytes       int64  // 0 when the platform does not report a size
	Identifier      string // opaque handle used to open the actual transfer
}

// SelectionMode tells the pipeline how the selected streams combine.
type SelectionMode string

const (
	// ModeProgressiveOnly means one combined stream, no merge step
	ModeProgressiveOnly SelectionMode = "progressive-only"

	// ModeAdaptiveMerge means separate video and audio streams merged afterwards
	ModeAdaptiveMerge SelectionMode = "adaptive-merge"

	// ModeAudioOnly means a single audio stream, transcoded afterwards
	ModeAudioOnly SelectionMode = "audio-only"
)

// StreamSelection is the catalog's answer for one job.
//
// Invariants: ModeProgressiveOnly implies Audio is nil (audio is embedded),
// ModeAdaptiveMerge implies both Video and Audio are set, ModeAudioOnly
// implies Video is nil.
type StreamSelection struct {
	Video *StreamDescriptor
	Audio *StreamDescriptor
	Mode  SelectionMode
}

// Streams returns the descriptors that actually need transferring, video first.
func (s StreamSelection) Streams() []*StreamDescriptor {
	out := make([]*StreamDescriptor, 0, 2)
	if s.Video != nil {
		out = append(out, s.Video)
	}
	if s.Audio != nil {
		out = append(out, s.Audio)
	}
	return out
}
