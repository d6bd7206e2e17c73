package job

import (
	"context"

	"github.com/lawran/lawran-downloader/internal/model"
	"github.com/lawran/lawran-downloader/internal/resolver"
)

// Resolver turns URLs into stream metadata.
type Resolver interface {
	// Resolve fetches metadata and the full stream list for one video URL.
	Resolve(ctx context.Context, url string) (*resolver.Media, error)

	// ResolvePlaylist fetches playlist membership exactly once.
	ResolvePlaylist(ctx context.Context, url string) (*resolver.Playlist, error)

	// Forget releases any cached metadata for a resolved media ID once
	// the job holding it is done.
	Forget(id string)
}

// MediaProcessor runs the external media tool over downloaded temp files.
type MediaProcessor interface {
	// Merge combines separate video and audio files into one container.
	Merge(ctx context.Context, videoPath, audioPath, outputPath string) (*model.FinalArtifact, error)

	// Transcode converts an audio file to the target codec and bitrate.
	Transcode(ctx context.Context, inputPath, outputPath, codec, bitrate string) (*model.FinalArtifact, error)
}

// ProcessorFactory locates the media tool and builds a processor. It is
// called before any bytes are transferred for a job that will need
// processing, so a missing tool fails the job before wasting bandwidth.
type ProcessorFactory func() (MediaProcessor, error)
