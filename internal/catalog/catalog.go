package catalog

import (
	"github.com/lawran/lawran-downloader/internal/model"
)

// Resolution ladders searched highest first. A request is satisfied by the
// highest available tier not exceeding the requested quality.
var (
	StandardLadder = []int{1080, 720, 480, 360, 240, 144}
	UHDLadder      = []int{4320, 2160}
)

// UHD floor: UHD jobs never fall back below this height.
const (
	UHDMinHeight = 2160
)

// Preferred audio container when merging into an mp4 output. An m4a track
// can be stream-copied; anything else needs a transcode during the merge.
const (
	PreferredAudioContainer = "m4a"
)

// SelectStreams applies the selection policy to the streams the resolver
// reported and returns the stream(s) one job should transfer.
//
// Video jobs search adaptive streams down the ladder first, then fall back
// to progressive streams on the same ladder. UHD jobs search only the UHD
// ladder and never fall back: a miss is a NoQualifyingStreamError rather
// than a silent quality drop.
func SelectStreams(descriptors []model.StreamDescriptor, spec model.JobSpec) (model.StreamSelection, error) {
	if spec.NeedsAudioExtraction() {
		return selectAudioOnly(descriptors)
	}

	switch spec.Kind {
	case model.JobKindUHD:
		return selectVideo(descriptors, UHDLadder, false, UHDMinHeight)
	default:
		return selectVideo(descriptors, ladderFor(spec.Quality), true, spec.Quality)
	}
}

// ladderFor returns the standard tiers at or below the requested ceiling.
func ladderFor(quality int) []int {
	if quality <= 0 {
		return StandardLadder
	}
	tiers := make([]int, 0, len(StandardLadder))
	for _, h := range StandardLadder {
		if h <= quality {
			tiers = append(tiers, h)
		}
	}
	return tiers
}

func selectVideo(descriptors []model.StreamDescriptor, ladder []int, allowProgressive bool, requested int) (model.StreamSelection, error) {
	// Adaptive video-only streams, highest qualifying tier first.
	if video := findByLadder(descriptors, model.StreamVideo, ladder); video != nil {
		audio := pickAudio(descriptors)
		if audio == nil {
			return model.StreamSelection{}, &model.NoAudioStreamError{}
		}
		return model.StreamSelection{
			Video: video,
			Audio: audio,
			Mode:  model.ModeAdaptiveMerge,
		}, nil
	}

	// Progressive fallback carries its own audio, so any prior audio pick
	// is discarded by construction.
	if allowProgressive {
		if prog := findByLadder(descriptors, model.StreamProgressive, ladder); prog != nil {
			return model.StreamSelection{
				Video: prog,
				Mode:  model.ModeProgressiveOnly,
			}, nil
		}
	}

	return model.StreamSelection{}, &model.NoQualifyingStreamError{
		Requested: requested,
		UHD:       !allowProgressive,
	}
}

func selectAudioOnly(descriptors []model.StreamDescriptor) (model.StreamSelection, error) {
	audio := pickAudio(descriptors)
	if audio == nil {
		return model.StreamSelection{}, &model.NoAudioStreamError{}
	}
	return model.StreamSelection{
		Audio: audio,
		Mode:  model.ModeAudioOnly,
	}, nil
}

// findByLadder walks the ladder highest tier first and returns the best
// stream of the wanted kind at the first tier that has one. Within a tier,
// higher bitrate wins.
func findByLadder(descriptors []model.StreamDescriptor, kind model.StreamKind, ladder []int) *model.StreamDescriptor {
	for _, tier := range ladder {
		var best *model.StreamDescriptor
		for i := range descriptors {
			d := &descriptors[i]
			if d.Kind != kind || d.Height != tier {
				continue
			}
			if best == nil || d.Bitrate > best.Bitrate {
				best = d
			}
		}
		if best != nil {
			return best
		}
	}
	return nil
}

// pickAudio prefers the highest-bitrate stream in the preferred container,
// falling back to the highest-bitrate audio stream of any container.
func pickAudio(descriptors []model.StreamDescriptor) *model.StreamDescriptor {
	var preferred, any *model.StreamDescriptor
	for i := range descriptors {
		d := &descriptors[i]
		if d.Kind != model.StreamAudio {
			continue
		}
		if any == nil || d.Bitrate > any.Bitrate {
			any = d
		}
		if d.Container == PreferredAudioContainer {
			if preferred == nil || d.Bitrate > preferred.Bitrate {
				preferred = d
			}
		}
	}
	if preferred != nil {
		return preferred
	}
	return any
}
