package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/lawran/lawran-downloader/internal/model"
)

// ErrMixNotSupported rejects mix/radio pseudo-playlists. They have no fixed
// membership, so "download the playlist" is not a well-defined batch.
var ErrMixNotSupported = errors.New("mixes and radio playlists are not supported, only regular playlists")

// UserMessage maps an internal error onto the single sentence shown in the
// UI. Full details stay in the log.
func UserMessage(err error) string {
	var (
		resErr   *model.ResolutionError
		noStream *model.NoQualifyingStreamError
		noAudio  *model.NoAudioStreamError
		xferErr  *model.TransferError
		toolErr  *model.ToolNotFoundError
		procErr  *model.ProcessingError
		fsErr    *model.FilesystemError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return "Download cancelled."
	case errors.Is(err, ErrMixNotSupported):
		return "Mixes are not supported. Please use a regular playlist URL."
	case errors.As(err, &resErr):
		// The resolver's own message goes through unchanged; "video is
		// private" and "invalid URL" need different user action.
		return fmt.Sprintf("Could not fetch video information: %v", resErr.Err)
	case errors.As(err, &noStream):
		if noStream.UHD {
			return "This video is not available in 4K or higher."
		}
		return fmt.Sprintf("No stream at %dp or below is available for this video.", noStream.Requested)
	case errors.As(err, &noAudio):
		return "No audio track is available for this video."
	case errors.As(err, &xferErr):
		return "Download failed. The connection was lost or stalled."
	case errors.As(err, &toolErr):
		return "FFmpeg was not found. Install FFmpeg or set FFMPEG_PATH."
	case errors.As(err, &procErr):
		// Error() already truncates the tool's stderr for display.
		return fmt.Sprintf("Media processing failed: %s", procErr.Error())
	case errors.As(err, &fsErr):
		return "Could not write to the downloads folder. Check permissions and free space."
	default:
		return "Download failed."
	}
}
