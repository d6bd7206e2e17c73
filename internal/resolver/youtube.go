package resolver

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"

	"github.com/lawran/lawran-downloader/internal/model"
)

// Media is a resolved media item: its title plus every stream the platform
// offers for it.
type Media struct {
	ID       string
	Title    string
	Duration time.Duration
	Streams  []model.StreamDescriptor
}

// PlaylistItem is one entry of a resolved playlist.
type PlaylistItem struct {
	URL   string
	Title string
}

// Playlist is a resolved playlist: a finite, ordered list of items.
type Playlist struct {
	ID    string
	Title string
	Items []PlaylistItem
}

// YouTube resolves URLs into stream metadata and opens stream transfers. It
// implements both the resolver and the transport side of the job engine.
type YouTube struct {
	client *youtube.Client
	log    zerolog.Logger

	mu     sync.Mutex
	videos map[string]*youtube.Video // resolved videos by ID, for Open
}

// NewYouTube creates a resolver with a default client.
func NewYouTube(log zerolog.Logger) *YouTube {
	return &YouTube{
		client: &youtube.Client{},
		log:    log,
		videos: make(map[string]*youtube.Video),
	}
}

// Resolve fetches metadata for one video URL and maps the platform's format
// list into stream descriptors.
func (y *YouTube) Resolve(ctx context.Context, rawURL string) (*Media, error) {
	video, err := y.client.GetVideoContext(ctx, rawURL)
	if err != nil {
		return nil, &model.ResolutionError{URL: rawURL, Err: err}
	}

	y.mu.Lock()
	y.videos[video.ID] = video
	y.mu.Unlock()

	media := &Media{
		ID:       video.ID,
		Title:    video.Title,
		Duration: video.Duration,
		Streams:  make([]model.StreamDescriptor, 0, len(video.Formats)),
	}
	for i := range video.Formats {
		if desc, ok := descriptorFromFormat(video.ID, &video.Formats[i]); ok {
			media.Streams = append(media.Streams, desc)
		}
	}
	if len(media.Streams) == 0 {
		return nil, &model.ResolutionError{
			URL: rawURL,
			Err: fmt.Errorf("no downloadable streams reported"),
		}
	}

	y.log.Debug().Str("video", video.ID).Int("streams", len(media.Streams)).Msg("resolved media")
	return media, nil
}

// Forget drops the cached metadata behind a video ID. Called when the job
// that resolved it finishes, so a long-running server does not accumulate
// one format list per job ever run.
func (y *YouTube) Forget(videoID string) {
	y.mu.Lock()
	delete(y.videos, videoID)
	y.mu.Unlock()
}

// Open starts the transfer behind a stream identifier previously handed out
// by Resolve.
func (y *YouTube) Open(ctx context.Context, identifier string) (io.ReadCloser, int64, error) {
	videoID, itag, err := parseIdentifier(identifier)
	if err != nil {
		return nil, 0, err
	}

	y.mu.Lock()
	video := y.videos[videoID]
	y.mu.Unlock()
	if video == nil {
		return nil, 0, fmt.Errorf("stream %s refers to an unresolved video", identifier)
	}

	for i := range video.Formats {
		if video.Formats[i].ItagNo == itag {
			return y.client.GetStreamContext(ctx, video, &video.Formats[i])
		}
	}
	return nil, 0, fmt.Errorf("stream %s not found in resolved formats", identifier)
}

// ResolvePlaylist fetches playlist membership once and returns the finite
// item list. Mix URLs must be rejected by the caller before reaching here;
// they resolve to unbounded pseudo-playlists.
func (y *YouTube) ResolvePlaylist(ctx context.Context, rawURL string) (*Playlist, error) {
	playlist, err := y.client.GetPlaylistContext(ctx, rawURL)
	if err != nil {
		return nil, &model.ResolutionError{URL: rawURL, Err: err}
	}

	out := &Playlist{
		ID:    playlist.ID,
		Title: playlist.Title,
		Items: make([]PlaylistItem, 0, len(playlist.Videos)),
	}
	for _, entry := range playlist.Videos {
		title := entry.Title
		if title == "" {
			title = entry.ID
		}
		out.Items = append(out.Items, PlaylistItem{
			URL:   WatchURL(entry.ID),
			Title: title,
		})
	}
	return out, nil
}

// Mix playlist ID prefixes. Mixes ("radio" playlists) are generated on the
// fly and practically unbounded, so they are not a well-defined batch job.
var mixPrefixes = []string{"RD", "UL"}

// IsMixURL structurally detects mix/radio pseudo-playlists from the list
// parameter of the URL.
func IsMixURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	listID := parsed.Query().Get("list")
	if listID == "" {
		return false
	}
	for _, prefix := range mixPrefixes {
		if strings.HasPrefix(listID, prefix) {
			return true
		}
	}
	return false
}

// WatchURL builds the canonical watch URL for a video ID.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// descriptorFromFormat maps one platform format into a stream descriptor.
// Formats that are neither video nor audio (storyboards etc.) are skipped.
func descriptorFromFormat(videoID string, f *youtube.Format) (model.StreamDescriptor, bool) {
	hasVideo := f.Height > 0
	hasAudio := f.AudioChannels > 0

	var kind model.StreamKind
	switch {
	case hasVideo && hasAudio:
		kind = model.StreamProgressive
	case hasVideo:
		kind = model.StreamVideo
	case hasAudio:
		kind = model.StreamAudio
	default:
		return model.StreamDescriptor{}, false
	}

	return model.StreamDescriptor{
		Kind:            kind,
		Container:       containerFromMime(f.MimeType, kind),
		ResolutionLabel: f.QualityLabel,
		Height:          f.Height,
		Bitrate:         f.Bitrate,
		SizeBytes:       f.ContentLength, // 0 when the platform omits it
		Identifier:      fmt.Sprintf("%s/%d", videoID, f.ItagNo),
	}, true
}

// containerFromMime derives the container label used for temp-file naming
// and merge decisions from a MIME type like "video/mp4; codecs=...".
func containerFromMime(mimeType string, kind model.StreamKind) string {
	media := mimeType
	if idx := strings.IndexByte(media, ';'); idx >= 0 {
		media = media[:idx]
	}
	media = strings.TrimSpace(media)

	subtype := media
	if idx := strings.IndexByte(media, '/'); idx >= 0 {
		subtype = media[idx+1:]
	}

	if kind == model.StreamAudio {
		switch subtype {
		case "mp4":
			return "m4a"
		case "webm":
			return "weba"
		}
	}
	if subtype == "" {
		return "mp4"
	}
	return subtype
}

func parseIdentifier(identifier string) (videoID string, itag int, err error) {
	idx := strings.LastIndexByte(identifier, '/')
	if idx <= 0 || idx == len(identifier)-1 {
		return "", 0, fmt.Errorf("malformed stream identifier %q", identifier)
	}
	itag, err = strconv.Atoi(identifier[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed stream identifier %q", identifier)
	}
	return identifier[:idx], itag, nil
}
