package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/lawran/lawran-downloader/internal/catalog"
	"github.com/lawran/lawran-downloader/internal/events"
	"github.com/lawran/lawran-downloader/internal/media"
	"github.com/lawran/lawran-downloader/internal/model"
	"github.com/lawran/lawran-downloader/internal/platform"
	"github.com/lawran/lawran-downloader/internal/progress"
	"github.com/lawran/lawran-downloader/internal/resolver"
	"github.com/lawran/lawran-downloader/internal/transfer"
)

// TempFilePrefix marks every intermediate file a job writes. Purge matches
// on it, and the library listing hides dotfiles, so a crashed job never
// shows half-written files to the user.
const TempFilePrefix = ".lawran-"

// Controller executes one download job end to end: resolve, select,
// transfer, process, finalize. It owns no job bookkeeping; the Manager
// tracks state through the setStatus callback.
type Controller struct {
	res     Resolver
	exec    *transfer.Executor
	newProc ProcessorFactory
	sink    events.Sink
	log     zerolog.Logger
}

// NewController wires a controller from its collaborators.
func NewController(res Resolver, exec *transfer.Executor, newProc ProcessorFactory, sink events.Sink, log zerolog.Logger) *Controller {
	return &Controller{
		res:     res,
		exec:    exec,
		newProc: newProc,
		sink:    sink,
		log:     log,
	}
}

// Run executes the pipeline for one job. Every temp file it creates carries
// the job-scoped prefix and is removed before Run returns, success or not.
func (c *Controller) Run(ctx context.Context, id string, spec model.JobSpec, setStatus func(model.JobStatus)) (*model.FinalArtifact, error) {
	if setStatus == nil {
		setStatus = func(model.JobStatus) {}
	}
	start := time.Now()
	agg := progress.NewAggregator(c.log)

	setStatus(model.JobResolving)
	c.sink.Terminal("Fetching video information...")
	med, err := c.res.Resolve(ctx, spec.URL)
	if err != nil {
		return nil, c.fail(agg, "", err)
	}
	defer c.res.Forget(med.ID)
	title := platform.SanitizeFilename(med.Title)
	c.sink.Terminal(fmt.Sprintf("Title: %s", med.Title))

	setStatus(model.JobSelectingStreams)
	sel, err := catalog.SelectStreams(med.Streams, spec)
	if err != nil {
		return nil, c.fail(agg, title, err)
	}

	finalName := finalFilename(title, spec, sel)
	c.sink.Terminal(fmt.Sprintf("Selected: %s", describeSelection(sel)))

	// Fail a doomed job before any bytes move.
	var proc MediaProcessor
	if sel.Mode != model.ModeProgressiveOnly {
		proc, err = c.newProc()
		if err != nil {
			return nil, c.fail(agg, finalName, err)
		}
	}

	if err := platform.CreateDirectoryIfNotExists(spec.OutputDir); err != nil {
		return nil, c.fail(agg, finalName, &model.FilesystemError{Op: "mkdir", Path: spec.OutputDir, Err: err})
	}

	prefix := TempFilePrefix + id
	defer c.purge(spec.OutputDir, prefix)

	// Seed totals from the descriptors so the starting event already
	// carries the expected size when the platform reported one.
	for _, desc := range sel.Streams() {
		agg.Register(desc.Identifier, desc.SizeBytes)
	}
	agg.Emit(c.sink, model.StatusStarting, finalName)

	setStatus(model.JobTransferring)
	c.sink.Terminal("Downloading...")
	notify := func() {
		agg.MaybeEmit(c.sink, model.StatusDownloading, finalName)
	}
	res, err := c.exec.Transfer(ctx, sel, spec.OutputDir, prefix, agg, notify)
	if err != nil {
		return nil, c.fail(agg, finalName, err)
	}

	finalPath := filepath.Join(spec.OutputDir, finalName)
	var art *model.FinalArtifact
	switch sel.Mode {
	case model.ModeProgressiveOnly:
		setStatus(model.JobFinalizing)
		art, err = c.finalizeRename(res.VideoPath, finalPath, start)

	case model.ModeAdaptiveMerge:
		setStatus(model.JobProcessing)
		agg.Emit(c.sink, model.StatusMerging, finalName)
		c.sink.Terminal("Merging video and audio...")
		outTemp := filepath.Join(spec.OutputDir, prefix+"-out."+model.FormatMP4)
		art, err = proc.Merge(ctx, res.VideoPath, res.AudioPath, outTemp)
		if err == nil {
			setStatus(model.JobFinalizing)
			art, err = c.finalizeRename(outTemp, finalPath, start)
		}

	case model.ModeAudioOnly:
		setStatus(model.JobProcessing)
		agg.Emit(c.sink, model.StatusConverting, finalName)
		c.sink.Terminal(fmt.Sprintf("Converting to %s...", spec.Format))
		var codec string
		codec, err = media.CodecFor(spec.Format)
		if err == nil {
			outTemp := filepath.Join(spec.OutputDir, prefix+"-out."+spec.Format)
			art, err = proc.Transcode(ctx, res.AudioPath, outTemp, codec, media.DefaultBitrate)
		}
		if err == nil {
			setStatus(model.JobFinalizing)
			art, err = c.finalizeRename(art.Path, finalPath, start)
		}

	default:
		err = fmt.Errorf("unknown selection mode %q", sel.Mode)
	}
	if err != nil {
		return nil, c.fail(agg, finalName, err)
	}

	setStatus(model.JobComplete)
	agg.Emit(c.sink, model.StatusComplete, finalName)
	c.sink.Terminal(fmt.Sprintf("Saved to %s", art.Path))
	c.sink.Complete(finalName)
	c.log.Info().
		Str("job", id).
		Str("file", art.Path).
		Int64("bytes", art.SizeBytes).
		Dur("elapsed", art.Elapsed).
		Msg("job complete")
	return art, nil
}

// PlaylistInfo resolves playlist membership, rejecting mixes outright.
func (c *Controller) PlaylistInfo(ctx context.Context, url string) (*resolver.Playlist, error) {
	if resolver.IsMixURL(url) {
		return nil, ErrMixNotSupported
	}
	return c.res.ResolvePlaylist(ctx, url)
}

// finalizeRename moves a finished temp file to its final name and makes
// sure the bytes are on disk before anyone is told about the file.
func (c *Controller) finalizeRename(tempPath, finalPath string, start time.Time) (*model.FinalArtifact, error) {
	if err := os.Rename(tempPath, finalPath); err != nil {
		return nil, &model.FilesystemError{Op: "rename", Path: finalPath, Err: err}
	}
	if err := platform.SyncFile(finalPath); err != nil {
		return nil, &model.FilesystemError{Op: "sync", Path: finalPath, Err: err}
	}
	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, &model.FilesystemError{Op: "stat", Path: finalPath, Err: err}
	}
	return &model.FinalArtifact{
		Path:      finalPath,
		SizeBytes: info.Size(),
		Elapsed:   time.Since(start),
	}, nil
}

// fail publishes the failure once and hands the error back to the caller.
func (c *Controller) fail(agg *progress.Aggregator, filename string, err error) error {
	c.log.Error().Err(err).Str("filename", filename).Msg("job failed")
	agg.Emit(c.sink, model.StatusError, filename)
	c.sink.Error(UserMessage(err), filename)
	return err
}

// purge removes every file carrying the job's temp prefix. It runs on every
// exit path, so failed and cancelled jobs leave nothing behind.
func (c *Controller) purge(dir, prefix string) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"*"))
	if err != nil {
		return
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			c.log.Warn().Err(err).Str("path", path).Msg("failed to remove temp file")
		}
	}
}

func finalFilename(title string, spec model.JobSpec, sel model.StreamSelection) string {
	switch sel.Mode {
	case model.ModeAudioOnly:
		return title + "." + spec.Format
	case model.ModeAdaptiveMerge:
		return title + "." + model.FormatMP4
	default:
		return title + "." + sel.Video.Container
	}
}

func describeSelection(sel model.StreamSelection) string {
	switch sel.Mode {
	case model.ModeAudioOnly:
		return fmt.Sprintf("audio %d kbps (%s)", sel.Audio.Bitrate/1000, sel.Audio.Container)
	case model.ModeAdaptiveMerge:
		return fmt.Sprintf("video %s + audio %d kbps", sel.Video.ResolutionLabel, sel.Audio.Bitrate/1000)
	default:
		return fmt.Sprintf("progressive %s", sel.Video.ResolutionLabel)
	}
}
