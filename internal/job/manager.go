package job

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lawran/lawran-downloader/internal/events"
	"github.com/lawran/lawran-downloader/internal/model"
	"github.com/lawran/lawran-downloader/internal/platform"
	"github.com/lawran/lawran-downloader/internal/resolver"
)

// DefaultMaxConcurrent bounds how many jobs transfer at once. A playlist
// batch occupies one slot for its whole run.
const DefaultMaxConcurrent = 3

// Job is the Manager's record of one submitted job.
type Job struct {
	ID        string
	Spec      model.JobSpec
	Status    model.JobStatus
	Error     string
	Artifact  *model.FinalArtifact
	CreatedAt time.Time
}

// Manager accepts jobs, runs them on a bounded pool, and tracks their
// lifecycle. Submission never blocks; the returned ID can be used to poll
// state while events stream separately.
type Manager struct {
	ctrl *Controller
	sink events.Sink
	log  zerolog.Logger
	sem  chan struct{}

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewManager creates a manager running at most maxConcurrent jobs at once.
func NewManager(ctrl *Controller, sink events.Sink, log zerolog.Logger, maxConcurrent int) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		ctrl:    ctrl,
		sink:    sink,
		log:     log,
		sem:     make(chan struct{}, maxConcurrent),
		baseCtx: ctx,
		cancel:  cancel,
		jobs:    make(map[string]*Job),
	}
}

// Submit accepts a single-item job and returns its ID immediately.
func (m *Manager) Submit(spec model.JobSpec) string {
	id := m.register(spec)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if !m.acquire(id) {
			return
		}
		defer m.release()
		m.runOne(id, spec)
	}()
	return id
}

// SubmitPlaylist accepts a playlist batch and returns its ID immediately.
// Items run sequentially inside one pool slot; a failed item is skipped and
// the batch continues.
func (m *Manager) SubmitPlaylist(url string, count, quality int, format, outputDir string) string {
	spec := model.JobSpec{
		URL:       url,
		Kind:      model.JobKindPlaylistItem,
		Quality:   quality,
		Format:    format,
		OutputDir: outputDir,
	}
	id := m.register(spec)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if !m.acquire(id) {
			return
		}
		defer m.release()
		m.runPlaylist(id, spec, count)
	}()
	return id
}

// PlaylistInfo resolves playlist membership synchronously for the caller.
func (m *Manager) PlaylistInfo(ctx context.Context, url string) (*resolver.Playlist, error) {
	return m.ctrl.PlaylistInfo(ctx, url)
}

// Job returns a copy of the record for id.
func (m *Manager) Job(id string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// ActiveCount reports how many jobs are not yet terminal.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, j := range m.jobs {
		if !j.Status.IsTerminal() {
			n++
		}
	}
	return n
}

// Shutdown cancels every running job and waits for the pool to drain.
func (m *Manager) Shutdown() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) register(spec model.JobSpec) string {
	id := uuid.Must(uuid.NewV7()).String()
	m.mu.Lock()
	m.jobs[id] = &Job{
		ID:        id,
		Spec:      spec,
		Status:    model.JobPending,
		CreatedAt: time.Now(),
	}
	m.mu.Unlock()
	m.log.Info().Str("job", id).Str("url", spec.URL).Str("kind", string(spec.Kind)).Msg("job accepted")
	return id
}

// acquire takes a pool slot, or marks the job failed if the manager is
// shutting down first.
func (m *Manager) acquire(id string) bool {
	select {
	case m.sem <- struct{}{}:
		return true
	case <-m.baseCtx.Done():
		m.finish(id, nil, m.baseCtx.Err())
		return false
	}
}

func (m *Manager) release() {
	<-m.sem
}

func (m *Manager) runOne(id string, spec model.JobSpec) {
	art, err := m.ctrl.Run(m.baseCtx, id, spec, func(st model.JobStatus) {
		m.setStatus(id, st)
	})
	m.finish(id, art, err)
}

func (m *Manager) runPlaylist(id string, spec model.JobSpec, count int) {
	m.setStatus(id, model.JobResolving)
	pl, err := m.ctrl.PlaylistInfo(m.baseCtx, spec.URL)
	if err != nil {
		m.sink.Error(UserMessage(err), "")
		m.finish(id, nil, err)
		return
	}

	items := pl.Items
	if count > 0 && count < len(items) {
		items = items[:count]
	}
	total := len(items)
	if total == 0 {
		err := fmt.Errorf("playlist %q has no items", pl.Title)
		m.sink.Error("The playlist is empty.", "")
		m.finish(id, nil, err)
		return
	}

	subdir := filepath.Join(spec.OutputDir, platform.SanitizeFilename(pl.Title))
	m.sink.PlaylistStatus(fmt.Sprintf("Starting playlist: %s (%d videos)", pl.Title, total), 0, total)

	succeeded := 0
	for i, item := range items {
		if m.baseCtx.Err() != nil {
			break
		}
		m.sink.PlaylistStatus(fmt.Sprintf("Downloading %d of %d: %s", i+1, total, item.Title), i+1, total)

		itemSpec := model.JobSpec{
			URL:       item.URL,
			Kind:      model.JobKindPlaylistItem,
			Quality:   spec.Quality,
			Format:    spec.Format,
			OutputDir: subdir,
		}
		itemID := fmt.Sprintf("%s-%d", id, i+1)
		// Item outcomes stay off the batch record; only finish() below
		// decides the batch's terminal status.
		if _, err := m.ctrl.Run(m.baseCtx, itemID, itemSpec, func(st model.JobStatus) {
			if !st.IsTerminal() {
				m.setStatus(id, st)
			}
		}); err != nil {
			m.log.Warn().Err(err).Str("url", item.URL).Msg("playlist item failed, continuing")
			m.sink.PlaylistStatus(fmt.Sprintf("Skipped %d of %d: %s", i+1, total, item.Title), i+1, total)
			continue
		}
		succeeded++
	}

	m.sink.PlaylistStatus(fmt.Sprintf("Playlist finished: %d of %d downloaded", succeeded, total), total, total)
	if succeeded == 0 {
		m.finish(id, nil, fmt.Errorf("every item of playlist %q failed", pl.Title))
		return
	}
	m.finish(id, nil, nil)
}

func (m *Manager) setStatus(id string, st model.JobStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok && !j.Status.IsTerminal() {
		j.Status = st
	}
}

func (m *Manager) finish(id string, art *model.FinalArtifact, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return
	}
	if err != nil {
		j.Status = model.JobFailed
		j.Error = err.Error()
		return
	}
	j.Status = model.JobComplete
	j.Artifact = art
}
