package progress

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lawran/lawran-downloader/internal/model"
)

// EmitInterval is the minimum spacing between two rate-limited progress
// emissions for one job. Phase transitions bypass the limit.
const EmitInterval = 250 * time.Millisecond

// Observer receives structured progress events. Any concrete sink (SSE hub,
// buffer, console) satisfies it.
type Observer interface {
	Progress(ev model.ProgressEvent)
}

// streamState tracks one stream's byte counters. Each entry is written by
// exactly one transfer goroutine; readers take an approximate snapshot
// without locking out the writer.
type streamState struct {
	mu         sync.Mutex
	downloaded int64
	total      int64 // 0 when the platform did not report a size
}

// Aggregator accumulates per-stream byte counters for one job and converts
// them into rate-limited, human-formatted progress events.
type Aggregator struct {
	start   time.Time
	limiter *rate.Limiter
	log     zerolog.Logger

	mu          sync.RWMutex
	streams     map[string]*streamState
	lastPercent float64
}

// NewAggregator creates an empty aggregator. The job's elapsed clock starts
// now.
func NewAggregator(log zerolog.Logger) *Aggregator {
	return &Aggregator{
		start:   time.Now(),
		limiter: rate.NewLimiter(rate.Every(EmitInterval), 1),
		log:     log,
		streams: make(map[string]*streamState),
	}
}

// Register adds a stream to the aggregate. total may be 0 when the platform
// does not report a size; the stream still contributes downloaded bytes.
func (a *Aggregator) Register(id string, total int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.streams[id] = &streamState{total: total}
}

// SetTotal updates a stream's total once the transport learns the real
// length at open time.
func (a *Aggregator) SetTotal(id string, total int64) {
	a.mu.RLock()
	st := a.streams[id]
	a.mu.RUnlock()
	if st == nil || total <= 0 {
		return
	}
	st.mu.Lock()
	st.total = total
	st.mu.Unlock()
}

// Record stores the absolute downloaded byte count for one stream.
func (a *Aggregator) Record(id string, downloaded int64) {
	a.mu.RLock()
	st := a.streams[id]
	a.mu.RUnlock()
	if st == nil {
		return
	}
	st.mu.Lock()
	if downloaded > st.downloaded {
		st.downloaded = downloaded
	}
	st.mu.Unlock()
}

// Snapshot is a point-in-time aggregate over all registered streams.
type Snapshot struct {
	Downloaded int64
	Total      int64 // sum of known totals only
	KnownTotal bool  // false when any stream's total is unknown
	Elapsed    time.Duration
	Speed      float64 // bytes per second, 0 when elapsed is 0
	ETA        time.Duration
	Percent    float64 // best-effort over known totals, monotonic per job
}

// Snapshot sums the per-stream counters. The result is approximate while
// transfers are running; no lock is held across all streams at once.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	states := make([]*streamState, 0, len(a.streams))
	for _, st := range a.streams {
		states = append(states, st)
	}
	a.mu.RUnlock()

	snap := Snapshot{KnownTotal: true, Elapsed: time.Since(a.start)}
	var downloadedKnown int64
	for _, st := range states {
		st.mu.Lock()
		d, t := st.downloaded, st.total
		st.mu.Unlock()

		snap.Downloaded += d
		if t > 0 {
			snap.Total += t
			downloadedKnown += d
		} else {
			snap.KnownTotal = false
		}
	}

	if secs := snap.Elapsed.Seconds(); secs > 0 {
		snap.Speed = float64(snap.Downloaded) / secs
	}
	if snap.Total > 0 {
		snap.Percent = float64(downloadedKnown) / float64(snap.Total) * 100
		if snap.Percent > 100 {
			snap.Percent = 100
		}
		if remaining := snap.Total - downloadedKnown; remaining > 0 && snap.Speed > 0 && snap.KnownTotal {
			snap.ETA = time.Duration(float64(remaining) / snap.Speed * float64(time.Second))
		}
	}

	// Percent never goes backwards within one job, even if a total is
	// revised upward mid-transfer.
	a.mu.Lock()
	if snap.Percent < a.lastPercent {
		snap.Percent = a.lastPercent
	} else {
		a.lastPercent = snap.Percent
	}
	a.mu.Unlock()

	return snap
}

// Event builds a formatted progress event for the given phase.
func (a *Aggregator) Event(status model.ProgressStatus, filename string) model.ProgressEvent {
	snap := a.Snapshot()
	if status == model.StatusComplete {
		snap.Percent = 100
		snap.ETA = 0
	}
	return model.ProgressEvent{
		Percent:         snap.Percent,
		Indeterminate:   !snap.KnownTotal,
		DownloadedHuman: FormatBytes(snap.Downloaded),
		TotalHuman:      FormatBytes(snap.Total),
		SpeedHuman:      FormatSpeed(snap.Speed),
		ETAHuman:        FormatETA(snap.ETA),
		Status:          status,
		Filename:        filename,
		Active:          status != model.StatusComplete && status != model.StatusError,
	}
}

// MaybeEmit sends a progress event if at least EmitInterval has passed since
// the previous emission for this job. Use Emit for phase transitions.
func (a *Aggregator) MaybeEmit(obs Observer, status model.ProgressStatus, filename string) {
	if !a.limiter.Allow() {
		return
	}
	a.Emit(obs, status, filename)
}

// Emit sends a progress event unconditionally. Observer panics are logged
// and swallowed: a broken observer must never abort a healthy transfer.
func (a *Aggregator) Emit(obs Observer, status model.ProgressStatus, filename string) {
	if obs == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.log.Debug().Interface("panic", r).Msg("progress observer panicked")
		}
	}()
	obs.Progress(a.Event(status, filename))
}
