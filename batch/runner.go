// Package batch drives a window of targets through the browser session,
// the extraction engine and the governor, checkpointing as it goes.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/postpulse/cache"
	"github.com/use-agent/postpulse/governor"
	"github.com/use-agent/postpulse/ingest"
	"github.com/use-agent/postpulse/metrics"
	"github.com/use-agent/postpulse/models"
	"github.com/use-agent/postpulse/snapshot"
)

// ErrAborted is returned when no browser session can be created.
var ErrAborted = errors.New("batch aborted")

// State is the runner lifecycle state.
type State string

const (
	StateIdle        State = "idle"
	StateRunning     State = "running"
	StateCompleted   State = "completed"
	StateAborted     State = "aborted"
	StateInterrupted State = "interrupted"
)

// Session is the browser surface the runner drives.
type Session interface {
	Open(ctx context.Context, url string, waitBudget time.Duration) (*snapshot.Snapshot, error)
	ShouldRetire() bool
	Close() error
}

// SessionFactory creates a fresh session.
type SessionFactory func(ctx context.Context) (Session, error)

// Extractor maps a snapshot to a record.
type Extractor interface {
	Extract(snap *snapshot.Snapshot) models.EngagementRecord
}

// Observer is called after each target is recorded.
type Observer func(t models.Target, r models.EngagementRecord)

// Window selects targets [Start, Start+Size); Size 0 runs to the end.
type Window struct {
	Start int
	Size  int
}

// Bounds resolves the window against n targets.
func (w Window) Bounds(n int) (start, end int, err error) {
	if w.Start < 0 || w.Size < 0 {
		return 0, 0, fmt.Errorf("batch: invalid window start=%d size=%d", w.Start, w.Size)
	}
	if w.Start > n {
		return 0, 0, fmt.Errorf("batch: window start %d beyond %d targets", w.Start, n)
	}
	end = n
	if w.Size > 0 {
		end = min(w.Start+w.Size, n)
	}
	return w.Start, end, nil
}

// Config tunes the runner.
type Config struct {
	WaitBudget            time.Duration
	AutoSaveEvery         int
	SessionCreateAttempts int
}

// Deps are the runner's collaborators. Metrics, Cache and Observer are
// optional.
type Deps struct {
	Sessions  SessionFactory
	Extractor Extractor
	Store     Store
	Governor  *governor.Governor
	Metrics   *metrics.Metrics
	Cache     *cache.Cache
	Observer  Observer
}

// Summary describes a finished run.
type Summary struct {
	State              State         `json:"state"`
	WindowStart        int           `json:"window_start"`
	WindowEnd          int           `json:"window_end"`
	Processed          int           `json:"processed"`
	Succeeded          int           `json:"succeeded"`
	Partial            int           `json:"partial"`
	Failed             int           `json:"failed"`
	CacheHits          int           `json:"cache_hits"`
	LastCompletedIndex int           `json:"last_completed_index"`
	Rows               int           `json:"rows"`
	Duration           time.Duration `json:"duration"`
	Error              string        `json:"error,omitempty"`
}

// Runner processes one window at a time. Run is not safe for concurrent
// use; Progress may be called from any goroutine.
type Runner struct {
	cfg  Config
	deps Deps

	session Session

	mu    sync.Mutex
	state State
	stats models.ProgressStats
}

// NewRunner creates an idle runner.
func NewRunner(cfg Config, deps Deps) *Runner {
	if cfg.SessionCreateAttempts < 1 {
		cfg.SessionCreateAttempts = 1
	}
	return &Runner{cfg: cfg, deps: deps, state: StateIdle}
}

// Run processes targets[start:end) in order. Every processed target yields
// exactly one row; a target that already has a row gets it replaced, and
// rows outside the window are left untouched. Progress is saved every AutoSaveEvery items and
// unconditionally when the run ends, however it ends. A canceled context
// ends the run as Interrupted with the in-flight target unrecorded; a
// session that cannot be created ends it as Aborted with ErrAborted.
func (r *Runner) Run(ctx context.Context, targets []models.Target, w Window) (*Summary, error) {
	start, end, err := w.Bounds(len(targets))
	if err != nil {
		return nil, err
	}

	progress, err := r.deps.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("batch: load progress: %w", err)
	}
	if err := progress.ResumeAt(start); err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	if revisit := progress.FirstIndex + len(progress.Records) - start; revisit > 0 {
		slog.Info("window revisits recorded rows, replacing them in place",
			"start", start, "end", end, "revisited", min(revisit, end-start))
	}

	r.begin(start, end, progress.LastCompletedIndex)
	began := time.Now()
	slog.Info("batch started", "start", start, "end", end, "priorRows", len(progress.Records))

	state := StateCompleted
	var runErr error
	sinceSave := 0

	for _, t := range targets[start:end] {
		if err := r.deps.Governor.Wait(ctx); err != nil {
			state = StateInterrupted
			break
		}

		rec, err := r.process(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				state = StateInterrupted
			} else {
				state = StateAborted
				runErr = fmt.Errorf("%w at index %d: %w", ErrAborted, t.Index, err)
			}
			break
		}

		if err := progress.Put(t.Index, rec); err != nil {
			state = StateAborted
			runErr = fmt.Errorf("batch: %w", err)
			break
		}
		r.deps.Governor.RecordOutcome(rec.Status != models.StatusFailed)
		r.record(t, rec)

		sinceSave++
		if r.cfg.AutoSaveEvery > 0 && sinceSave >= r.cfg.AutoSaveEvery {
			if err := r.save(progress); err != nil {
				slog.Error("auto-save failed", "error", err)
			} else {
				sinceSave = 0
			}
		}
	}

	r.closeSession("closed")
	if err := r.save(progress); err != nil {
		runErr = errors.Join(runErr, err)
	}
	r.setState(state)

	summary := r.summary(state, len(progress.Records), time.Since(began), runErr)
	slog.Info("batch finished",
		"state", summary.State,
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"partial", summary.Partial,
		"failed", summary.Failed,
		"rows", summary.Rows,
		"duration", summary.Duration,
	)
	return summary, runErr
}

// process produces the record for one target. It returns an error only
// when the run must stop: cancellation or a fatal session failure.
func (r *Runner) process(ctx context.Context, t models.Target) (models.EngagementRecord, error) {
	if !ingest.ValidPostURL(t.URL) {
		slog.Warn("invalid post URL", "index", t.Index, "url", t.URL)
		return models.FailedRecord(t.URL, models.NewScrapeError(models.ErrCodeInvalidInput, "missing or invalid post URL", nil)), nil
	}

	if rec, ok := r.deps.Cache.Get(t.URL); ok {
		slog.Info("reusing cached record", "index", t.Index, "url", t.URL)
		r.deps.Metrics.IncCacheHit()
		r.mu.Lock()
		r.stats.CacheHits++
		r.mu.Unlock()
		return rec, nil
	}

	var snap *snapshot.Snapshot
	attempts, err := r.deps.Governor.Do(ctx, func(ctx context.Context, attempt int) error {
		sess, err := r.ensureSession(ctx)
		if err != nil {
			return err
		}
		r.deps.Metrics.IncAttempt()
		navStart := time.Now()
		s, err := sess.Open(ctx, t.URL, r.cfg.WaitBudget)
		r.deps.Metrics.ObserveNavigation(time.Since(navStart))

		switch {
		case models.IsSessionCrash(err):
			slog.Warn("browser session crashed", "url", t.URL, "attempt", attempt, "error", err)
			r.closeSession("crashed")
		case sess.ShouldRetire():
			r.closeSession("retired")
		}
		if err != nil {
			return err
		}
		snap = s
		return nil
	})
	if err != nil {
		if ctx.Err() != nil || models.IsSessionFatal(err) {
			return models.EngagementRecord{}, err
		}
		slog.Warn("navigation failed", "index", t.Index, "url", t.URL, "attempts", attempts, "error", err)
		return models.FailedRecord(t.URL, err), nil
	}

	rec := r.deps.Extractor.Extract(snap)
	rec.URL = t.URL
	r.deps.Metrics.ObserveSources(rec.Sources)
	r.deps.Cache.Set(rec)
	return rec, nil
}

// ensureSession returns the live session, creating one when needed.
func (r *Runner) ensureSession(ctx context.Context) (Session, error) {
	if r.session != nil {
		return r.session, nil
	}
	var lastErr error
	for attempt := 1; attempt <= r.cfg.SessionCreateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := r.deps.Sessions(ctx)
		if err == nil {
			r.session = s
			r.deps.Metrics.IncSession("created")
			return s, nil
		}
		lastErr = err
		r.deps.Metrics.IncSession("create_failed")
		slog.Error("browser session creation failed", "attempt", attempt, "error", err)
	}
	if models.IsSessionFatal(lastErr) {
		return nil, lastErr
	}
	return nil, models.NewScrapeError(models.ErrCodeSessionCreate, "browser session could not be created", lastErr)
}

func (r *Runner) closeSession(event string) {
	if r.session == nil {
		return
	}
	if err := r.session.Close(); err != nil {
		slog.Warn("closing browser session", "error", err)
	}
	r.session = nil
	if event != "closed" {
		r.deps.Metrics.IncSession(event)
	}
}

func (r *Runner) save(p *models.BatchProgress) error {
	if err := r.deps.Store.Save(p); err != nil {
		return fmt.Errorf("batch: save progress: %w", err)
	}
	r.deps.Metrics.IncCheckpoint()
	r.mu.Lock()
	r.stats.Saved = len(p.Records)
	r.mu.Unlock()
	slog.Debug("progress saved", "rows", len(p.Records), "lastCompletedIndex", p.LastCompletedIndex)
	return nil
}

func (r *Runner) begin(start, end, lastCompleted int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateRunning
	r.stats = models.ProgressStats{
		WindowStart:        start,
		WindowEnd:          end,
		LastCompletedIndex: lastCompleted,
	}
}

func (r *Runner) record(t models.Target, rec models.EngagementRecord) {
	r.mu.Lock()
	r.stats.Processed++
	r.stats.LastCompletedIndex = t.Index
	switch rec.Status {
	case models.StatusSuccess:
		r.stats.Succeeded++
	case models.StatusPartial:
		r.stats.Partial++
	default:
		r.stats.Failed++
	}
	r.mu.Unlock()

	r.deps.Metrics.IncItem(string(rec.Status))
	slog.Info("target processed", "index", t.Index, "url", t.URL, "status", rec.Status)
	if r.deps.Observer != nil {
		r.deps.Observer(t, rec)
	}
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}

// Progress returns a point-in-time view of the current or last run.
func (r *Runner) Progress() models.ProgressStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := r.stats
	stats.State = string(r.state)
	return stats
}

func (r *Runner) summary(state State, rows int, d time.Duration, err error) *Summary {
	p := r.Progress()
	s := &Summary{
		State:              state,
		WindowStart:        p.WindowStart,
		WindowEnd:          p.WindowEnd,
		Processed:          p.Processed,
		Succeeded:          p.Succeeded,
		Partial:            p.Partial,
		Failed:             p.Failed,
		CacheHits:          p.CacheHits,
		LastCompletedIndex: p.LastCompletedIndex,
		Rows:               rows,
		Duration:           d,
	}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}
