package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/pagecrawl/internal/progress"
)

var errAlreadyProcessed = errors.New("task has already been processed")

// Option customises a Task.
type Option func(*Task)

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Task) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithEmitter routes progress events to emitter.
func WithEmitter(emitter progress.Emitter) Option {
	return func(t *Task) {
		if emitter != nil {
			t.emitter = emitter
		}
	}
}

// WithClock replaces the wall clock used for event timestamps and durations.
func WithClock(clock Clock) Option {
	return func(t *Task) {
		if clock != nil {
			t.now = clock.Now
		}
	}
}

// WithIDGenerator sets the source of the run ID.
func WithIDGenerator(ids IDGenerator) Option {
	return func(t *Task) {
		t.ids = ids
	}
}

// Task is one crawl run over a configured list. It is owned by a single
// Process call; Stop is the only method that may be called concurrently.
type Task struct {
	cfg      Config
	output   string
	fetcher  Fetcher
	matchers matchers
	throttle *throttle
	logger   *zap.Logger
	emitter  progress.Emitter
	ids      IDGenerator
	runID    uuid.UUID
	now      func() time.Time

	running atomic.Bool
	stopped atomic.Bool

	state   State
	trav    traversal
	fetched int
}

// NewTask validates cfg, compiles its selectors and patterns, and returns an
// Idle task that will append to outputPath. No I/O happens here.
func NewTask(cfg Config, outputPath string, fetcher Fetcher, opts ...Option) (*Task, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if outputPath == "" {
		return nil, &ConfigError{Key: "output", Err: errors.New("output path is required")}
	}
	if fetcher == nil {
		return nil, errors.New("crawler: fetcher is required")
	}
	m, err := compileMatchers(cfg)
	if err != nil {
		return nil, err
	}
	t := &Task{
		cfg:      cfg,
		output:   outputPath,
		fetcher:  fetcher,
		matchers: m,
		throttle: newThrottle(cfg),
		logger:   zap.NewNop(),
		emitter:  progress.Discard,
		now:      func() time.Time { return time.Now().UTC() },
		state:    StateIdle,
		trav: traversal{
			list:   cfg.URLList,
			cursor: cfg.URLListIndex,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.runID = uuid.New()
	if t.ids != nil {
		if t.runID, err = t.ids.NewRawID(); err != nil {
			return nil, fmt.Errorf("crawler: run id: %w", err)
		}
	}
	t.logger = t.logger.With(zap.String("run_id", t.runID.String()))
	return t, nil
}

// Stop asks a running Process to return at its next iteration boundary. An
// in-flight delay or fetch is not interrupted.
func (t *Task) Stop() {
	t.stopped.Store(true)
	t.running.Store(false)
}

// Process drives the fetch, extract and resolve loop until the list is
// exhausted, an error aborts the run, or the task is stopped. Stopping, or
// cancelling ctx, is not an error.
func (t *Task) Process(ctx context.Context) error {
	if t.state != StateIdle {
		return errAlreadyProcessed
	}
	t.state = StateRunning
	t.running.Store(!t.stopped.Load())
	started := t.now()
	t.emit(progress.Event{Stage: progress.StageRunStart})
	t.logger.Info("crawl started",
		zap.Int("cursor", t.trav.cursor),
		zap.Int("total", len(t.trav.list)),
		zap.String("output", t.output),
	)

	if t.trav.finished() {
		return t.complete(started)
	}
	if !t.running.Load() || ctx.Err() != nil {
		return t.cancel(started)
	}

	sink, err := OpenFileSink(t.output, t.logger)
	if err != nil {
		return t.abort(started, err)
	}
	err = t.loop(ctx, sink, started)
	if cerr := sink.Close(); cerr != nil && err == nil {
		t.state = StateAborted
		return cerr
	}
	return err
}

func (t *Task) loop(ctx context.Context, sink *FileSink, started time.Time) error {
	skipRender := t.cfg.IsExpiredNext
	for {
		if !t.running.Load() || ctx.Err() != nil {
			return t.cancel(started)
		}
		entry, err := t.trav.target()
		if err != nil {
			return t.abort(started, err)
		}
		pageURL := t.cfg.Base + entry

		delay, err := t.throttle.wait(ctx, t.fetched, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return t.cancel(started)
			}
			return t.abort(started, err)
		}
		if delay > 0 {
			t.logger.Debug("politeness delay", zap.Duration("delay", delay))
		}

		doc, err := t.load(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return t.cancel(started)
			}
			return t.abort(started, err)
		}

		if skipRender {
			skipRender = false
			t.logger.Info("skipping extraction of already stored page", zap.String("url", pageURL))
		} else {
			rec, err := extract(doc, t.matchers, extractOptions{
				innerHTML:     t.cfg.IsInnerHTML,
				titleOptional: t.cfg.TitleOptional,
			}, pageURL)
			if err != nil {
				return t.abort(started, err)
			}
			if err := sink.WriteRecord(rec); err != nil {
				return t.abort(started, err)
			}
		}

		if t.advance(doc, pageURL) {
			return t.complete(started)
		}
	}
}

// load fetches pageURL and parses the body. Failures are reported with the
// fetched-item counter as it was before this fetch.
func (t *Task) load(ctx context.Context, pageURL string) (*goquery.Document, error) {
	item := t.fetched
	t.fetched++
	t.emit(progress.Event{Stage: progress.StageFetchStart, URL: pageURL, Site: progress.SiteOf(pageURL), Item: item})
	t.logger.Debug("fetching page", zap.Int("item", item), zap.String("url", pageURL))

	resp, err := t.fetcher.Fetch(ctx, FetchRequest{
		URL:       pageURL,
		UserAgent: t.cfg.Agent,
		Encoding:  t.matchers.encoding,
	})
	if err != nil {
		return nil, &FetchError{URL: pageURL, Item: item, Err: err}
	}
	t.emit(progress.Event{
		Stage:       progress.StageFetchDone,
		URL:         pageURL,
		Site:        progress.SiteOf(pageURL),
		Item:        item,
		Bytes:       int64(len(resp.Body)),
		StatusClass: progress.ClassifyStatus(resp.StatusCode),
		Dur:         resp.Duration,
	})
	if t.cfg.HTTP.StrictStatus && resp.StatusCode >= 400 {
		return nil, &FetchError{
			URL:        pageURL,
			Item:       item,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	doc, err := newDocument(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Item: item, StatusCode: resp.StatusCode, Err: err}
	}
	return doc, nil
}

// advance applies link resolution and reports whether the list is exhausted.
func (t *Task) advance(doc *goquery.Document, pageURL string) bool {
	hadSubPages := len(t.trav.stack) > 0
	next, href := t.trav.resolve(doc, t.matchers)
	switch next {
	case transitionSubPage:
		if !hadSubPages {
			t.emit(progress.Event{Stage: progress.StageSubPages, URL: pageURL, Count: len(t.trav.stack)})
			t.logger.Debug("sub pages discovered", zap.Int("count", len(t.trav.stack)), zap.String("parent", pageURL))
		}
	case transitionRewrite:
		t.emit(progress.Event{Stage: progress.StageNextPage, URL: t.cfg.Base + href})
		t.logger.Debug("following next page", zap.Int("cursor", t.trav.cursor), zap.String("href", href))
	case transitionAdvance, transitionDone:
		t.emit(progress.Event{Stage: progress.StageItemDone, URL: pageURL})
	}
	if next == transitionDone {
		t.running.Store(false)
		return true
	}
	return false
}

func (t *Task) complete(started time.Time) error {
	t.running.Store(false)
	t.state = StateCompleted
	dur := t.now().Sub(started)
	t.emit(progress.Event{Stage: progress.StageRunDone, Dur: dur})
	t.logger.Info("crawl completed", zap.Int("fetched", t.fetched), zap.Duration("elapsed", dur))
	return nil
}

func (t *Task) cancel(started time.Time) error {
	t.running.Store(false)
	t.state = StateCancelled
	dur := t.now().Sub(started)
	t.emit(progress.Event{Stage: progress.StageRunCancelled, Dur: dur})
	t.logger.Info("crawl cancelled", zap.Int("cursor", t.trav.cursor), zap.Int("fetched", t.fetched))
	return nil
}

func (t *Task) abort(started time.Time, err error) error {
	t.running.Store(false)
	t.state = StateAborted
	t.emit(progress.Event{Stage: progress.StageRunError, Dur: t.now().Sub(started), Note: err.Error()})
	t.logger.Error("crawl aborted", zap.Int("cursor", t.trav.cursor), zap.Int("fetched", t.fetched), zap.Error(err))
	return err
}

func (t *Task) emit(evt progress.Event) {
	evt.RunID = progress.UUIDToBytes(t.runID)
	evt.TS = t.now()
	evt.Cursor = t.trav.cursor
	evt.Total = len(t.trav.list)
	t.emitter.Emit(evt)
}

// State returns the lifecycle state. Like the other accessors it must not be
// called while Process is running.
func (t *Task) State() State { return t.state }

// Running reports whether the running flag is set.
func (t *Task) Running() bool { return t.running.Load() }

// Cursor returns the current list index.
func (t *Task) Cursor() int { return t.trav.cursor }

// Fetched returns how many pages have been fetched in this run.
func (t *Task) Fetched() int { return t.fetched }

// URLList returns a copy of the crawl list, including rewritten slots.
func (t *Task) URLList() []string { return append([]string(nil), t.trav.list...) }

// RunID identifies this task in logs and progress events.
func (t *Task) RunID() uuid.UUID { return t.runID }
