package sinks

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	pretty "github.com/jedib0t/go-pretty/v6/progress"

	"github.com/JakeFAU/pagecrawl/internal/progress"
)

// BarSink renders a terminal progress bar over the crawl list. The bar
// tracks the list cursor; fetches, including sub pages and next pages, only
// update the message.
type BarSink struct {
	mu      sync.Mutex
	writer  pretty.Writer
	tracker *pretty.Tracker
	fetched int
	started bool
	done    chan struct{}
}

// NewBarSink builds a bar that renders to out, or stderr when out is nil.
func NewBarSink(out io.Writer) *BarSink {
	if out == nil {
		out = os.Stderr
	}
	w := pretty.NewWriter()
	w.SetOutputWriter(out)
	w.SetAutoStop(true)
	w.SetTrackerLength(40)
	w.SetUpdateFrequency(100 * time.Millisecond)
	w.SetStyle(pretty.StyleDefault)
	w.Style().Visibility.ETA = true
	return &BarSink{
		writer:  w,
		tracker: &pretty.Tracker{Message: "crawling", Units: pretty.UnitsDefault},
		done:    make(chan struct{}),
	}
}

// Consume advances the bar from the batch.
func (s *BarSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.start(evt)
		case progress.StageFetchDone:
			s.fetched++
			s.tracker.UpdateMessage(fmt.Sprintf("crawling (%d pages)", s.fetched))
		case progress.StageItemDone, progress.StageNextPage, progress.StageSubPages:
			s.tracker.SetValue(int64(evt.Cursor))
		case progress.StageRunDone:
			s.tracker.SetValue(int64(evt.Cursor))
			s.tracker.MarkAsDone()
		case progress.StageRunError:
			s.tracker.UpdateMessage("aborted: " + evt.Note)
			s.tracker.MarkAsErrored()
		case progress.StageRunCancelled:
			s.tracker.UpdateMessage("cancelled")
			s.tracker.MarkAsErrored()
		}
	}
	return nil
}

func (s *BarSink) start(evt progress.Event) {
	if s.started {
		return
	}
	s.started = true
	s.tracker.UpdateTotal(int64(evt.Total))
	s.tracker.SetValue(int64(evt.Cursor))
	s.writer.AppendTracker(s.tracker)
	go func() {
		defer close(s.done)
		s.writer.Render()
	}()
}

// Close finishes the bar and waits for the final render.
func (s *BarSink) Close(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	if started && !s.tracker.IsDone() {
		s.tracker.MarkAsDone()
	}
	s.mu.Unlock()
	if !started {
		return nil
	}
	s.writer.Stop()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress bar close: %w", ctx.Err())
	}
}

// Value reports the cursor position the bar last displayed.
func (s *BarSink) Value() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Value()
}
