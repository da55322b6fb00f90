package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/pagecrawl/internal/progress"
)

// LogSink emits structured logs for progress streams. Per-fetch events go out
// at debug level so a normal run only logs run and list milestones.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.Int("cursor", evt.Cursor),
			zap.Int("total", evt.Total),
		}
		if evt.URL != "" {
			fields = append(fields, zap.String("url", evt.URL))
		}
		switch evt.Stage {
		case progress.StageFetchStart:
			fields = append(fields, zap.Int("item", evt.Item))
		case progress.StageFetchDone:
			fields = append(fields,
				zap.Int("item", evt.Item),
				zap.String("site", evt.Site),
				zap.Int64("bytes", evt.Bytes),
				zap.String("status_class", string(evt.StatusClass)),
				zap.Duration("dur", evt.Dur),
			)
		case progress.StageSubPages:
			fields = append(fields, zap.Int("count", evt.Count))
		case progress.StageRunDone, progress.StageRunCancelled:
			fields = append(fields, zap.Duration("dur", evt.Dur))
		case progress.StageRunError:
			fields = append(fields, zap.Duration("dur", evt.Dur), zap.String("note", evt.Note))
		}
		s.logger.Log(levelFor(evt.Stage), "progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}

func levelFor(stage progress.Stage) zapcore.Level {
	switch stage {
	case progress.StageFetchStart, progress.StageFetchDone:
		return zapcore.DebugLevel
	case progress.StageRunError:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
