package core

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogTracer writes one JSON line per finished span: the operation, the item it
// targeted, span id, status, duration and error.
type LogTracer struct {
	logger *zap.Logger
}

// NewLogTracer writes spans to w. Writes are serialized.
func NewLogTracer(w io.Writer) *LogTracer {
	enc := zap.NewProductionEncoderConfig()
	enc.MessageKey = "operation"
	enc.TimeKey = "ended_at"
	enc.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	enc.LevelKey = zapcore.OmitKey
	enc.CallerKey = zapcore.OmitKey
	enc.StacktraceKey = zapcore.OmitKey
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(zapcore.AddSync(w)), zapcore.DebugLevel)
	return &LogTracer{logger: zap.New(core)}
}

// Start implements Tracer. The span id is available from the returned context.
func (t *LogTracer) Start(ctx context.Context, operation, item string) (context.Context, TraceSpan) {
	span := &logSpan{
		logger:    t.logger,
		id:        uuid.NewString(),
		operation: operation,
		item:      item,
		started:   time.Now(),
	}
	return context.WithValue(ctx, spanIDKey{}, span.id), span
}

// Sync flushes the underlying writer.
func (t *LogTracer) Sync() error { return t.logger.Sync() }

type spanIDKey struct{}

// SpanID returns the id of the span active in ctx, or "".
func SpanID(ctx context.Context) string {
	id, _ := ctx.Value(spanIDKey{}).(string)
	return id
}

type logSpan struct {
	logger    *zap.Logger
	id        string
	operation string
	item      string
	started   time.Time
}

func (s *logSpan) End(err error) {
	fields := []zap.Field{
		zap.String("span_id", s.id),
		zap.Float64("duration_ms", float64(time.Since(s.started))/float64(time.Millisecond)),
	}
	if s.item != "" {
		fields = append(fields, zap.String("item", s.item))
	}
	if err != nil {
		fields = append(fields, zap.String("status", "error"), zap.Error(err))
	} else {
		fields = append(fields, zap.String("status", "success"))
	}
	s.logger.Info(s.operation, fields...)
}
