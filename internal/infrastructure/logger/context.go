package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey     contextKey = "logger"
	requestIDKey  contextKey = "request_id"
	documentIDKey contextKey = "document_id"
)

// WithContext returns a context carrying logger
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger of ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID stores the request ID in ctx and returns the enriched logger
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	enriched := logger.With(zap.String("request_id", requestID))
	return WithContext(ctx, enriched), enriched
}

// WithDocument stores the ID of the document being posted in ctx and
// returns the enriched logger
func WithDocument(ctx context.Context, logger *zap.Logger, documentID, documentType string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, documentIDKey, documentID)
	enriched := logger.With(zap.String("document_id", documentID), zap.String("document_type", documentType))
	return WithContext(ctx, enriched), enriched
}

// GetRequestID returns the request ID of ctx
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// GetDocumentID returns the document ID of ctx
func GetDocumentID(ctx context.Context) string {
	id, _ := ctx.Value(documentIDKey).(string)
	return id
}

// WithTraceContext adds trace_id and span_id of the active span. Without a
// valid span the logger is returned unchanged.
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// ContextLogger logs with the trace and request fields of its context.
//
//	logger.L(ctx).Warn("stock issue rejected", zap.Error(err))
type ContextLogger struct {
	ctx    context.Context
	logger *zap.Logger
}

// L returns a ContextLogger over the logger stored in ctx
func L(ctx context.Context) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: FromContext(ctx)}
}

// WithLogger returns a ContextLogger over logger instead of the one in ctx.
// The request ID of ctx is added since logger does not carry it.
func WithLogger(ctx context.Context, logger *zap.Logger) *ContextLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if id := GetRequestID(ctx); id != "" {
		logger = logger.With(zap.String("request_id", id))
	}
	return &ContextLogger{ctx: ctx, logger: logger}
}

func (cl *ContextLogger) enriched() *zap.Logger {
	return WithTraceContext(cl.ctx, cl.logger)
}

// With returns a child ContextLogger with fields
func (cl *ContextLogger) With(fields ...zap.Field) *ContextLogger {
	return &ContextLogger{ctx: cl.ctx, logger: cl.logger.With(fields...)}
}

func (cl *ContextLogger) Debug(msg string, fields ...zap.Field) { cl.enriched().Debug(msg, fields...) }
func (cl *ContextLogger) Info(msg string, fields ...zap.Field)  { cl.enriched().Info(msg, fields...) }
func (cl *ContextLogger) Warn(msg string, fields ...zap.Field)  { cl.enriched().Warn(msg, fields...) }
func (cl *ContextLogger) Error(msg string, fields ...zap.Field) { cl.enriched().Error(msg, fields...) }

// Zap returns the enriched zap logger
func (cl *ContextLogger) Zap() *zap.Logger {
	return cl.enriched()
}
