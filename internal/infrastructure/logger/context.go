package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerCtxKey ctxKey = iota
	tenantCtxKey
	actorCtxKey
	runCtxKey
)

// WithContext attaches a logger to the context so downstream code can log
// without threading a *zap.Logger through every call.
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, logger)
}

// FromContext returns the attached logger, or a no-op logger when none is set.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerCtxKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithTenant stores the tenant identifier for log attribution.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantCtxKey, tenantID)
}

// WithActor stores the acting user for log attribution.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorCtxKey, actorID)
}

// WithRun stores the allocation run identifier so every entry emitted while
// processing a run can be correlated with its audit record.
func WithRun(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runCtxKey, runID)
}

// TenantFrom returns the stored tenant identifier, or "".
func TenantFrom(ctx context.Context) string {
	s, _ := ctx.Value(tenantCtxKey).(string)
	return s
}

// ActorFrom returns the stored actor identifier, or "".
func ActorFrom(ctx context.Context) string {
	s, _ := ctx.Value(actorCtxKey).(string)
	return s
}

// RunFrom returns the stored run identifier, or "".
func RunFrom(ctx context.Context) string {
	s, _ := ctx.Value(runCtxKey).(string)
	return s
}

// TraceFields returns trace_id and span_id fields for the active span, or
// nil when the context carries no valid span.
func TraceFields(ctx context.Context) []zap.Field {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	}
}

// ContextLogger logs with the attribution carried by a context: trace
// correlation plus tenant, actor, and run identifiers when present.
type ContextLogger struct {
	ctx    context.Context
	logger *zap.Logger
}

// L wraps the context's logger. Usage: logger.L(ctx).Info("msg", fields...)
func L(ctx context.Context) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: FromContext(ctx)}
}

// WithLogger wraps an explicit logger instead of the one stored in ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: logger}
}

// With returns a child ContextLogger carrying extra fields.
func (cl *ContextLogger) With(fields ...zap.Field) *ContextLogger {
	return &ContextLogger{ctx: cl.ctx, logger: cl.attributed().With(fields...)}
}

func (cl *ContextLogger) attributed() *zap.Logger {
	l := cl.logger
	if l == nil {
		l = zap.NewNop()
	}
	if tf := TraceFields(cl.ctx); tf != nil {
		l = l.With(tf...)
	}
	if tenant := TenantFrom(cl.ctx); tenant != "" {
		l = l.With(zap.String("tenant_id", tenant))
	}
	if actor := ActorFrom(cl.ctx); actor != "" {
		l = l.With(zap.String("actor_id", actor))
	}
	if run := RunFrom(cl.ctx); run != "" {
		l = l.With(zap.String("run_id", run))
	}
	return l
}

func (cl *ContextLogger) Debug(msg string, fields ...zap.Field) {
	cl.attributed().Debug(msg, fields...)
}

func (cl *ContextLogger) Info(msg string, fields ...zap.Field) {
	cl.attributed().Info(msg, fields...)
}

func (cl *ContextLogger) Warn(msg string, fields ...zap.Field) {
	cl.attributed().Warn(msg, fields...)
}

func (cl *ContextLogger) Error(msg string, fields ...zap.Field) {
	cl.attributed().Error(msg, fields...)
}

// Zap returns the underlying logger with attribution applied, for callers
// that need a plain *zap.Logger.
func (cl *ContextLogger) Zap() *zap.Logger {
	return cl.attributed()
}
