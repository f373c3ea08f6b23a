package core

import (
	"context"
	"log/slog"
	"time"
)

// Clock supplies the current time to the service.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to the Clock interface. A nil function
// falls back to the system clock in UTC.
type ClockFunc func() time.Time

// Now returns the function's time normalized to UTC.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

// Logger is the minimal leveled logging seam used by the service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NewSlogLogger adapts a slog.Logger to the service Logger seam. A nil
// argument uses slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return slogLogger{l: l}
}

type slogLogger struct{ l *slog.Logger }

func (s slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

// MetricsRecorder observes service operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan finishes a span started by a Tracer.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// AuditStatus marks the outcome recorded in an audit entry.
type AuditStatus string

// Audit entry outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry captures one service operation for the audit trail.
type AuditEntry struct {
	Operation string
	Entity    EntityType
	Action    Action
	EntityID  string
	Status    AuditStatus
	Duration  time.Duration
	Timestamp time.Time
	Error     string
}

// AuditRecorder receives audit entries emitted by the service.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type auditSpec struct {
	Entity EntityType
	Action Action
}

// auditSpecs maps operation names to the entity and action they audit as.
// Operations absent from the map produce no audit entries.
var auditSpecs = map[string]auditSpec{
	"create_project":  {Entity: EntityProject, Action: ActionCreate},
	"update_project":  {Entity: EntityProject, Action: ActionUpdate},
	"delete_project":  {Entity: EntityProject, Action: ActionDelete},
	"create_boq":      {Entity: EntityBillOfQuantities, Action: ActionCreate},
	"update_boq":      {Entity: EntityBillOfQuantities, Action: ActionUpdate},
	"delete_boq":      {Entity: EntityBillOfQuantities, Action: ActionDelete},
	"put_document":    {Entity: EntityDocument, Action: ActionCreate},
	"update_document": {Entity: EntityDocument, Action: ActionUpdate},
	"delete_document": {Entity: EntityDocument, Action: ActionDelete},
	"insert_group":    {Entity: EntityDocument, Action: ActionUpdate},
	"insert_subgroup": {Entity: EntityDocument, Action: ActionUpdate},
	"insert_item":     {Entity: EntityDocument, Action: ActionUpdate},
	"insert_variant":  {Entity: EntityDocument, Action: ActionUpdate},
}
