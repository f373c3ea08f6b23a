package core

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

type capturedObservation struct {
	operation string
	success   bool
	duration  time.Duration
}

type captureMetricsRecorder struct {
	mu           sync.Mutex
	observations []capturedObservation
}

func (c *captureMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observations = append(c.observations, capturedObservation{operation: operation, success: success, duration: duration})
}

func (c *captureMetricsRecorder) snapshot() []capturedObservation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]capturedObservation, len(c.observations))
	copy(out, c.observations)
	return out
}

type captureSpan struct {
	operation string
	err       error
	ended     bool
}

type captureTracer struct {
	mu    sync.Mutex
	spans []*captureSpan
}

func (c *captureTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	span := &captureSpan{operation: operation}
	c.mu.Lock()
	c.spans = append(c.spans, span)
	c.mu.Unlock()
	return ctx, span
}

func (s *captureSpan) End(err error) {
	s.err = err
	s.ended = true
}

type captureAuditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) snapshot() []AuditEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]AuditEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

func TestServiceEmitsMetricsAndTraces(t *testing.T) {
	ctx := context.Background()
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	svc := newTestService(t, WithMetricsRecorder(metrics), WithTracer(tracer))

	if _, _, err := svc.CreateProject(ctx, Project{Name: "Tunnel South"}); err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := svc.DeleteProject(ctx, "missing"); err == nil {
		t.Fatalf("expected delete failure")
	}

	obs := metrics.snapshot()
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}
	if obs[0].operation != "create_project" || !obs[0].success {
		t.Fatalf("unexpected first observation %+v", obs[0])
	}
	if obs[1].success {
		t.Fatalf("expected failed observation, got %+v", obs[1])
	}

	if len(tracer.spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(tracer.spans))
	}
	for i, span := range tracer.spans {
		if !span.ended {
			t.Fatalf("span %d not ended", i)
		}
	}
	if tracer.spans[1].err == nil {
		t.Fatalf("expected error recorded on failed span")
	}
}

func TestServiceAuditTrail(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	audit := &captureAuditRecorder{}
	svc := newTestService(t, WithAuditRecorder(audit), WithClock(ClockFunc(func() time.Time { return fixed })))

	project, _, err := svc.CreateProject(ctx, Project{Name: "Depot Hall"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := svc.DeleteProject(ctx, "missing"); err == nil {
		t.Fatalf("expected delete failure")
	}

	entries := audit.snapshot()
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	created := entries[0]
	if created.Operation != "create_project" || created.Entity != EntityProject || created.Action != ActionCreate {
		t.Fatalf("unexpected create entry %+v", created)
	}
	if created.EntityID != project.ID {
		t.Fatalf("expected entity id %s, got %s", project.ID, created.EntityID)
	}
	if created.Status != AuditStatusSuccess || created.Error != "" {
		t.Fatalf("unexpected create outcome %+v", created)
	}

	failed := entries[1]
	if failed.Operation != "delete_project" || failed.Status != AuditStatusError || failed.Error == "" {
		t.Fatalf("unexpected failure entry %+v", failed)
	}
}

func TestExportProducesNoAuditEntry(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	svc := newTestService(t, WithAuditRecorder(audit))
	boq := seedBoQ(t, svc)
	if _, _, err := svc.PutDocument(ctx, DocumentRecord{BoQID: boq.ID, Document: testDocument()}); err != nil {
		t.Fatalf("put document: %v", err)
	}
	before := len(audit.snapshot())

	if _, err := svc.ExportDocument(ctx, boq.ID, newMemoryArtifacts()); err != nil {
		t.Fatalf("export: %v", err)
	}
	if got := len(audit.snapshot()); got != before {
		t.Fatalf("expected no audit entry for export, got %d new", got-before)
	}
}

func TestRecordAuditSuccessHelper(t *testing.T) {
	audit := &captureAuditRecorder{}
	svc := newTestService(t, WithAuditRecorder(audit))

	svc.recordAuditSuccess(context.Background(), "insert_item", "boq-1", 5*time.Millisecond)
	svc.recordAuditSuccess(context.Background(), "unmapped_op", "boq-1", time.Millisecond)

	entries := audit.snapshot()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Operation != "insert_item" || entries[0].Action != ActionUpdate {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
}

func TestNilOptionsRestoreNoops(t *testing.T) {
	svc := newTestService(t,
		WithLogger(nil),
		WithMetricsRecorder(nil),
		WithTracer(nil),
		WithAuditRecorder(nil),
	)
	if _, ok := svc.logger.(noopLogger); !ok {
		t.Fatalf("expected noop logger, got %T", svc.logger)
	}
	if _, ok := svc.metrics.(noopMetricsRecorder); !ok {
		t.Fatalf("expected noop metrics, got %T", svc.metrics)
	}
	if _, ok := svc.tracer.(noopTracer); !ok {
		t.Fatalf("expected noop tracer, got %T", svc.tracer)
	}
	if _, ok := svc.audit.(noopAuditRecorder); !ok {
		t.Fatalf("expected noop audit recorder, got %T", svc.audit)
	}
}

func TestExpvarMetricsRecorderAggregates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	if !strings.HasPrefix(rec.Name(), "boqcore_service_metrics_") {
		t.Fatalf("unexpected generated name %q", rec.Name())
	}

	rec.Observe(context.Background(), "put_document", true, 20*time.Millisecond)
	rec.Observe(context.Background(), "put_document", false, 10*time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond)

	snap := rec.Snapshot()
	if snap.DurationsMS["put_document"] != 30 {
		t.Fatalf("expected 30ms total, got %v", snap.DurationsMS["put_document"])
	}
	if snap.Results["put_document"]["success"] != 1 || snap.Results["put_document"]["error"] != 1 {
		t.Fatalf("unexpected results %+v", snap.Results)
	}
	if len(snap.DurationsMS) != 1 {
		t.Fatalf("empty operation must be ignored, got %+v", snap.DurationsMS)
	}
	if snap.RecordedAt.IsZero() {
		t.Fatalf("expected recorded-at timestamp")
	}

	snap.DurationsMS["put_document"] = 0
	if rec.Snapshot().DurationsMS["put_document"] != 30 {
		t.Fatalf("snapshot must be a copy")
	}
}

func TestJSONTracerRecordsSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)

	_, span := tracer.Start(context.Background(), "create_boq")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "delete_boq")
	span.End(context.DeadlineExceeded)

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Operation != "create_boq" || entries[0].Status != "success" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Status != "error" || entries[1].Error == "" {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}

	dec := json.NewDecoder(&buf)
	var lines int
	for dec.More() {
		var entry JSONTraceEntry
		if err := dec.Decode(&entry); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 JSON lines, got %d", lines)
	}
}

func TestJSONTracerNilWriter(t *testing.T) {
	tracer := NewJSONTracer(nil)
	_, span := tracer.Start(context.Background(), "probe")
	span.End(nil)
	if len(tracer.Entries()) != 1 {
		t.Fatalf("expected retained entry with nil writer")
	}
}
