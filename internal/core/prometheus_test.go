package core

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	rec.Observe(context.Background(), "create_project", true, 25*time.Millisecond)
	rec.Observe(context.Background(), "create_project", false, 5*time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	byName := make(map[string]bool, len(families))
	for _, fam := range families {
		byName[fam.GetName()] = true
	}
	if !byName["boqcore_service_operation_duration_seconds"] {
		t.Fatalf("missing duration metric, got %v", byName)
	}
	if !byName["boqcore_service_operation_results_total"] {
		t.Fatalf("missing results metric, got %v", byName)
	}

	for _, fam := range families {
		if fam.GetName() != "boqcore_service_operation_results_total" {
			continue
		}
		var total float64
		for _, m := range fam.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		if total != 2 {
			t.Fatalf("expected 2 outcomes counted, got %v", total)
		}
	}
}

func TestPrometheusMetricsRecorderDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusMetricsRecorder(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestPrometheusRecorderServesService(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	svc := NewInMemoryService(nil, WithMetricsRecorder(rec))
	if _, _, err := svc.CreateProject(context.Background(), Project{Name: "Airside Apron"}); err != nil {
		t.Fatalf("create project: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("expected gathered metrics after service operation")
	}
}
