package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("source", "cache"),
		attribute.String("org_id", "456"),
		attribute.String("mode", "weekly"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "source" && attrs[1].Key != "source" {
		t.Fatalf("expected source to be retained")
	}
	if attrs[0].Key != "mode" && attrs[1].Key != "mode" {
		t.Fatalf("expected mode to be retained")
	}
}

func TestDomainCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "rollcall-test"}, provider)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	ctx := context.Background()
	m.RecordCourseCreated(ctx, "weekly")
	m.RecordSessionsGenerated(ctx, "weekly", 6)
	m.RecordSessionsGenerated(ctx, "weekly", 0)
	m.RecordTenantResolution(ctx, "cache")
	m.RecordTenantResolution(ctx, "cache")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[md.Name] += dp.Value
			}
		}
	}

	if totals["rollcall_courses_created_total"] != 1 {
		t.Fatalf("unexpected courses total %d", totals["rollcall_courses_created_total"])
	}
	if totals["rollcall_sessions_generated_total"] != 6 {
		t.Fatalf("unexpected sessions total %d", totals["rollcall_sessions_generated_total"])
	}
	if totals["rollcall_tenant_resolutions_total"] != 2 {
		t.Fatalf("unexpected resolutions total %d", totals["rollcall_tenant_resolutions_total"])
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordCourseCreated(context.Background(), "interval")
	m.RecordTenantResolution(context.Background(), "owner")
}
