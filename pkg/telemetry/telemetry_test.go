package telemetry

import (
	"context"
	"testing"

	"github.com/postcadence/planner/pkg/config"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(&config.TelemetryConfig{Enabled: false, ServiceName: "planner"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	shutdown()

	ctx, span := StartSpan(context.Background(), "test")
	defer span.End()
	if ctx == nil || span.SpanContext().IsSampled() {
		t.Errorf("spans before Init must be no-ops")
	}
}

func TestRecordersWithoutInit(t *testing.T) {
	ctx := context.Background()
	RecordCacheLookup(ctx, "hit")
	RecordThemeTier(ctx, "frequency")
	RecordPartialBatch(ctx, "heatmap")
	RecordDroppedSlots(ctx, 0)
	RecordDroppedSlots(ctx, 2)
}

func TestNewResource(t *testing.T) {
	res, err := newResource(&config.TelemetryConfig{ServiceName: "planner-api", Environment: "test"})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	want := map[string]string{
		"service.name":           "planner-api",
		"service.namespace":      "postcadence",
		"deployment.environment": "test",
	}
	got := map[string]string{}
	for _, kv := range res.Attributes() {
		got[string(kv.Key)] = kv.Value.AsString()
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}
