package metrics

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("entity", "garansi"),
		attribute.String("customer_id", "456"),
		attribute.String("folder", "garansi-photos"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "entity" && attrs[1].Key != "entity" {
		t.Fatalf("expected entity to be retained")
	}
	if attrs[0].Key != "folder" && attrs[1].Key != "folder" {
		t.Fatalf("expected folder to be retained")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordWrite(context.Background(), "garansi", "create")
	m.RecordImageDropped(context.Background(), "garansi-photos", "decode")
	m.RecordArtifactRender(context.Background(), "garansi", "pdf", "ok", time.Second)
}

func TestNoopMetricsRecord(t *testing.T) {
	m := NewNoop()
	m.RecordImageStored(context.Background(), "garansi-photos")
	m.RecordRateLimitDenied(context.Background(), "/api/garansi", "write")
}
