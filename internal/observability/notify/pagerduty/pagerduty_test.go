package pagerduty

import (
	"strings"
	"testing"
	"time"

	"github.com/jobtrawl/jobtrawl/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error when routing key missing")
	}
}

func TestBuildEventDefaults(t *testing.T) {
	client, err := NewClient(Config{
		RoutingKey: "key",
		Source:     "",
		Component:  "",
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload := notify.FailurePayload{
		RunID:      "run-42",
		Platform:   "boardfeed",
		Stage:      "apply",
		RecordID:   "boardfeed:1234",
		Attempts:   2,
		Error:      "boom",
		ErrorClass: "apply_recoverable",
	}
	event := client.buildEvent(payload)

	payloadSection, ok := event["payload"].(map[string]any)
	if !ok {
		t.Fatalf("expected payload section")
	}
	if payloadSection["severity"] != notify.SeverityCritical {
		t.Fatalf("expected default severity, got %v", payloadSection["severity"])
	}
	if payloadSection["source"] != "jobtrawl" {
		t.Fatalf("expected default source, got %v", payloadSection["source"])
	}
	if payloadSection["component"] != "jobtrawl" {
		t.Fatalf("expected default component, got %v", payloadSection["component"])
	}

	custom, ok := payloadSection["custom_details"].(map[string]any)
	if !ok {
		t.Fatalf("expected custom details")
	}

	required := []string{"run_id", "platform", "stage", "record_id", "attempts", "error", "error_class"}
	for _, key := range required {
		if _, exists := custom[key]; !exists {
			t.Fatalf("expected key %s in custom details", key)
		}
	}

	dedup, _ := event["dedup_key"].(string)
	if dedup != "boardfeed:1234" {
		t.Fatalf("expected dedup key to be the record id, got %s", dedup)
	}
}

func TestBuildEventRunFailure(t *testing.T) {
	client, err := NewClient(Config{RoutingKey: "key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := client.buildEvent(notify.FailurePayload{
		RunID:    "run-9",
		Platform: "careers",
		Stage:    "search",
		Error:    "http 500",
		Severity: notify.SeverityWarning,
	})

	dedup, _ := event["dedup_key"].(string)
	if dedup != "run:careers:run-9" {
		t.Fatalf("unexpected dedup key %s", dedup)
	}

	payloadSection, ok := event["payload"].(map[string]any)
	if !ok {
		t.Fatalf("expected payload section")
	}
	summary, _ := payloadSection["summary"].(string)
	if !strings.Contains(summary, "run-9") || !strings.Contains(summary, "careers") {
		t.Fatalf("expected summary to reference run and platform, got %s", summary)
	}
	if payloadSection["severity"] != notify.SeverityWarning {
		t.Fatalf("expected warning severity preserved, got %v", payloadSection["severity"])
	}
}

func TestBuildSummaryUsesJobDetails(t *testing.T) {
	got := buildSummary(notify.FailurePayload{
		RecordID: "boardfeed:5",
		JobTitle: "Platform Engineer",
		Company:  "Acme",
	})
	want := "Application to Platform Engineer at Acme failed"
	if got != want {
		t.Fatalf("buildSummary() = %q, want %q", got, want)
	}

	got = buildSummary(notify.FailurePayload{RecordID: "boardfeed:6"})
	if !strings.Contains(got, "boardfeed:6") {
		t.Fatalf("expected record id fallback in summary, got %q", got)
	}
}

func TestMetadataDoesNotClobberCoreFields(t *testing.T) {
	client, err := NewClient(Config{RoutingKey: "key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := client.buildEvent(notify.FailurePayload{
		RunID: "run-1",
		Error: "boom",
		Metadata: map[string]string{
			"error":  "overridden",
			"search": "golang remote",
		},
	})

	payloadSection := event["payload"].(map[string]any)
	custom := payloadSection["custom_details"].(map[string]any)
	if custom["error"] != "boom" {
		t.Fatalf("metadata clobbered core field: %v", custom["error"])
	}
	if custom["search"] != "golang remote" {
		t.Fatalf("expected metadata passthrough, got %v", custom["search"])
	}
}
