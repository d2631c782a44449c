package slack

import (
	"strings"
	"testing"
	"time"

	"github.com/jobtrawl/jobtrawl/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error when webhook url missing")
	}
}

func TestFormatMessageIncludesFields(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
		Channel:    "#job-hunt",
		Username:   "bot",
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.FailurePayload{
		RunID:      "run-42",
		Platform:   "boardfeed",
		Stage:      "apply",
		RecordID:   "boardfeed:1234",
		JobTitle:   "Backend Engineer",
		Company:    "Acme",
		Attempts:   3,
		Error:      "boom",
		ErrorClass: "apply_permanent",
	})

	if msg["username"] != "bot" {
		t.Fatalf("expected username to be preserved, got %v", msg["username"])
	}
	if msg["channel"] != "#job-hunt" {
		t.Fatalf("expected channel to be set, got %v", msg["channel"])
	}

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}
	if !containsAll(
		text,
		[]string{
			"Application failure", "run-42", "boardfeed", "apply",
			"Backend Engineer", "Acme", "boardfeed:1234", "3", "boom", "apply_permanent",
		},
	) {
		t.Fatalf("message text missing fields: %s", text)
	}
}

func TestFormatMessageRunFailureHeader(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.FailurePayload{
		RunID:    "run-7",
		Platform: "careers",
		Stage:    "search",
		Error:    "search request failed",
	})

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}
	if !strings.Contains(text, "*Run failure* `run-7` (careers)") {
		t.Fatalf("unexpected header: %s", text)
	}
	if strings.Contains(text, "Application failure") {
		t.Fatalf("run-level payload rendered as application failure: %s", text)
	}
}

func TestFormatMessageEscapesScrapedText(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.FailurePayload{
		RecordID: "careers:77",
		JobTitle: "C++ & <Go> Developer",
		Company:  "Tools & Dies",
	})

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}

	if !strings.Contains(text, "C++ &amp; &lt;Go&gt; Developer") {
		t.Fatalf("expected escaped title, got: %s", text)
	}
	if !strings.Contains(text, "Tools &amp; Dies") {
		t.Fatalf("expected escaped company, got: %s", text)
	}
}

func TestFormatJobValuePermutations(t *testing.T) {
	tcs := []struct {
		name    string
		payload notify.FailurePayload
		want    string
	}{
		{
			name: "title with link",
			payload: notify.FailurePayload{
				JobTitle:   "Gopher",
				PostingURL: "https://jobs.example/view/1",
			},
			want: "<https://jobs.example/view/1|Gopher>",
		},
		{
			name: "title company and record",
			payload: notify.FailurePayload{
				JobTitle:   "Gopher",
				Company:    "Acme",
				RecordID:   "boardfeed:1",
				PostingURL: "https://jobs.example/view/1",
			},
			want: "<https://jobs.example/view/1|Gopher> at Acme (boardfeed:1)",
		},
		{
			name: "invalid url falls back to plain text",
			payload: notify.FailurePayload{
				JobTitle:   "Gopher",
				Company:    "Acme",
				PostingURL: "not a url",
			},
			want: "Gopher at Acme",
		},
		{
			name: "non-http scheme rejected",
			payload: notify.FailurePayload{
				JobTitle:   "Gopher",
				PostingURL: "javascript:alert(1)",
			},
			want: "Gopher",
		},
		{
			name: "link without title uses record id",
			payload: notify.FailurePayload{
				RecordID:   "boardfeed:9",
				PostingURL: "https://jobs.example/view/9",
			},
			want: "<https://jobs.example/view/9|boardfeed:9>",
		},
		{
			name: "record only",
			payload: notify.FailurePayload{
				RecordID: "boardfeed:3",
			},
			want: "boardfeed:3",
		},
		{
			name:    "empty inputs",
			payload: notify.FailurePayload{},
			want:    "",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			got := formatJobValue(tc.payload)
			if got != tc.want {
				t.Fatalf("formatJobValue() = %q, want %q", got, tc.want)
			}
		})
	}
}

func containsAll(text string, substrs []string) bool {
	for _, s := range substrs {
		if !strings.Contains(text, s) {
			return false
		}
	}
	return true
}
