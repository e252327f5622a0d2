package messaging

import (
	"testing"
	"time"
)

func TestCalculateBackoff(t *testing.T) {
	cfg := BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}

	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{5, 32 * time.Second},
		{6, time.Minute},
		{100, time.Minute},
	}

	for _, tt := range tests {
		if got := cfg.CalculateBackoff(tt.retryCount); got != tt.want {
			t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.retryCount, got, tt.want)
		}
	}
}

func TestStreamDLQ(t *testing.T) {
	if got := StreamStoryJobs.DLQStream(); got != "dlq:stream:story:jobs" {
		t.Errorf("DLQStream() = %s", got)
	}
}

func TestMessagePayload(t *testing.T) {
	type payload struct {
		Value string `json:"value"`
	}

	msg, err := NewMessage("id-1", "generate_chapter", "user-1", "book-1", payload{Value: "hello"})
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}

	var got payload
	if err := msg.UnmarshalPayload(&got); err != nil {
		t.Fatalf("UnmarshalPayload() error = %v", err)
	}
	if got.Value != "hello" {
		t.Errorf("payload value = %s, want hello", got.Value)
	}

	msg.SetMetadata("trace_id", "abc")
	if msg.GetMetadata("trace_id") != "abc" {
		t.Error("metadata roundtrip failed")
	}
	if msg.GetMetadata("missing") != "" {
		t.Error("missing metadata should be empty")
	}
}
