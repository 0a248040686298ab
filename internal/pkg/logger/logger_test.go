package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer

	log := New(Config{
		Level:       "debug",
		Format:      "json",
		Output:      &buf,
		ServiceName: "daybyday-test",
	})

	log.WithComponent("engine").WithJobID("job-1").Info("frame delivered", "frame", 12)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("failed to parse log output: %v (%s)", err, buf.String())
	}

	want := map[string]any{
		"msg":       "frame delivered",
		"service":   "daybyday-test",
		"component": "engine",
		"job_id":    "job-1",
	}
	for k, v := range want {
		if rec[k] != v {
			t.Errorf("Expected %s=%v, got %v", k, v, rec[k])
		}
	}
	if rec["frame"] != float64(12) {
		t.Errorf("Expected frame=12, got %v", rec["frame"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "text", Output: &buf})

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("Expected warn record, got %q", out)
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	ctx := ContextWithJobID(context.Background(), "job-42")
	ctx = ContextWithRequestID(ctx, "req-7")
	log.FromContext(ctx).Info("hello")

	out := buf.String()
	if !strings.Contains(out, `"job_id":"job-42"`) || !strings.Contains(out, `"request_id":"req-7"`) {
		t.Errorf("Expected ids in output, got %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "DEBUG",
		"WARNING": "WARN",
		"error":   "ERROR",
		"bogus":   "INFO",
		"":        "INFO",
	}
	for in, want := range tests {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q): expected %s, got %s", in, want, got)
		}
	}
}
