package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		logDebug  bool
		wantDebug bool
	}{
		{name: "debug level passes debug", level: "debug", logDebug: true, wantDebug: true},
		{name: "info level drops debug", level: "info", logDebug: true, wantDebug: false},
		{name: "unknown level defaults to info", level: "bogus", logDebug: true, wantDebug: false},
		{name: "warning alias accepted", level: "warning", logDebug: true, wantDebug: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, tt.level, "json")
			if tt.logDebug {
				logger.Debug("sample message")
			}
			got := strings.Contains(buf.String(), "sample message")
			if got != tt.wantDebug {
				t.Errorf("debug record present = %v, want %v", got, tt.wantDebug)
			}
		})
	}
}

func TestNewLoggerUTCTimestamps(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json")
	logger.Info("sample message")

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}

	ts, ok := record["time"].(string)
	if !ok {
		t.Fatal("expected time field in record")
	}
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		t.Fatalf("timestamp not RFC3339Nano: %v", err)
	}
	if parsed.Location() != time.UTC {
		t.Errorf("timestamp not UTC: %v", parsed)
	}
}

func TestNewLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "text")
	logger.Info("sample message", "key", "value")
	if !strings.Contains(buf.String(), "key=value") {
		t.Errorf("expected text handler output, got %q", buf.String())
	}
}
