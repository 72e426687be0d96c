package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"
	"testing"
)

func captureOutput(fn func()) string {
	original := log.Writer()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer log.SetOutput(original)

	fn()
	return buf.String()
}

func parseEntry(t *testing.T, out string) LogEntry {
	t.Helper()

	line := strings.TrimSpace(out)
	var entry LogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("Failed to parse log entry %q: %v", line, err)
	}
	return entry
}

func TestLogger_LevelFiltering(t *testing.T) {
	l := New(WARN)

	out := captureOutput(func() {
		l.Debug("debug message")
		l.Info("info message")
	})
	if out != "" {
		t.Errorf("Expected no output below WARN, got %q", out)
	}

	out = captureOutput(func() {
		l.Warn("warn message")
	})
	if out == "" {
		t.Error("Expected WARN to be logged")
	}
}

func TestLogger_JSONStructure(t *testing.T) {
	l := New(INFO)

	out := captureOutput(func() {
		l.Info("license validated", map[string]interface{}{
			"tier": "pro",
		})
	})

	entry := parseEntry(t, out)
	if entry.Level != "INFO" {
		t.Errorf("Expected level INFO, got %s", entry.Level)
	}
	if entry.Message != "license validated" {
		t.Errorf("Expected message 'license validated', got %q", entry.Message)
	}
	if entry.Fields["tier"] != "pro" {
		t.Errorf("Expected tier field 'pro', got %v", entry.Fields["tier"])
	}
}

func TestLogger_RedactsSensitiveFields(t *testing.T) {
	l := New(INFO)

	out := captureOutput(func() {
		l.Info("admin request", map[string]interface{}{
			"license_key": "PRISM-PRO-AAAA-BBBB-CCCC-DDDD",
			"secret":      "short",
			"signature":   "c2lnbmF0dXJlLWJ5dGVzLWhlcmU=",
			"email":       "test@example.com",
		})
	})

	entry := parseEntry(t, out)

	if key, _ := entry.Fields["license_key"].(string); strings.Contains(key, "AAAA-BBBB") {
		t.Errorf("Expected license_key to be redacted, got %q", key)
	}
	if entry.Fields["secret"] != "[REDACTED]" {
		t.Errorf("Expected short secret fully redacted, got %v", entry.Fields["secret"])
	}
	if sig, _ := entry.Fields["signature"].(string); len(sig) > 10 {
		t.Errorf("Expected signature to be truncated, got %q", sig)
	}
	if entry.Fields["email"] != "test@example.com" {
		t.Errorf("Expected email untouched, got %v", entry.Fields["email"])
	}
}

func TestLogger_MergesFieldMaps(t *testing.T) {
	l := New(INFO)

	out := captureOutput(func() {
		l.Info("merged", map[string]interface{}{"a": "1"}, map[string]interface{}{"b": "2"})
	})

	entry := parseEntry(t, out)
	if entry.Fields["a"] != "1" || entry.Fields["b"] != "2" {
		t.Errorf("Expected merged fields, got %v", entry.Fields)
	}
}
