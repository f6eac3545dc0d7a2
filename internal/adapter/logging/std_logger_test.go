package logging

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"
)

// TestStdLogger_InfoWithoutFields verifies no trailing empty field segment is emitted.
func TestStdLogger_InfoWithoutFields(t *testing.T) {
	var buffer bytes.Buffer
	logger := NewStdLogger(log.New(&buffer, "", 0))

	logger.Info("startup complete")

	entry := strings.TrimSpace(buffer.String())
	expected := `level=INFO msg="startup complete"`
	if entry != expected {
		t.Fatalf("expected %q, got %q", expected, entry)
	}
}

// TestStdLogger_DebugDroppedByDefault verifies the default minimum level is INFO.
func TestStdLogger_DebugDroppedByDefault(t *testing.T) {
	var buffer bytes.Buffer
	logger := NewStdLogger(log.New(&buffer, "", 0))

	logger.Debug("request rejected", "status", 400)

	if buffer.Len() != 0 {
		t.Fatalf("expected debug entry to be dropped, got %q", buffer.String())
	}
}

// TestLeveledStdLogger_FiltersBelowMinimum verifies entries below min are dropped.
func TestLeveledStdLogger_FiltersBelowMinimum(t *testing.T) {
	var buffer bytes.Buffer
	logger := NewLeveledStdLogger(log.New(&buffer, "", 0), LevelWarn)

	logger.Info("ignored")
	logger.Warn("read failed", "error", errors.New("connection reset"))

	entry := strings.TrimSpace(buffer.String())
	expected := `level=WARN msg="read failed" error="connection reset"`
	if entry != expected {
		t.Fatalf("expected %q, got %q", expected, entry)
	}
}

// TestParseLevel verifies level names are case-insensitive.
func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw     string
		want    Level
		wantErr bool
	}{
		{raw: "debug", want: LevelDebug},
		{raw: " Warn ", want: LevelWarn},
		{raw: "", want: LevelInfo},
		{raw: "ERROR", want: LevelError},
		{raw: "verbose", want: LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseLevel(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

// TestFormatKeyValues_OddPairCountUsesMissingValue verifies missing values are explicit.
func TestFormatKeyValues_OddPairCountUsesMissingValue(t *testing.T) {
	fields := formatKeyValues("method", "GET", "status")
	if !strings.Contains(fields, "method=GET") {
		t.Fatalf("expected method field, got %q", fields)
	}
	if !strings.Contains(fields, "status=<missing>") {
		t.Fatalf("expected missing placeholder field, got %q", fields)
	}
}

// TestFormatKeyValues_EmptyKeyUsesIndexedFallback verifies deterministic fallback keys.
func TestFormatKeyValues_EmptyKeyUsesIndexedFallback(t *testing.T) {
	fields := formatKeyValues("", "first", "", "second")
	if !strings.Contains(fields, "field_0=first") {
		t.Fatalf("expected field_0 fallback, got %q", fields)
	}
	if !strings.Contains(fields, "field_1=second") {
		t.Fatalf("expected field_1 fallback, got %q", fields)
	}
}

// TestFormatKeyValues_QuotesValuesWithSpaces verifies values stay parseable.
func TestFormatKeyValues_QuotesValuesWithSpaces(t *testing.T) {
	fields := formatKeyValues("state", "$PARSE_HEADER", "path", "/a b", "empty", "")
	expected := `state=$PARSE_HEADER path="/a b" empty=""`
	if fields != expected {
		t.Fatalf("expected %q, got %q", expected, fields)
	}
}
