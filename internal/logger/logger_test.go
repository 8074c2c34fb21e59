package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestInfoWritesTextLine(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	Info("generation complete", KeySite, "7", KeyTimePoint, int64(12345))

	out := buf.String()
	if !strings.Contains(out, "generation complete") {
		t.Fatalf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "site=7") {
		t.Fatalf("expected site field in output, got %q", out)
	}
}

func TestDebugSuppressedBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	Debug("should not appear")

	if buf.Len() != 0 {
		t.Fatalf("expected no output for suppressed debug line, got %q", buf.String())
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "DEBUG", "json", false)

	Info("reconcile done", KeyStatus, "Modified")

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected valid JSON line, got error %v for %q", err, buf.String())
	}
	if decoded["msg"] != "reconcile done" {
		t.Fatalf("expected msg field, got %v", decoded)
	}
	if decoded[KeyStatus] != "Modified" {
		t.Fatalf("expected status field, got %v", decoded)
	}
}

func TestSetLevelIgnoresUnknown(t *testing.T) {
	SetLevel("INFO")
	SetLevel("NOT_A_LEVEL")
	if Level(currentLevel.Load()) != LevelInfo {
		t.Fatalf("expected level to remain INFO after invalid SetLevel call")
	}
}
