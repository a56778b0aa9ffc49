// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"trace", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.name)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.name, got, err)
		}
	}
}

func TestNew_TextFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	logger.Info("[debugchan] hidden")
	logger.Warn("[debugchan] shown", "key", 5)

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "key=5") {
		t.Errorf("output = %q", out)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	logger.Info("page sent", "count", 2)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "page sent" || rec["count"] != float64(2) {
		t.Errorf("record = %v", rec)
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debugcast.log")
	logger, closer, err := New(Options{Level: "debug", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	logger.Debug("written to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file = %q", data)
	}
}

func TestNew_BadFormat(t *testing.T) {
	if _, _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}
