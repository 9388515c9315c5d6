// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Output: &buf})

	logger.Info("rule installed", "key", "my_key")

	out := buf.String()
	if !strings.Contains(out, "rule installed") {
		t.Errorf("missing message in output: %s", out)
	}
	if !strings.Contains(out, "key=my_key") {
		t.Errorf("missing attribute in output: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf})

	logger.Debug("dropped datagram")
	logger.Info("status updated")
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got: %s", buf.String())
	}

	logger.Warn("receiver fell behind")
	if buf.Len() == 0 {
		t.Error("expected warn output")
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Output: &buf, JSON: true})

	logger.WithComponent("conn").Info("reader stopped", "seq", 7)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["component"] != "conn" {
		t.Errorf("expected component conn, got %v", record["component"])
	}
	if record["msg"] != "reader stopped" {
		t.Errorf("expected msg, got %v", record["msg"])
	}
}

func TestSetDefault(t *testing.T) {
	old := Default()
	defer SetDefault(old)

	var buf bytes.Buffer
	SetDefault(New(Config{Level: LevelInfo, Output: &buf}))

	Info("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("default logger not replaced: %s", buf.String())
	}
}
