package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunVersion(t *testing.T) {
	var buf bytes.Buffer
	if err := run(context.Background(), &buf, &buf, []string{"version"}); err != nil {
		t.Fatalf("run version: %v", err)
	}
	if !strings.Contains(buf.String(), "Tendo") {
		t.Errorf("version output = %q", buf.String())
	}
}

func TestRunVersionJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := run(context.Background(), &buf, &buf, []string{"-o", "json", "version"}); err != nil {
		t.Fatalf("run version: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal(buf.Bytes(), &info); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if info["version"] == "" {
		t.Errorf("info = %v", info)
	}
}

func TestRunUsageAndErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no args prints usage", nil, ""},
		{"help flag", []string{"--help"}, ""},
		{"unknown command", []string{"frobnicate"}, "unknown command"},
		{"unknown flag", []string{"-frobnicate"}, "unknown flag"},
		{"bad output format", []string{"-o", "yaml", "version"}, "unknown output format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := run(context.Background(), &buf, &buf, tt.args)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("run: %v", err)
				}
				if !strings.Contains(buf.String(), "Usage:") {
					t.Errorf("output = %q", buf.String())
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestRunServeRequiresConfig(t *testing.T) {
	var buf bytes.Buffer
	err := run(context.Background(), &buf, &buf, []string{"-config", "/nonexistent/config.yaml", "serve"})
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("err = %v", err)
	}
}

func TestRunInit(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer

	if err := runInit(&buf, dir); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	cfgPath := filepath.Join(dir, "config.yaml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("config.yaml not created: %v", err)
	}
	if !strings.Contains(string(data), "openrouter:") {
		t.Errorf("config.yaml content = %q", data)
	}

	// A second init must not clobber user edits.
	if err := os.WriteFile(cfgPath, []byte("# edited\n"), 0o644); err != nil {
		t.Fatalf("edit config: %v", err)
	}
	if err := runInit(&buf, dir); err != nil {
		t.Fatalf("runInit again: %v", err)
	}
	data, _ = os.ReadFile(cfgPath)
	if string(data) != "# edited\n" {
		t.Errorf("init overwrote existing config: %q", data)
	}
}
