package deps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeTool(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures require a POSIX shell")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	good := writeTool(t, dir, "fake-ffmpeg", `echo "ffmpeg version 6.1 Copyright (c) 2000-2023"
echo "built with gcc"`)
	broken := writeTool(t, dir, "broken-ffprobe", `exit 3`)

	tests := []struct {
		name        string
		tool        Tool
		wantOK      bool
		wantVersion string
		wantErr     string
	}{
		{name: "found", tool: Tool{Name: "ffmpeg", Binary: good}, wantOK: true, wantVersion: "ffmpeg version 6.1 Copyright (c) 2000-2023"},
		{name: "missing", tool: Tool{Name: "ffmpeg", Binary: filepath.Join(dir, "nope")}, wantErr: "not found"},
		{name: "version fails", tool: Tool{Name: "ffprobe", Binary: broken}, wantErr: "version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Check(context.Background(), []Tool{tt.tool})[0]
			if st.OK() != tt.wantOK {
				t.Fatalf("OK() = %v (%v), want %v", st.OK(), st.Err, tt.wantOK)
			}
			if st.Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", st.Version, tt.wantVersion)
			}
			if tt.wantErr != "" && !strings.Contains(st.Message(), tt.wantErr) {
				t.Errorf("Message() = %q, want it to mention %q", st.Message(), tt.wantErr)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	dir := t.TempDir()
	good := writeTool(t, dir, "ok-tool", `echo "v1"`)

	if _, err := Require(context.Background(), []Tool{{Name: "ffmpeg", Binary: good}}); err != nil {
		t.Errorf("Require() error = %v", err)
	}

	tools := Default(good, filepath.Join(dir, "missing-ffprobe"))
	statuses, err := Require(context.Background(), tools)
	if !errors.Is(err, ErrToolMissing) {
		t.Fatalf("Require() error = %v, want ErrToolMissing", err)
	}
	if len(statuses) != 2 || !statuses[0].OK() || statuses[1].OK() {
		t.Errorf("statuses = %+v", statuses)
	}
	if !strings.Contains(err.Error(), "install FFmpeg") {
		t.Errorf("error %q lacks the install hint", err)
	}
}

func TestDefaultNames(t *testing.T) {
	tools := Default("", "")
	if len(tools) != 2 || tools[0].Name != "ffmpeg" || tools[1].Name != "ffprobe" {
		t.Errorf("Default() = %+v", tools)
	}
}
