package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	data := []byte(`{
		"version": "1.0.0",
		"publicKeys": ["k"],
		"manifests": ["https://example.invalid/manifest.txt"],
		"downloadsDir": "` + filepath.ToSlash(filepath.Join(dir, "downloads")) + `"
	}`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunNoArgs(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := run(nil, &stdout, &stderr)
	if code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := run([]string{"bogus"}, &stdout, &stderr)
	if code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "unknown command") {
		t.Errorf("stderr = %q, want mention of unknown command", stderr.String())
	}
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := run([]string{"version"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0; stderr=%s", code, stderr.String())
	}
	if strings.TrimSpace(stdout.String()) == "" {
		t.Error("expected version output")
	}
}

func TestRunCheckRequiresConfig(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := run([]string{"check"}, &stdout, &stderr)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "-config is required") {
		t.Errorf("stderr = %q, want config requirement message", stderr.String())
	}
}

func TestRunCheckUnreachableManifestReportsError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := writeConfig(t, dir)

	var stdout, stderr bytes.Buffer
	code := run([]string{"check", "-config", configPath, "-timeout", "2s"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0 (check reports failures as events, not exit codes); stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "checking for update") {
		t.Errorf("stdout = %q, want a checking-for-update line", stdout.String())
	}
}
