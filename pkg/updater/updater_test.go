package updater

import "testing"

func TestNewRequiresCurrentVersion(t *testing.T) {
	t.Parallel()

	_, err := New(Config{ManifestURLs: []string{"https://example.com/m.txt"}, DownloadsDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected an error when CurrentVersion is empty")
	}
}

func TestNewRequiresManifestURLs(t *testing.T) {
	t.Parallel()

	_, err := New(Config{CurrentVersion: "1.0.0", DownloadsDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected an error when no manifest URLs are configured")
	}
}

func TestNewRequiresDownloadsDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{CurrentVersion: "1.0.0", ManifestURLs: []string{"https://example.com/m.txt"}})
	if err == nil {
		t.Fatal("expected an error when DownloadsDir is empty")
	}
}

func TestNewValidConfig(t *testing.T) {
	t.Parallel()

	u, err := New(Config{
		CurrentVersion: "1.0.0",
		ManifestURLs:   []string{"https://example.com/m.txt"},
		DownloadsDir:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if u.Events() == nil {
		t.Fatal("expected a non-nil event stream")
	}
}

func TestFromFile(t *testing.T) {
	t.Parallel()

	data := []byte(`{
		"version": "1.0.0",
		"publicKeys": ["k"],
		"manifests": ["https://example.com/m.txt"],
		"downloadsDir": "/tmp/peerio-updates"
	}`)
	cfg, err := FromFile(data, nil)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if cfg.CurrentVersion != "1.0.0" {
		t.Errorf("CurrentVersion = %q, want 1.0.0", cfg.CurrentVersion)
	}
	if len(cfg.ManifestURLs) != 1 {
		t.Errorf("ManifestURLs = %v, want 1 entry", cfg.ManifestURLs)
	}
}
