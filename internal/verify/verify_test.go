package verify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/peerio/updater/internal/model"
)

func writeTestFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.bin")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

func TestVerifyHashOK(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, "Test file\nOK\n")
	const want = "c3ff3dc57711c22a729e6d8575d30e216052cb5873824c44299bd184780154479e8245685a9c6d308f9ec25cdcb6ec7a1236ef0039b406f79264544a2c1ea295"

	if err := VerifyHash(want, path); err != nil {
		t.Fatalf("VerifyHash: %v", err)
	}
}

func TestVerifyHashMismatch(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, "Test file\nOK\n")
	err := VerifyHash("deadbeef", path)
	if kind, ok := model.KindOf(err); !ok || kind != model.ErrHashMismatch {
		t.Fatalf("expected HashMismatch, got %v", err)
	}
}

func TestVerifyHashCaseInsensitive(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, "abc")
	got, err := CalculateHash(path)
	if err != nil {
		t.Fatalf("CalculateHash: %v", err)
	}
	if err := VerifyHash(strings.ToUpper(got), path); err != nil {
		t.Fatalf("VerifyHash with uppercase expected hash: %v", err)
	}
}

func TestVerifySizeOK(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, "0123456789")
	if err := VerifySize(10, path); err != nil {
		t.Fatalf("VerifySize: %v", err)
	}
}

func TestVerifySizeMismatch(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, "0123456789")
	err := VerifySize(11, path)
	if kind, ok := model.KindOf(err); !ok || kind != model.ErrSizeMismatch {
		t.Fatalf("expected SizeMismatch, got %v", err)
	}
}

func TestFormatSize(t *testing.T) {
	t.Parallel()

	if got := FormatSize(512); got != "512 B" {
		t.Fatalf("FormatSize(512): got %q", got)
	}
	if got := FormatSize(1536); !strings.Contains(got, "KB") {
		t.Fatalf("FormatSize(1536): got %q", got)
	}
}
