package platform

import (
	"testing"

	"github.com/peerio/updater/internal/model"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		goos, goarch string
		want         string
	}{
		{"darwin", "arm64", "mac"},
		{"darwin", "amd64", "mac"},
		{"windows", "amd64", "windows"},
		{"linux", "amd64", "linux-x64"},
		{"linux", "arm64", "linux-arm64"},
		{"linux", "386", "linux-ia32"},
	}
	for _, tt := range tests {
		got, err := Resolve(tt.goos, tt.goarch)
		if err != nil {
			t.Fatalf("Resolve(%q, %q): %v", tt.goos, tt.goarch, err)
		}
		if got != tt.want {
			t.Errorf("Resolve(%q, %q) = %q, want %q", tt.goos, tt.goarch, got, tt.want)
		}
	}
}

func TestResolveUnsupported(t *testing.T) {
	t.Parallel()

	_, err := Resolve("plan9", "amd64")
	if kind, ok := model.KindOf(err); !ok || kind != model.ErrUnsupportedPlatform {
		t.Fatalf("expected UnsupportedPlatform, got %v", err)
	}

	_, err = Resolve("linux", "riscv64")
	if kind, ok := model.KindOf(err); !ok || kind != model.ErrUnsupportedPlatform {
		t.Fatalf("expected UnsupportedPlatform for unknown linux arch, got %v", err)
	}
}
