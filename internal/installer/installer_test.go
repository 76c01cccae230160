package installer

import (
	"runtime"
	"testing"

	"github.com/peerio/updater/internal/model"
)

type fakeInstaller struct{ calls int }

func (f *fakeInstaller) Install(artifactPath string, restart bool) error {
	f.calls++
	return nil
}

func TestTableLookupExactMatch(t *testing.T) {
	t.Parallel()

	fake := &fakeInstaller{}
	table := Table{{GOOS: runtime.GOOS, Nightly: true}: fake}

	got, err := table.Lookup(true)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != fake {
		t.Fatal("expected the exact nightly installer back")
	}
}

func TestTableLookupNightlyMissDoesNotFallBack(t *testing.T) {
	t.Parallel()

	fake := &fakeInstaller{}
	table := Table{{GOOS: runtime.GOOS, Nightly: false}: fake}

	_, err := table.Lookup(true)
	if kind, ok := model.KindOf(err); !ok || kind != model.ErrUnknownPlatformInstaller {
		t.Fatalf("Lookup(true) with only a non-nightly entry registered = %v, want UnknownPlatformInstaller", err)
	}
}

func TestTableLookupMissing(t *testing.T) {
	t.Parallel()

	table := Table{}
	_, err := table.Lookup(false)
	if kind, ok := model.KindOf(err); !ok || kind != model.ErrUnknownPlatformInstaller {
		t.Fatalf("expected UnknownPlatformInstaller, got %v", err)
	}
}
