// Package installer defines the narrow contract the Update Controller hands
// a verified artifact to (spec §4.H). Platform dispatch is a compile-time
// map, not the teacher's dynamic tool-lookup pattern (spec §9 design note:
// "the installer-dispatch table is a compile-time map, not a dynamic
// require").
package installer

import (
	"runtime"

	"github.com/peerio/updater/internal/model"
)

// Installer is the opaque external collaborator that actually replaces
// files, elevates privileges, and relaunches the process. The Controller
// never inspects how an Installer does its work.
type Installer interface {
	// Install applies artifactPath and, if restart is true, relaunches the
	// application once installation completes.
	Install(artifactPath string, restart bool) error
}

// Key identifies a dispatch-table entry: host OS plus the nightly flag
// (spec §4.H: "dispatch is a pure lookup by host OS and the nightly flag").
type Key struct {
	GOOS    string
	Nightly bool
}

// Table is a compile-time platform -> Installer dispatch map. Registered by
// the host application's wiring code (out of scope here, per spec §1); a
// missing entry is the caller's fatal UnknownPlatformInstaller.
type Table map[Key]Installer

// Lookup resolves the Installer for the host's runtime.GOOS and nightly,
// failing UnknownPlatformInstaller when no entry is registered. Dispatch is
// a pure lookup (spec §4.H): a missing {GOOS, nightly} entry is fatal, never
// silently substituted with a different entry.
func (t Table) Lookup(nightly bool) (Installer, error) {
	key := Key{GOOS: runtime.GOOS, Nightly: nightly}
	inst, ok := t[key]
	if !ok {
		return nil, model.Errf(model.ErrUnknownPlatformInstaller, "no installer registered for %s (nightly=%v)", runtime.GOOS, nightly)
	}
	return inst, nil
}
