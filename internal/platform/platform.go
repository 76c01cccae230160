// Package platform maps the running host's OS and architecture to the
// manifest platform tag the Update Controller looks up (spec §4.F). Arch
// naming follows the canonical aliases the teacher's asset-matching code
// used for GOARCH (main.go's archAliasTable): amd64 → x64, 386 → ia32.
package platform

import (
	"runtime"

	"github.com/peerio/updater/internal/model"
)

// archTag maps a Go GOARCH value to the canonical token used in manifest
// platform keys.
var archTag = map[string]string{
	"amd64": "x64",
	"arm64": "arm64",
	"386":   "ia32",
}

// Host resolves the platform tag for the currently running binary.
func Host() (string, error) {
	return Resolve(runtime.GOOS, runtime.GOARCH)
}

// Resolve maps a (goos, goarch) pair to a manifest platform tag (spec §4.F):
// macOS → "mac", Windows → "windows", Linux → "linux-<arch>"; anything else
// fails UnsupportedPlatform.
func Resolve(goos, goarch string) (string, error) {
	switch goos {
	case "darwin":
		return "mac", nil
	case "windows":
		return "windows", nil
	case "linux":
		arch, ok := archTag[goarch]
		if !ok {
			return "", model.Errf(model.ErrUnsupportedPlatform, "unsupported linux arch %q", goarch)
		}
		return "linux-" + arch, nil
	default:
		return "", model.Errf(model.ErrUnsupportedPlatform, "unsupported host platform %q/%q", goos, goarch)
	}
}
