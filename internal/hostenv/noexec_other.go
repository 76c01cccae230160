//go:build !linux

package hostenv

// IsNoExecMount always reports false outside Linux: the noexec-mount guard
// is a Linux-specific download-directory precaution (spec SPEC_FULL
// supplemented feature #2).
func IsNoExecMount(destPath string) bool {
	return false
}
