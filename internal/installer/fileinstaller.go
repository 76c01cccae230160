package installer

import (
	"os"
	"os/exec"

	"github.com/peerio/updater/internal/model"
	"github.com/peerio/updater/internal/selfupdate"
)

// FileInstaller is the minimal Installer every host gets for free: it
// replaces the running executable with the downloaded artifact via the same
// chmod-then-rename sequence the teacher's own main.go uses to place a
// fetched binary. The artifact is renamed over the target in place, with no
// intermediate temp file next to the target: the replacement is atomic only
// when the artifact and the target share a filesystem, and the rename fails
// with InstallFailed when they do not.
// Hosts that need privilege elevation or a platform package manager instead
// register their own Installer in the dispatch table (spec §4.H); this one
// exists so the table is never forced to stay empty.
type FileInstaller struct {
	// TargetPath is the executable FileInstaller replaces. Empty resolves to
	// the currently running executable via selfupdate.ComputeTargetPath.
	TargetPath string
}

// Install implements Installer.
func (f FileInstaller) Install(artifactPath string, restart bool) error {
	target := f.TargetPath
	if target == "" {
		resolved, err := selfupdate.ComputeTargetPath("")
		if err != nil {
			return model.Wrap(model.ErrInstallFailed, err, "resolve install target path")
		}
		target = resolved
	}

	mode := os.FileMode(0o755)
	if info, err := os.Stat(target); err == nil {
		mode = info.Mode()
	}
	if err := os.Chmod(artifactPath, mode); err != nil {
		return model.Wrap(model.ErrInstallFailed, err, "chmod %s", artifactPath)
	}
	if err := os.Rename(artifactPath, target); err != nil {
		return model.Wrap(model.ErrInstallFailed, err, "replace %s with %s", target, artifactPath)
	}

	if !restart {
		return nil
	}
	// #nosec G204 -- target is the artifact this same call just installed, not user input
	cmd := exec.Command(target)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return model.Wrap(model.ErrInstallFailed, err, "relaunch %s", target)
	}
	return nil
}
