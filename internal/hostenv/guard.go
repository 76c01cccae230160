package hostenv

import "github.com/peerio/updater/internal/model"

// CheckDownloadsDir fails with ErrNoExecDownloadDir if dir sits on a
// noexec-mounted filesystem, where a downloaded artifact could never be
// made executable after verification (spec SPEC_FULL supplemented feature
// #2, grounded on the teacher's IsNoExecMount detector).
func CheckDownloadsDir(dir string) error {
	if IsNoExecMount(dir) {
		return model.Errf(model.ErrNoExecDownloadDir, "downloads directory %q is on a noexec mount", dir)
	}
	return nil
}
