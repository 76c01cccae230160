package selfupdate

import "os"

// RelaunchExeEnvVar names the environment variable the host sets to the
// current executable's path, used as a fallback when os.Executable cannot
// resolve it (spec §6: "the host provides the current executable path
// through an environment variable so that the controller can pass it back
// on relaunch; the variable name is an integration detail not constrained
// here").
const RelaunchExeEnvVar = "PEERIO_UPDATER_RELAUNCH_EXE"

// RelaunchTarget resolves the executable path to hand back to the host on
// relaunch (spec §4.G quitAndInstall): ComputeTargetPath first, falling
// back to RelaunchExeEnvVar when the executable can't be determined
// directly (e.g. running under a wrapper script on Linux).
func RelaunchTarget(dir string) (string, error) {
	target, err := ComputeTargetPath(dir)
	if err == nil {
		return target, nil
	}
	if fallback := os.Getenv(RelaunchExeEnvVar); fallback != "" {
		return fallback, nil
	}
	return "", err
}
