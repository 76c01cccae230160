package model

// UpdateInfo is the crash-safe JSON record persisted just before an install
// is attempted (spec §3, §4.G). It is read on next startup to decide whether
// the previous attempt needs cleanup or a retry.
type UpdateInfo struct {
	Attempts       int    `json:"attempts"`
	CurrentVersion string `json:"currentVersion"`
	UpdateVersion  string `json:"updateVersion"`
	UpdateSize     int64  `json:"updateSize"`
	UpdateHash     string `json:"updateHash"`
	UpdateFile     string `json:"updateFile"`
}

// Valid reports whether every field required to revalidate a previously
// downloaded artifact is present (spec §9 Open Question: missing size must
// be treated as invalid, and all three of size/hash/file are required, not
// just a truthiness check on one of them).
func (u UpdateInfo) Valid() bool {
	return u.UpdateSize > 0 && u.UpdateHash != "" && u.UpdateFile != ""
}
