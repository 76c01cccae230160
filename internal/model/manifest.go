package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ManifestHeader holds the always-named manifest keys (spec §3, §4.E).
type ManifestHeader struct {
	Version   string
	Urgency   string
	Date      string
	Changelog string
}

// PlatformEntry is the triple of keys a manifest carries per platform:
// "<platform>-file", "<platform>-size", "<platform>-sha512", plus the
// supplemented "<platform>-minisig" sidecar key (SPEC_FULL feature #4).
type PlatformEntry struct {
	File    string
	Size    int64
	SHA512  string
	Minisig string // optional; empty when the manifest carries no sidecar signature
}

// Manifest is the parsed, immutable representation of a signed update
// manifest (spec §3, §4.E). Data preserves every key→value pair exactly as
// read so that Serialize can round-trip it; Header and Platforms are the
// typed views over that same data (spec §9 design note).
type Manifest struct {
	Data      map[string]string
	Header    ManifestHeader
	Platforms map[string]PlatformEntry
}

const defaultUrgency = "mandatory"

var optionalSinceRe = regexp.MustCompile(`^optional since (.+)$`)

// Urgency returns the stored urgency value, defaulting to "mandatory".
func (m Manifest) Urgency() string {
	if m.Header.Urgency == "" {
		return defaultUrgency
	}
	return m.Header.Urgency
}

// OptionalSince returns the version named by an "optional since <semver>"
// urgency string, or "" if the urgency isn't of that form or the captured
// version isn't valid semver.
func (m Manifest) OptionalSince() string {
	match := optionalSinceRe.FindStringSubmatch(m.Urgency())
	if match == nil {
		return ""
	}
	if _, err := semver.NewVersion(match[1]); err != nil {
		return ""
	}
	return match[1]
}

// IsMandatorySince reports whether, given the currently running version, the
// update described by this manifest must be treated as mandatory (spec
// §4.E).
func (m Manifest) IsMandatorySince(current string) bool {
	if m.Urgency() == defaultUrgency {
		return true
	}
	since := m.OptionalSince()
	if since == "" {
		return true
	}
	cur, err := semver.NewVersion(current)
	if err != nil {
		return true
	}
	sinceV, err := semver.NewVersion(since)
	if err != nil {
		return true
	}
	return cur.LessThan(sinceV)
}

// IsNewerVersionThan reports whether this manifest's version is
// semver-greater than current.
func (m Manifest) IsNewerVersionThan(current string) (bool, error) {
	mv, err := semver.NewVersion(m.Header.Version)
	if err != nil {
		return false, fmt.Errorf("manifest version %q: %w", m.Header.Version, err)
	}
	cv, err := semver.NewVersion(current)
	if err != nil {
		return false, fmt.Errorf("current version %q: %w", current, err)
	}
	return mv.GreaterThan(cv), nil
}

// PlatformEntryFor returns the (file, size, sha512, minisig) tuple recorded for
// platform, and whether all required fields (file/size/sha512) are present.
func (m Manifest) PlatformEntryFor(platform string) (PlatformEntry, bool) {
	entry, ok := m.Platforms[platform]
	if !ok {
		return PlatformEntry{}, false
	}
	if entry.File == "" || entry.SHA512 == "" || entry.Size <= 0 {
		return PlatformEntry{}, false
	}
	return entry, true
}

// platformKeySuffixes lists the per-platform key suffixes PlatformKeyPrefix
// recognises; the first one a key ends with decides its platform prefix.
var platformKeySuffixes = []string{"-sha512", "-minisig", "-file", "-size"}

// PlatformKeyPrefix returns the "<platform>" prefix for a flat manifest key
// like "<platform>-file", or "" if name doesn't look like a platform key.
// Platform tags may themselves contain hyphens (e.g. "linux-arm64"), so the
// suffix is matched from the end of the string rather than split on the
// first hyphen.
func PlatformKeyPrefix(key string) (string, bool) {
	for _, suffix := range platformKeySuffixes {
		if strings.HasSuffix(key, suffix) && len(key) > len(suffix) {
			return key[:len(key)-len(suffix)], true
		}
	}
	return "", false
}
