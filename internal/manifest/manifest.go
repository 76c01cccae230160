// Package manifest parses and serializes the signed update manifest format
// (spec §4.E). The wire format pairs an untrusted comment and a base64
// signature with a signed body of flat key: value lines; this package owns
// that text shape, while internal/model owns the typed Manifest value it
// produces.
package manifest

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/peerio/updater/internal/model"
	"github.com/peerio/updater/internal/signify"
)

const untrustedCommentPrefix = "untrusted comment: "
const defaultComment = "Peerio Updater manifest"

// LoadFromString verifies and parses a signed manifest document (spec §4.E
// steps 1-5, §8 properties 3 and 4). The first line (comment) is discarded,
// the second line is the signature, and everything from the third line
// onward — rejoined with "\n" exactly as received — is both the signed body
// and the source of the key→value pairs.
func LoadFromString(publicKeysB64 []string, text string) (model.Manifest, error) {
	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return model.Manifest{}, model.Errf(model.ErrBadManifest, "manifest has %d lines, need at least 3", len(lines))
	}

	signatureB64 := strings.TrimSpace(lines[1])
	signedBody := strings.Join(lines[2:], "\n")

	if err := signify.Verify(publicKeysB64, signatureB64, signedBody); err != nil {
		return model.Manifest{}, err
	}

	data := parseKeyValues(signedBody)

	version, ok := data["version"]
	if !ok || version == "" {
		return model.Manifest{}, model.Errf(model.ErrInvalidVersion, "manifest has no version")
	}
	if _, err := semver.NewVersion(version); err != nil {
		return model.Manifest{}, model.Wrap(model.ErrInvalidVersion, err, "manifest version %q", version)
	}

	m := model.Manifest{
		Data: data,
		Header: model.ManifestHeader{
			Version:   version,
			Urgency:   data["urgency"],
			Date:      data["date"],
			Changelog: data["changelog"],
		},
		Platforms: buildPlatforms(data),
	}
	return m, nil
}

// parseKeyValues interprets trimmed, non-empty lines as "key: value", split
// on the first colon with the value right-trimmed (spec §4.E).
func parseKeyValues(body string) map[string]string {
	data := make(map[string]string)
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			data[line] = ""
			continue
		}
		key := line[:idx]
		value := strings.TrimRight(line[idx+1:], " \t")
		value = strings.TrimPrefix(value, " ")
		data[key] = value
	}
	return data
}

func buildPlatforms(data map[string]string) map[string]model.PlatformEntry {
	platforms := make(map[string]model.PlatformEntry)
	for key, value := range data {
		prefix, ok := model.PlatformKeyPrefix(key)
		if !ok {
			continue
		}
		entry := platforms[prefix]
		switch {
		case strings.HasSuffix(key, "-file"):
			entry.File = value
		case strings.HasSuffix(key, "-size"):
			size, err := strconv.ParseInt(value, 10, 64)
			if err == nil {
				entry.Size = size
			}
		case strings.HasSuffix(key, "-sha512"):
			entry.SHA512 = value
		case strings.HasSuffix(key, "-minisig"):
			entry.Minisig = value
		}
		platforms[prefix] = entry
	}
	return platforms
}

// headerKeyOrder is the fixed prefix of keys serialize emits before the
// lexicographically-sorted remainder (spec §4.E).
var headerKeyOrder = []string{"version", "urgency", "date", "changelog"}

// Serialize renders m back into the signed manifest text format and signs
// it with secretKeyB64 (spec §4.E). Round-tripping the result through
// LoadFromString recovers m.Data exactly (spec §8 property 3).
func Serialize(secretKeyB64 string, m model.Manifest) (string, error) {
	var body strings.Builder
	body.WriteString("\n")

	emitted := make(map[string]bool, len(m.Data))
	for _, key := range headerKeyOrder {
		value, ok := m.Data[key]
		if !ok {
			continue
		}
		body.WriteString(key)
		body.WriteString(": ")
		body.WriteString(value)
		body.WriteString("\n")
		emitted[key] = true
	}

	remaining := make([]string, 0, len(m.Data))
	for key := range m.Data {
		if !emitted[key] {
			remaining = append(remaining, key)
		}
	}
	sort.Strings(remaining)

	lastGroup := ""
	for _, key := range remaining {
		group := groupOf(key)
		if group != lastGroup {
			body.WriteString("\n")
			lastGroup = group
		}
		body.WriteString(key)
		body.WriteString(": ")
		body.WriteString(m.Data[key])
		body.WriteString("\n")
	}
	body.WriteString("\n")

	signedBody := body.String()
	signatureB64, err := signify.Sign(secretKeyB64, signedBody)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	out.WriteString(untrustedCommentPrefix)
	out.WriteString(defaultComment)
	out.WriteString("\n")
	out.WriteString(signatureB64)
	out.WriteString("\n")
	out.WriteString(signedBody)
	return out.String(), nil
}

func groupOf(key string) string {
	if idx := strings.IndexByte(key, '-'); idx >= 0 {
		return key[:idx]
	}
	return key
}
