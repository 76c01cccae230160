// Package verify implements the Hasher and Sizer leaves of the update
// pipeline (spec §4.B, §4.C): a streaming SHA-512 digest with constant-time
// comparison, and a plain file-size check.
package verify

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/peerio/updater/internal/model"
)

// CalculateHash streams path through SHA-512 and returns the lowercase hex
// digest (spec §4.B).
func CalculateHash(path string) (string, error) {
	// #nosec G304 -- path is caller-controlled (downloaded artifact or test fixture)
	f, err := os.Open(path)
	if err != nil {
		return "", model.Wrap(model.ErrHashMismatch, err, "open %s for hashing", path)
	}
	defer f.Close()

	h := sha512.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", model.Wrap(model.ErrHashMismatch, err, "read %s for hashing", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyHash reports whether path's SHA-512 digest matches expectedHex
// (case-insensitive hex), using a constant-time comparison (spec §4.B, §8
// property 5).
func VerifyHash(expectedHex, path string) error {
	actual, err := CalculateHash(path)
	if err != nil {
		return err
	}
	want := strings.ToLower(expectedHex)
	got := strings.ToLower(actual)
	if len(want) != len(got) || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return model.Errf(model.ErrHashMismatch, "sha512 mismatch: expected %s, got %s", want, got)
	}
	return nil
}
