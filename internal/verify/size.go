package verify

import (
	"os"

	"github.com/peerio/updater/internal/model"
)

// VerifySize stats path and fails with SizeMismatch if its size disagrees
// with expectedBytes (spec §4.C).
func VerifySize(expectedBytes int64, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return model.Wrap(model.ErrSizeMismatch, err, "stat %s", path)
	}
	if info.Size() != expectedBytes {
		return model.Errf(model.ErrSizeMismatch, "size mismatch: expected %d, got %d", expectedBytes, info.Size())
	}
	return nil
}
