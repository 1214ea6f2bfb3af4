// file: internal/fileops/hash.go
// version: 2.0.0
// guid: 0a1b2c3d-4e5f-6a7b-8c9d-0e1f2a3b4c5d

package fileops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/OneOfOne/xxhash"
	"github.com/jdfalk/beat-organizer/internal/failure"
	"github.com/jdfalk/beat-organizer/internal/models"
)

// Identify returns the identity of the regular file at filePath. The path is
// made absolute and cleaned so the same file always yields the same key.
func Identify(filePath string) (models.FileIdentity, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return models.FileIdentity{}, fmt.Errorf("%w: %s: %v", failure.ErrDecodeFailure, filePath, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return models.FileIdentity{}, fmt.Errorf("%w: %v", failure.ErrDecodeFailure, err)
	}
	if !info.Mode().IsRegular() {
		return models.FileIdentity{}, fmt.Errorf("%w: %s is not a regular file", failure.ErrDecodeFailure, abs)
	}
	return models.FileIdentity{Path: abs, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Changed reports whether the file behind id is gone or no longer matches
// it.
func Changed(id models.FileIdentity) bool {
	cur, err := Identify(id.Path)
	return err != nil || !cur.Same(id)
}

// ContentHash computes the 64-bit xxhash of a file's bytes. Equal hashes
// mean byte-identical files for any practical purpose; it is not a
// cryptographic digest.
func ContentHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := xxhash.New64()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", hasher.Sum64()), nil
}
