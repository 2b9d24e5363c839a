// Package digest computes content digests of deployment artifacts.
package digest

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/savaki/sc-packager/internal/errors"
)

// Sum reads r to EOF and returns the base64 encoded SHA-256 of the bytes read.
// A read failure returns an empty digest and an error wrapping errors.ErrRead.
func Sum(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrRead, err)
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// Bytes returns the digest of an in-memory artifact.
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}
