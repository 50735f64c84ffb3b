package gateways

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// ChecksumVerifier checks downloaded files against pinned SHA-256 digests.
// Pure Go, no external sha256sum binary needed.
type ChecksumVerifier struct{}

// NewChecksumVerifier creates a new checksum verifier.
func NewChecksumVerifier() *ChecksumVerifier {
	return &ChecksumVerifier{}
}

// VerifyFile compares the file's SHA-256 digest with the expected hex
// string. The comparison ignores case so digests copied from release pages
// work unmodified.
func (v *ChecksumVerifier) VerifyFile(path, expectedHex string) error {
	actual, err := v.FileSHA256(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, expectedHex) {
		return fmt.Errorf("checksum mismatch for %s: expected %s, got %s", path, expectedHex, actual)
	}
	return nil
}

// FileSHA256 returns the hex-encoded SHA-256 digest of a file.
func (v *ChecksumVerifier) FileSHA256(path string) (string, error) {
	//nolint:gosec // G304: File path is caller-provided for checksum calculation
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
