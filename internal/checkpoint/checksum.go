package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// ChecksumReader computes the hex SHA-256 digest of everything read from r.
func ChecksumReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChecksumFile computes the hex SHA-256 digest of a file.
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = f.Close() // Read-only, nothing to flush
	}()
	return ChecksumReader(f)
}

// ValidateChecksum compares a computed digest against an expected one.
// Comparison ignores case. Returns ErrChecksumMismatch if they differ.
func ValidateChecksum(computed, expected string) error {
	if !isHexDigest(expected) {
		return fmt.Errorf("%w: %q", ErrInvalidChecksum, expected)
	}
	if !strings.EqualFold(computed, expected) {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, computed)
	}
	return nil
}

// VerifyFile checks that the file at path has the expected digest.
func VerifyFile(path, expected string) error {
	computed, err := ChecksumFile(path)
	if err != nil {
		return err
	}
	return ValidateChecksum(computed, expected)
}

func isHexDigest(s string) bool {
	if len(s) != 2*sha256.Size {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
