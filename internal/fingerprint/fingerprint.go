// Package fingerprint derives stable cache keys from request parameters
// and file contents.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Derive computes a stable hex digest over a set of named parameters.
// Keys are serialized in sorted order, so two maps with the same entries
// always produce the same fingerprint regardless of insertion order.
func Derive(params map[string]any) (string, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("serialize fingerprint parameters: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// File computes the hex digest of a file's contents. It is the fallback
// identity for local inputs that have no semantic parameters to key on.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for fingerprint: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("hash file contents: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
