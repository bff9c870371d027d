package catalog

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// HashFile returns the hex-encoded BLAKE3-256 digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return HashReader(f)
}

// HashReader returns the hex-encoded BLAKE3-256 digest of r.
func HashReader(r io.Reader) (string, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
