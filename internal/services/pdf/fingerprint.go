package pdf

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

const chunkSize = 8 * 1024

// Fingerprint returns the lowercase hex MD5 of everything read from r,
// reading in fixed-size chunks.
func Fingerprint(r io.Reader) (string, error) {
	h := md5.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read file for fingerprint: %w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FingerprintFile is Fingerprint over the file at path.
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for fingerprint: %w", err)
	}
	defer f.Close()
	return Fingerprint(f)
}
