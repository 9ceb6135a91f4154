package rescache

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns the xxHash64 of data.
func Fingerprint(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// FingerprintFile streams a file through xxHash64.
func FingerprintFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, fmt.Errorf("failed to hash file: %w", err)
	}
	return h.Sum64(), nil
}

// FingerprintHex renders a fingerprint as 16 hex digits.
func FingerprintHex(sum uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], sum)
	return hex.EncodeToString(buf[:])
}
