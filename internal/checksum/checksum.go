package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

func SHA256(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Script returns the checksum of a migration script. Line endings and
// surrounding whitespace are normalized so that a checkout on Windows does
// not look like drift.
func Script(sql string) string {
	sql = strings.ReplaceAll(sql, "\r\n", "\n")
	return SHA256([]byte(strings.TrimSpace(sql)))
}
