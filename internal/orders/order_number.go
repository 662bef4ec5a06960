package orders

import (
	"crypto/rand"
	"fmt"
	"time"
)

const orderNumberSuffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateOrderNumber returns a human-readable order number:
//
//	<prefix>-<YYYYMMDDHHMMSS>-<6 random A-Z0-9>
//
// The random suffix keeps numbers generated in the same second distinct;
// callers still retry on the rare uniqueness collision.
func GenerateOrderNumber(prefix string, now time.Time) (string, error) {
	if prefix == "" {
		prefix = "ORD"
	}
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random suffix: %w", err)
	}
	for i, b := range buf {
		buf[i] = orderNumberSuffixAlphabet[int(b)%len(orderNumberSuffixAlphabet)]
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102150405"), string(buf)), nil
}
