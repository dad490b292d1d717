package credential

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Kind discriminates which namespace a scannable credential belongs to,
// so a scan can route straight to the right lookup instead of probing
// both tables.
type Kind string

const (
	KindGuest Kind = "guest"
	KindTable Kind = "table"
)

const (
	guestPrefix = "SG"
	tablePrefix = "ST"

	// Crockford-style base32: no I, L, O, U, so credentials survive
	// being read out loud or typed at the door.
	alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

	// 20 base32 characters carry 100 bits of randomness.
	tokenLength = 20
)

// ErrInvalidFormat signals a scanned string that is not one of ours.
var ErrInvalidFormat = fmt.Errorf("invalid credential format")

// IsValid reports whether the value is a known Kind.
func (k Kind) IsValid() bool {
	return k == KindGuest || k == KindTable
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}

// Issue mints a new credential for the given kind. The result is URL-safe,
// upper-case, and globally unique for any realistic issue volume.
func Issue(kind Kind) (string, error) {
	prefix, err := prefixFor(kind)
	if err != nil {
		return "", err
	}
	buf := make([]byte, tokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading entropy: %w", err)
	}
	token := make([]byte, tokenLength)
	for i, b := range buf {
		token[i] = alphabet[int(b)%len(alphabet)]
	}
	return prefix + "-" + string(token), nil
}

// Parse validates the credential shape and returns its kind.
func Parse(raw string) (Kind, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	prefix, token, found := strings.Cut(value, "-")
	if !found || len(token) != tokenLength {
		return "", ErrInvalidFormat
	}
	for _, r := range token {
		if !strings.ContainsRune(alphabet, r) {
			return "", ErrInvalidFormat
		}
	}
	switch prefix {
	case guestPrefix:
		return KindGuest, nil
	case tablePrefix:
		return KindTable, nil
	}
	return "", ErrInvalidFormat
}

// Normalize maps user-supplied input onto the canonical stored form.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func prefixFor(kind Kind) (string, error) {
	switch kind {
	case KindGuest:
		return guestPrefix, nil
	case KindTable:
		return tablePrefix, nil
	}
	return "", fmt.Errorf("unknown credential kind %q", kind)
}
