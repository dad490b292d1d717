package phone

import (
	"strings"

	"github.com/serataapp/serata-backend/pkg/config"
)

// Matcher reconciles phone numbers captured through different channels
// (box office, self registration, promoter entry) without a canonical
// input format. Matching deliberately favors recall over precision.
type Matcher struct {
	countryCode string
	minDigits   int
}

// NewMatcher builds a matcher from the phone configuration.
func NewMatcher(cfg config.PhoneConfig) *Matcher {
	cc := strings.TrimPrefix(strings.TrimSpace(cfg.DefaultCountryCode), "+")
	min := cfg.MinMatchDigits
	if min <= 0 {
		min = 6
	}
	return &Matcher{countryCode: cc, minDigits: min}
}

// Normalize strips everything but digits from the given phone number.
func (m *Matcher) Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Variants returns every representation the number may have been stored
// under: as given, digits only, and the bare national number with the
// default country prefix in its three conventional spellings.
func (m *Matcher) Variants(raw string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	add := func(v string) {
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	add(strings.TrimSpace(raw))
	digits := m.Normalize(raw)
	add(digits)

	if m.countryCode == "" || digits == "" {
		return out
	}

	bare := m.bareNumber(digits)
	add(bare)
	add(m.countryCode + bare)
	add("00" + m.countryCode + bare)
	add("+" + m.countryCode + bare)
	return out
}

// Match reports whether a and b plausibly identify the same phone.
// Numbers with fewer digits than the configured minimum never match,
// which keeps empty and garbage input from pairing up.
func (m *Matcher) Match(a, b string) bool {
	na := m.Normalize(a)
	nb := m.Normalize(b)
	if len(m.bareNumber(na)) < m.minDigits || len(m.bareNumber(nb)) < m.minDigits {
		return false
	}
	if na == nb {
		return true
	}
	if m.variantSetContains(a, b) || m.variantSetContains(b, a) {
		return true
	}
	return m.bareNumber(na) == m.bareNumber(nb)
}

// Matchable reports whether the number carries enough digits to
// participate in matching at all.
func (m *Matcher) Matchable(raw string) bool {
	return len(m.bareNumber(m.Normalize(raw))) >= m.minDigits
}

func (m *Matcher) variantSetContains(owner, candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	normalized := m.Normalize(candidate)
	for _, v := range m.Variants(owner) {
		if v == candidate || v == normalized {
			return true
		}
	}
	return false
}

// bareNumber strips the default country prefix ("+CC", "CC", "00CC")
// from an already-normalized digit string.
func (m *Matcher) bareNumber(digits string) string {
	if m.countryCode == "" {
		return digits
	}
	if rest, ok := strings.CutPrefix(digits, "00"+m.countryCode); ok && len(rest) >= m.minDigits {
		return rest
	}
	if rest, ok := strings.CutPrefix(digits, m.countryCode); ok && len(rest) >= m.minDigits {
		return rest
	}
	return digits
}
