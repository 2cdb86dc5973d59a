// Package phone normalises destination numbers to the Hong Kong
// international format used by the SMS webhook.
package phone

import "strings"

// Region dialing prefixes.
const (
	CountryCode = "852"
	Prefix      = "+" + CountryCode

	// subscriberDigits is the length of a Hong Kong local number.
	subscriberDigits = 8
)

// Normalize returns raw in "+852XXXXXXXX" form. Numbers already starting
// with +852 are returned unchanged. Otherwise non-digits and leading zeros
// are dropped; digits that already begin with 852 and are longer than a
// local number only gain the '+', anything else gains the full prefix.
func Normalize(raw string) string {
	if strings.HasPrefix(raw, Prefix) {
		return raw
	}
	digits := strings.TrimLeft(Digits(raw), "0")
	if strings.HasPrefix(digits, CountryCode) && len(digits) > subscriberDigits {
		return "+" + digits
	}
	return Prefix + digits
}

// Digits keeps only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// HasSubscriber reports whether a normalised number carries digits after
// the country prefix.
func HasSubscriber(normalized string) bool {
	return len(Digits(normalized)) > len(CountryCode)
}
