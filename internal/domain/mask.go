package domain

import (
	"errors"
	"strings"
	"unicode"
)

// MinContactDigits is the shortest number for which a contact action is shown.
const MinContactDigits = 8

// brazilCountryCode prefixes numbers in wa.me form.
const brazilCountryCode = "55"

// ErrInvalidPostalCode is returned for postal codes that do not have 8 digits.
var ErrInvalidPostalCode = errors.New("postal code must have 8 digits")

// Digits strips every non-digit character.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MaskPhone progressively formats a Brazilian phone number as
// "(AA) NNNN-NNNN" or "(AA) NNNNN-NNNN". A leading 55 country code on a
// 12/13-digit number is dropped; extra digits are truncated.
func MaskPhone(input string) string {
	d := Digits(input)
	if (len(d) == 12 || len(d) == 13) && strings.HasPrefix(d, brazilCountryCode) {
		d = d[2:]
	}
	if len(d) > 11 {
		d = d[:11]
	}

	switch {
	case len(d) == 0:
		return ""
	case len(d) <= 2:
		return "(" + d
	case len(d) <= 6:
		return "(" + d[:2] + ") " + d[2:]
	case len(d) <= 10:
		return "(" + d[:2] + ") " + d[2:6] + "-" + d[6:]
	default:
		return "(" + d[:2] + ") " + d[2:7] + "-" + d[7:]
	}
}

// MaskCEP progressively formats a postal code as "NNNNN-NNN".
func MaskCEP(input string) string {
	d := Digits(input)
	if len(d) > 8 {
		d = d[:8]
	}
	if len(d) <= 5 {
		return d
	}
	return d[:5] + "-" + d[5:]
}

// NormalizeCEP returns the 8 digits of a postal code or ErrInvalidPostalCode.
func NormalizeCEP(input string) (string, error) {
	d := Digits(input)
	if len(d) != 8 {
		return "", ErrInvalidPostalCode
	}
	return d, nil
}

// WhatsAppNumber converts user input (masked or not) into the digits-only
// wa.me form. 10/11-digit national numbers get the 55 country code.
func WhatsAppNumber(input string) string {
	d := Digits(input)
	if len(d) == 10 || len(d) == 11 {
		return brazilCountryCode + d
	}
	return d
}

// Reachable reports whether the contact has a number worth linking to.
func (c Contact) Reachable() bool {
	return len(Digits(c.WhatsApp)) >= MinContactDigits
}

// FirstName returns the first word of the contact name, or fallback.
func (c Contact) FirstName(fallback string) string {
	fields := strings.FieldsFunc(c.Name, unicode.IsSpace)
	if len(fields) == 0 {
		return fallback
	}
	return fields[0]
}
