package domain

import "strings"

// FormatAddress renders "street, number[ - complement]". The legacy string
// is used only when neither street nor number is present.
func FormatAddress(a Address) string {
	var out string
	switch {
	case a.Street != "" && a.Number != "":
		out = a.Street + ", " + a.Number
	case a.Street != "":
		out = a.Street
	case a.Number != "":
		out = a.Number
	default:
		out = a.Legacy
	}
	if a.Complement != "" {
		if out == "" {
			return a.Complement
		}
		out += " - " + a.Complement
	}
	return out
}

// SplitLegacyAddress splits "Rua X, 123" on the last comma into street and
// number. Without a comma the whole string is the street.
func SplitLegacyAddress(legacy string) (street, number string) {
	legacy = strings.TrimSpace(legacy)
	i := strings.LastIndex(legacy, ",")
	if i < 0 {
		return legacy, ""
	}
	return strings.TrimSpace(legacy[:i]), strings.TrimSpace(legacy[i+1:])
}

// JoinLegacyAddress is the inverse of SplitLegacyAddress.
func JoinLegacyAddress(street, number string) string {
	street = strings.TrimSpace(street)
	number = strings.TrimSpace(number)
	if number == "" {
		return street
	}
	return street + ", " + number
}
