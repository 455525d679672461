package email

import "strings"

// Normalize lowercases and trims an email address. All equality checks in the
// matcher and claim path go through this so "A@X.se " and "a@x.se" compare
// equal.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Equal reports case-insensitive equality of two addresses. Empty addresses
// never match anything, including each other.
func Equal(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb
}
