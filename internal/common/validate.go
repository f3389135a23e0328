package common

import "strings"

// ValidateEmail performs a loose client-side pre-check of an email address:
// non-empty local part, a single '@', and a dot somewhere in the domain.
// It is a usability gate before submission, not a security boundary; the
// server remains authoritative.
func ValidateEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at != strings.LastIndexByte(email, '@') {
		return false
	}
	domain := email[at+1:]
	dot := strings.IndexByte(domain, '.')
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}
	return !strings.ContainsAny(email, " \t\r\n")
}

// ValidateOneTimeCode reports whether code is exactly OneTimeCodeLength
// ASCII digits. Codes of any other shape must not be submitted.
func ValidateOneTimeCode(code string) bool {
	if len(code) != OneTimeCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
