// Package validation contains input validation for identifiers and documents.
package validation

import (
	"strconv"
	"unicode"
)

// maxTitleNumber bounds membership titles to 8 digits.
const maxTitleNumber = 99_999_999

// IsValidTitleNumber reports whether n is a valid membership title number:
// positive and at most 8 digits.
func IsValidTitleNumber(n int64) bool {
	return n > 0 && n <= maxTitleNumber
}

// ParseTitleNumber parses a membership title number from its textual form.
// Up to 8 digits are accepted; leading zeros are dropped, so the returned
// value is canonical.
func ParseTitleNumber(s string) (int64, bool) {
	if s == "" || len(s) > 8 {
		return 0, false
	}
	for _, ch := range s {
		if !unicode.IsDigit(ch) {
			return 0, false
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || !IsValidTitleNumber(n) {
		return 0, false
	}
	return n, true
}

// IsValidCPF verifies a CPF document number in the 000.000.000-00 format,
// including both mod-11 check digits.
func IsValidCPF(cpf string) bool {
	digits := make([]int, 0, 11)
	for i, ch := range cpf {
		switch {
		case unicode.IsDigit(ch):
			digits = append(digits, int(ch-'0'))
		case ch == '.' && (i == 3 || i == 7):
		case ch == '-' && i == 11:
		default:
			return false
		}
	}
	if len(cpf) != 14 || len(digits) != 11 {
		return false
	}

	// CPFs made of a single repeated digit pass the checksum but are not issued.
	repeated := true
	for _, d := range digits[1:] {
		if d != digits[0] {
			repeated = false
			break
		}
	}
	if repeated {
		return false
	}

	return checkDigit(digits, 9) == digits[9] && checkDigit(digits, 10) == digits[10]
}

// checkDigit computes the mod-11 verifier over the first n digits.
func checkDigit(digits []int, n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += digits[i] * (n + 1 - i)
	}

	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}
