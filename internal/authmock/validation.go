package authmock

import (
	"net/mail"
	"strings"
	"unicode"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateRegistration returns field errors; an empty map means valid.
func validateRegistration(email, password string) map[string]any {
	details := map[string]any{}

	switch addr, err := mail.ParseAddress(email); {
	case err != nil || addr.Address != email:
		details["email"] = "Invalid email format"
	case len(email) > 255:
		details["email"] = "Email too long"
	}

	switch {
	case len(password) < 8 || len(password) > 128:
		details["password"] = "Password must be 8-128 characters"
	default:
		if msg := passwordStrength(password); msg != "" {
			details["password"] = msg
		}
	}
	return details
}

func passwordStrength(password string) string {
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r) && !unicode.IsNumber(r):
			special = true
		}
	}
	switch {
	case !upper:
		return "Password must contain at least one uppercase letter"
	case !lower:
		return "Password must contain at least one lowercase letter"
	case !digit:
		return "Password must contain at least one digit"
	case !special:
		return "Password must contain at least one special character"
	}
	return ""
}
