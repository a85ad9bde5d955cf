// Package security holds the input checks shared by the auth forms and the
// chat widget.
package security

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// textEscaper matches what a DOM text node serialises to.
var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)<iframe`),
	regexp.MustCompile(`(?i)<object`),
	regexp.MustCompile(`(?i)<embed`),
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	handlerPattern    = regexp.MustCompile(`(?i)on\w+\s*=\s*["'][^"']*["']`)
	specialCharacters = regexp.MustCompile(`[<>"']`)

	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

	letterPattern          = regexp.MustCompile(`[A-Za-z]`)
	digitPattern           = regexp.MustCompile(`\d`)
	allowedPasswordPattern = regexp.MustCompile(`^[A-Za-z\d@$!%*#?&._\-+=()\[\]{}]+$`)
)

// EscapeHTML escapes the five HTML-significant characters.
func EscapeHTML(text string) string {
	if text == "" {
		return ""
	}
	return htmlEscaper.Replace(text)
}

// SanitizeHTML escapes text for use as element content. Quotes are left
// alone, so the result is not safe inside attribute values.
func SanitizeHTML(html string) string {
	if html == "" {
		return ""
	}
	return textEscaper.Replace(html)
}

func ContainsDangerousChars(input string) bool {
	if input == "" {
		return false
	}
	for _, p := range dangerousPatterns {
		if p.MatchString(input) {
			return true
		}
	}
	return false
}

// SanitizeInput strips tags, inline event handlers and quote/angle
// characters from free-form input.
func SanitizeInput(input string) string {
	cleaned := tagPattern.ReplaceAllString(input, "")
	cleaned = handlerPattern.ReplaceAllString(cleaned, "")
	cleaned = specialCharacters.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

func IsValidEmail(email string) bool {
	return email != "" && emailPattern.MatchString(email)
}

// IsValidPhone accepts mainland China mobile numbers.
func IsValidPhone(phone string) bool {
	return phone != "" && phonePattern.MatchString(phone)
}

// PasswordCheck is the result of ValidatePasswordStrength.
type PasswordCheck struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// AllowedPasswordSymbols lists the non-alphanumeric characters a password may contain.
const AllowedPasswordSymbols = "@$!%*#?&._-+=()[]{}"

// ValidatePasswordStrength applies the same rules as the backend.
func ValidatePasswordStrength(password string) PasswordCheck {
	switch {
	case password == "":
		return PasswordCheck{Message: "password must not be empty"}
	case utf8.RuneCountInString(password) < 8:
		return PasswordCheck{Message: "password must be at least 8 characters"}
	case !letterPattern.MatchString(password):
		return PasswordCheck{Message: "password must contain a letter"}
	case !digitPattern.MatchString(password):
		return PasswordCheck{Message: "password must contain a digit"}
	case !allowedPasswordPattern.MatchString(password):
		return PasswordCheck{Message: "password may only contain letters, digits and " + AllowedPasswordSymbols}
	}
	return PasswordCheck{Valid: true, Message: "password meets the requirements"}
}
