package service

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sakif/mentor-match/internal/apperror"
	"github.com/sakif/mentor-match/internal/auth"
)

// Field limits. The handler layer mirrors these in its validator tags; the
// service checks them again so non-HTTP callers get the same guarantees.
const (
	MinEmailLength    = 5
	MaxEmailLength    = 254
	MinPasswordLength = 8
	MaxPasswordLength = 128
	MaxNameLength     = 100
	MaxBioLength      = 1000
	MaxSkills         = 50
	MaxSkillLength    = 50
)

// ValidName reports whether name uses only ASCII letters, Hangul syllables and
// spaces. Length is checked separately.
func ValidName(name string) bool {
	for _, r := range name {
		switch {
		case r < utf8.RuneSelf && unicode.IsLetter(r):
		case r >= 0xAC00 && r <= 0xD7A3: // 가..힣
		case unicode.IsSpace(r):
		default:
			return false
		}
	}
	return true
}

// StrongPassword reports whether pw has at least one lowercase letter, one
// uppercase letter and one digit.
func StrongPassword(pw string) bool {
	var lower, upper, digit bool
	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	return lower && upper && digit
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) []string {
	n := utf8.RuneCountInString(email)
	if n < MinEmailLength || n > MaxEmailLength {
		return []string{"email must be between 5 and 254 characters"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return []string{"email must be a valid email address"}
	}
	// The domain needs a TLD: "a@localhost" parses but is not deliverable.
	domain := email[strings.LastIndexByte(email, '@')+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return []string{"email must be a valid email address"}
	}
	return nil
}

func validatePassword(pw string) []string {
	n := utf8.RuneCountInString(pw)
	switch {
	case n < MinPasswordLength || n > MaxPasswordLength:
		return []string{"password must be between 8 and 128 characters"}
	case len(pw) > auth.MaxPasswordBytes:
		return []string{"password must be at most 72 bytes"}
	case !StrongPassword(pw):
		return []string{"password must contain a lowercase letter, an uppercase letter and a digit"}
	}
	return nil
}

func validateName(name string) []string {
	n := utf8.RuneCountInString(name)
	switch {
	case n < 1 || n > MaxNameLength:
		return []string{"name must be between 1 and 100 characters"}
	case !ValidName(name):
		return []string{"name may only contain letters, Hangul and spaces"}
	}
	return nil
}

// cleanSkills trims each skill, drops empties and enforces the list limits.
func cleanSkills(skills []string) ([]string, []string) {
	if len(skills) > MaxSkills {
		return nil, []string{"at most 50 skills are allowed"}
	}
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if utf8.RuneCountInString(s) > MaxSkillLength {
			return nil, []string{"each skill must be at most 50 characters"}
		}
		out = append(out, s)
	}
	return out, nil
}

// invalid turns collected detail messages into a validation error, or nil.
func invalid(details []string) error {
	if len(details) == 0 {
		return nil
	}
	return apperror.Invalid(details)
}
