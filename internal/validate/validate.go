// Package validate holds the input format rules shared by the user and auth
// handlers.
package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	passwordMinLen  = 8
	passwordMaxLen  = 20
	passwordSpecial = "@$!%*?&"
)

var (
	emailRegex    = regexp.MustCompile(`^[0-9a-zA-Z]([-_.]?[0-9a-zA-Z])*@[0-9a-zA-Z]([-_.]?[0-9a-zA-Z])*\.[a-zA-Z]{2,3}$`)
	nicknameRegex = regexp.MustCompile(`^[가-힣a-zA-Z0-9]{2,10}$`)
)

func Email(email string) bool {
	return email != "" && emailRegex.MatchString(email)
}

// Password requires 8 to 20 characters drawn from ASCII letters, digits and
// @$!%*?&, with at least one lowercase, uppercase, digit and special
// character.
func Password(password string) bool {
	if len(password) < passwordMinLen || len(password) > passwordMaxLen {
		return false
	}

	var lower, upper, digit, special bool
	for i := 0; i < len(password); i++ {
		c := password[i]
		switch {
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= '0' && c <= '9':
			digit = true
		case strings.IndexByte(passwordSpecial, c) >= 0:
			special = true
		default:
			return false
		}
	}
	return lower && upper && digit && special
}

func Nickname(nickname string) bool {
	return nickname != "" && nicknameRegex.MatchString(nickname)
}

// Length reports whether s has between min and max characters.
func Length(s string, min, max int) bool {
	if !utf8.ValidString(s) {
		return false
	}
	n := utf8.RuneCountInString(s)
	return n >= min && n <= max
}
