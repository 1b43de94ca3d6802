package validator

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidAddress  = errors.New("invalid address")
	ErrInvalidHash     = errors.New("invalid transaction hash")
	ErrInvalidURL      = errors.New("invalid link")
)

var (
	emailRegex   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	addressRegex = regexp.MustCompile(`^[A-Za-z0-9:_\-]{10,128}$`)
	hashRegex    = regexp.MustCompile(`^(0x)?[A-Za-z0-9]{16,128}$`)
	linkRegex    = regexp.MustCompile(`^https?://\S+$`)
)

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > 80 {
		return ErrInvalidName
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrInvalidPassword
	}
	return nil
}

// ValidateAddress accepts the usual wallet address shapes. It does not
// check the address against any chain.
func ValidateAddress(address string) error {
	if !addressRegex.MatchString(address) {
		return ErrInvalidAddress
	}
	return nil
}

func ValidateTxHash(hash string) error {
	if !hashRegex.MatchString(hash) {
		return ErrInvalidHash
	}
	return nil
}

func ValidateLink(link string) error {
	if len(link) > 2048 || !linkRegex.MatchString(link) {
		return ErrInvalidURL
	}
	return nil
}
