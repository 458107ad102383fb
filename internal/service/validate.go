package service

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	usernameMin = 5
	usernameMax = 30
	nameMax     = 30
	passwordMin = 8
	passwordMax = 25

	// bcrypt rejects longer input
	passwordMaxBytes = 72
)

var (
	hasLower = regexp.MustCompile(`[a-z]`)
	hasUpper = regexp.MustCompile(`[A-Z]`)
	hasDigit = regexp.MustCompile(`[0-9]`)
)

type RegisterInput struct {
	Username        string `json:"username"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func validateRegister(in RegisterInput) error {
	if err := validateUsername(in.Username); err != nil {
		return err
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(in.Name)); n == 0 || n > nameMax {
		return validationErr("name is required and must be at most 30 characters")
	}
	if !validEmail(in.Email) {
		return validationErr("email must be a valid email address")
	}
	if err := validatePassword(in.Password); err != nil {
		return err
	}
	if in.ConfirmPassword != in.Password {
		return validationErr("confirmPassword must match password")
	}
	return nil
}

func validateLogin(username, password string) error {
	if err := validateUsername(username); err != nil {
		return err
	}
	return validatePassword(password)
}

func validateUsername(username string) error {
	if n := utf8.RuneCountInString(username); n < usernameMin || n > usernameMax {
		return validationErr("username must be between 5 and 30 characters")
	}
	return nil
}

func validatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < passwordMin || n > passwordMax ||
		!hasLower.MatchString(password) || !hasUpper.MatchString(password) || !hasDigit.MatchString(password) {
		return validationErr("password must be 8-25 characters with at least one lowercase letter, one uppercase letter and one digit")
	}
	if len(password) > passwordMaxBytes {
		return validationErr("password must be at most 72 bytes")
	}
	return nil
}

// validEmail accepts a bare addr-spec whose domain has a dot.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}
