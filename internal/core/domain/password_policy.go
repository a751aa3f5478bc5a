package domain

import (
	"fmt"
	"unicode"
)

// MinPasswordLength is applied when a policy leaves MinLength unset.
const MinPasswordLength = 2

// BcryptMaxPasswordBytes is the longest input bcrypt accepts.
const BcryptMaxPasswordBytes = 72

// PasswordPolicy describes the rules a new password must satisfy.
// MaxLength counts bytes and is unbounded when zero.
type PasswordPolicy struct {
	MinLength              int
	MaxLength              int
	RequireDigit           bool
	RequireLowercase       bool
	RequireUppercase       bool
	RequireNonAlphanumeric bool
}

// Check returns one FieldError per violated rule.
func (p PasswordPolicy) Check(password string) []FieldError {
	if password == "" {
		return []FieldError{{Field: "password", Code: CodeRequired, Description: "Password is required."}}
	}

	minLen := p.MinLength
	if minLen <= 0 {
		minLen = MinPasswordLength
	}

	var hasDigit, hasLower, hasUpper, hasOther bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case !unicode.IsLetter(r):
			hasOther = true
		}
	}

	var errs []FieldError
	if len([]rune(password)) < minLen {
		errs = append(errs, passwordError(CodePasswordTooShort, fmt.Sprintf("Passwords must be at least %d characters.", minLen)))
	}
	if p.MaxLength > 0 && len(password) > p.MaxLength {
		errs = append(errs, PasswordTooLong(p.MaxLength))
	}
	if p.RequireNonAlphanumeric && !hasOther {
		errs = append(errs, passwordError(CodePasswordRequiresNonAlphanumeric, "Passwords must have at least one non alphanumeric character."))
	}
	if p.RequireDigit && !hasDigit {
		errs = append(errs, passwordError(CodePasswordRequiresDigit, "Passwords must have at least one digit ('0'-'9')."))
	}
	if p.RequireLowercase && !hasLower {
		errs = append(errs, passwordError(CodePasswordRequiresLower, "Passwords must have at least one lowercase ('a'-'z')."))
	}
	if p.RequireUppercase && !hasUpper {
		errs = append(errs, passwordError(CodePasswordRequiresUpper, "Passwords must have at least one uppercase ('A'-'Z')."))
	}
	return errs
}

func passwordError(code, description string) FieldError {
	return FieldError{Field: "password", Code: code, Description: description}
}

// PasswordTooLong is reported when a password exceeds max bytes.
func PasswordTooLong(max int) FieldError {
	return passwordError(CodePasswordTooLong, fmt.Sprintf("Passwords must be at most %d bytes.", max))
}
