package domain

import (
	"fmt"
	"strings"
	"time"
)

// allowedUsernameChars mirrors the character set accepted for account names.
const allowedUsernameChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-._@+"

// Storage widths of the account columns.
const (
	MaxUsernameLength = 256
	MaxEmailLength    = 256
	MaxFullNameLength = 150
)

// User models a registered account.
type User struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username"`
	NormalizedUsername string    `json:"-"`
	Email              string    `json:"email,omitempty"`
	NormalizedEmail    string    `json:"-"`
	FullName           string    `json:"fullName,omitempty"`
	PasswordHash       string    `json:"-"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Normalize returns the lookup key used for usernames, emails and role names.
// Uniqueness is enforced on this form, which makes lookups case-insensitive.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NewUser builds a user record with its normalized lookup keys populated.
func NewUser(username, fullName, email, passwordHash string, now time.Time) *User {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	return &User{
		Username:           username,
		NormalizedUsername: Normalize(username),
		Email:              email,
		NormalizedEmail:    Normalize(email),
		FullName:           strings.TrimSpace(fullName),
		PasswordHash:       passwordHash,
		CreatedAt:          now.UTC(),
	}
}

// ValidateUsername reports the rules a username breaks, if any.
func ValidateUsername(username string) []FieldError {
	username = strings.TrimSpace(username)
	if username == "" {
		return []FieldError{{Field: "username", Code: CodeRequired, Description: "Username is required."}}
	}
	if len([]rune(username)) > MaxUsernameLength {
		return []FieldError{{
			Field:       "username",
			Code:        CodeUserNameTooLong,
			Description: fmt.Sprintf("Username must be at most %d characters.", MaxUsernameLength),
		}}
	}
	for _, r := range username {
		if !strings.ContainsRune(allowedUsernameChars, r) {
			return []FieldError{{
				Field:       "username",
				Code:        CodeInvalidUserName,
				Description: fmt.Sprintf("Username '%s' is invalid, can only contain letters or digits.", username),
			}}
		}
	}
	return nil
}

// DuplicateUsername is the conflict reported when a username is taken.
func DuplicateUsername(username string) FieldError {
	return FieldError{
		Field:       "username",
		Code:        CodeDuplicateUserName,
		Description: fmt.Sprintf("Username '%s' is already taken.", strings.TrimSpace(username)),
	}
}

// DuplicateEmail is the conflict reported when an email is taken.
func DuplicateEmail(email string) FieldError {
	return FieldError{
		Field:       "email",
		Code:        CodeDuplicateEmail,
		Description: fmt.Sprintf("Email '%s' is already taken.", strings.TrimSpace(email)),
	}
}
