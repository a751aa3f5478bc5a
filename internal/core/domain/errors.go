package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrRoleExists         = errors.New("role already exists")
	ErrRoleNotFound       = errors.New("role not found")
	ErrInvalidToken       = errors.New("invalid token")
	ErrMissingSecret      = errors.New("token signing secret is not configured")
	ErrWeakSecret         = errors.New("token signing secret is too short")
)

// InvalidCredentialsMessage is the only failure text a login ever returns.
const InvalidCredentialsMessage = "Username or password is wrong"

// Field error codes.
const (
	CodeRequired                        = "Required"
	CodeInvalidPayload                  = "InvalidPayload"
	CodeInvalidUserName                 = "InvalidUserName"
	CodeUserNameTooLong                 = "UserNameTooLong"
	CodeInvalidEmail                    = "InvalidEmail"
	CodeEmailTooLong                    = "EmailTooLong"
	CodeInvalidRoleName                 = "InvalidRoleName"
	CodeFullNameTooLong                 = "FullNameTooLong"
	CodeDuplicateUserName               = "DuplicateUserName"
	CodeDuplicateEmail                  = "DuplicateEmail"
	CodePasswordTooShort                = "PasswordTooShort"
	CodePasswordTooLong                 = "PasswordTooLong"
	CodePasswordRequiresDigit           = "PasswordRequiresDigit"
	CodePasswordRequiresLower           = "PasswordRequiresLower"
	CodePasswordRequiresUpper           = "PasswordRequiresUpper"
	CodePasswordRequiresNonAlphanumeric = "PasswordRequiresNonAlphanumeric"
)

// FieldError is a single human-readable problem tied to an input field.
type FieldError struct {
	Field       string `json:"field,omitempty"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ErrorKind separates malformed input from uniqueness conflicts.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindConflict
)

// ValidationError carries every field-level problem found in a request.
type ValidationError struct {
	Kind   ErrorKind
	Errors []FieldError
}

func NewValidationError(errs ...FieldError) *ValidationError {
	return &ValidationError{Kind: KindValidation, Errors: errs}
}

func NewConflictError(errs ...FieldError) *ValidationError {
	return &ValidationError{Kind: KindConflict, Errors: errs}
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Description)
	}
	return strings.Join(msgs, "; ")
}

// IsConflict reports whether the error describes a uniqueness conflict.
func (e *ValidationError) IsConflict() bool {
	return e.Kind == KindConflict
}

// StoreError wraps an unexpected persistence failure. It is never retried.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// WrapStore wraps err as a StoreError unless it already is a domain error the
// caller is expected to branch on.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	var ve *ValidationError
	if errors.As(err, &se) || errors.As(err, &ve) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
