package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/usermanagement/account-api/internal/core/domain"
)

// echoValidator wraps go-playground/validator so Echo can call c.Validate(req).
type echoValidator struct {
	v *validator.Validate
}

// NewValidator returns an echoValidator ready to be assigned to echo.Echo.Validator.
// Field errors are reported under the request's JSON names.
func NewValidator() *echoValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &echoValidator{v: v}
}

// Validate satisfies the echo.Validator interface. Rule violations come back
// as a *domain.ValidationError.
func (ev *echoValidator) Validate(i any) error {
	if err := ev.v.Struct(i); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			errs := make([]domain.FieldError, 0, len(ve))
			for _, fe := range ve {
				errs = append(errs, fieldError(fe))
			}
			return domain.NewValidationError(errs...)
		}
		return err
	}
	return nil
}

// fieldError converts a single validator failure into a field-level error.
func fieldError(fe validator.FieldError) domain.FieldError {
	field := fe.Field()
	label := displayName(field)

	switch fe.Tag() {
	case "required":
		return domain.FieldError{Field: field, Code: domain.CodeRequired, Description: label + " is required."}
	case "email":
		return domain.FieldError{
			Field:       field,
			Code:        domain.CodeInvalidEmail,
			Description: fmt.Sprintf("Email '%v' is invalid.", fe.Value()),
		}
	case "max":
		code := domain.CodeInvalidPayload
		switch field {
		case "username":
			code = domain.CodeUserNameTooLong
		case "email":
			code = domain.CodeEmailTooLong
		case "fullName":
			code = domain.CodeFullNameTooLong
		}
		return domain.FieldError{
			Field:       field,
			Code:        code,
			Description: fmt.Sprintf("%s must be at most %s characters.", label, fe.Param()),
		}
	default:
		return domain.FieldError{
			Field:       field,
			Code:        domain.CodeInvalidPayload,
			Description: fmt.Sprintf("%s failed validation (%s).", label, fe.Tag()),
		}
	}
}

// displayName turns "fullName" into "Full name".
func displayName(field string) string {
	if field == "" {
		return "Value"
	}
	var b strings.Builder
	for i, r := range field {
		switch {
		case i == 0:
			b.WriteString(strings.ToUpper(string(r)))
		case r >= 'A' && r <= 'Z':
			b.WriteByte(' ')
			b.WriteString(strings.ToLower(string(r)))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
