package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrValidation marks credentials rejected by the sign-up rules.
var ErrValidation = errors.New("validation failed")

const passwordSpecials = "-()[]_!?"

var usernamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Credentials is the body of sign-up and sign-in requests. The tags hold
// the sign-up rules; sign-in only needs both fields present.
type Credentials struct {
	Username string `json:"username" validate:"required,min=4,max=20,username"`
	Password string `json:"password" validate:"required,min=6,max=72,password"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("username", validateUsername); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("password", validatePassword); err != nil {
		panic(err)
	}
}

func validateUsername(fl validator.FieldLevel) bool {
	return usernamePattern.MatchString(fl.Field().String())
}

// validatePassword requires an upper-case letter, a digit and one of the
// special characters.
func validatePassword(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	return strings.ContainsFunc(p, func(r rune) bool { return r >= 'A' && r <= 'Z' }) &&
		strings.ContainsFunc(p, func(r rune) bool { return r >= '0' && r <= '9' }) &&
		strings.ContainsAny(p, passwordSpecials)
}

// Validate checks c against the sign-up rules.
func (c Credentials) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s", ErrValidation, describe(verrs[0]))
		}
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// describe turns a field error into a message safe to show to the client.
// Password values are never echoed.
func describe(e validator.FieldError) string {
	field := strings.ToLower(e.Field())
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "username":
		return "username may only contain letters, digits and underscores and must not start with a digit"
	case "password":
		return "password must contain an upper-case letter, a digit and one of " + passwordSpecials
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
