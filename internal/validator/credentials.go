// Package validator holds the input-shape checks shared by the procedure
// handlers and the server-rendered pages.  Both sides call the same
// functions so client and server validation cannot drift apart.
package validator

import (
	"errors"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"
)

// Credentials is the email/password pair used by sign-up and sign-in.
type Credentials struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=8"`
}

// FieldError describes one invalid field in a human-readable way.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors is returned when one or more fields fail validation.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	msgs := make([]string, 0, len(fe))
	for _, f := range fe {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// First returns the message of the first failing field, or "" when empty.
func (fe FieldErrors) First() string {
	if len(fe) == 0 {
		return ""
	}
	return fe[0].Message
}

var validate = newValidate()

func newValidate() *playground.Validate {
	v := playground.New()
	// report json field names instead of Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// messages maps field+tag to the text shown to users.
var messages = map[string]string{
	"email.required":    "Email is required",
	"email.email":       "Invalid email",
	"password.required": "Password must be at least 8 characters long",
	"password.min":      "Password must be at least 8 characters long",
}

// ValidateCredentials normalises the email (trim + lower case) and checks
// the pair.  It returns nil or a FieldErrors value.
func ValidateCredentials(c *Credentials) error {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	return Struct(c)
}

// Struct validates any struct carrying `validate` tags and converts the
// library's errors into FieldErrors.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs playground.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fe.Field() + " is invalid"
		}
		out = append(out, FieldError{Field: fe.Field(), Message: msg})
	}
	return out
}
