package validation

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestDefaultMessage(t *testing.T) {
	tests := []struct {
		name  string
		field string
		tag   string
		param string
		want  string
	}{
		{name: "Required", field: "Email", tag: "required", want: "email must not be empty"},
		{name: "Email format", field: "Email", tag: "email", want: "email must be a valid email address"},
		{name: "Min length", field: "Password", tag: "min", param: "8", want: "password must be at least 8 characters"},
		{name: "Max length", field: "Username", tag: "max", param: "30", want: "username must be at most 30 characters"},
		{name: "Alphanumeric", field: "Username", tag: "alphanum", want: "username may only contain letters and digits"},
		{name: "Field equality", field: "ConfirmPassword", tag: "eqfield", param: "NewPassword", want: "confirmpassword must match newpassword"},
		{name: "Unknown tag", field: "FullName", tag: "customthing", want: "fullname is invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultMessage(tt.field, tt.tag, tt.param); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFormatBindingError(t *testing.T) {
	t.Run("Non-validator error", func(t *testing.T) {
		messages := FormatBindingError(errors.New("unexpected EOF"))
		if len(messages) != 1 || messages[0] != "unexpected EOF" {
			t.Errorf("Expected single raw message, got %v", messages)
		}
	})

	t.Run("Validator errors", func(t *testing.T) {
		type form struct {
			Email    string `validate:"required,email"`
			Password string `validate:"required,min=8"`
		}

		err := validator.New().Struct(form{Email: "not-an-email", Password: "short"})
		if err == nil {
			t.Fatal("Expected validation to fail")
		}

		messages := FormatBindingError(err)
		if len(messages) != 2 {
			t.Fatalf("Expected two messages, got %v", messages)
		}
		if messages[0] != "email must be a valid email address" {
			t.Errorf("Unexpected first message: %q", messages[0])
		}
		if messages[1] != "password must be at least 8 characters" {
			t.Errorf("Unexpected second message: %q", messages[1])
		}
	})
}
