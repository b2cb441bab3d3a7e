package service

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("hasdigit", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if r >= '0' && r <= '9' {
				return true
			}
		}
		return false
	})
	return v
}

// accountFields are the user supplied fields shared by registration and
// account updates. Lengths count runes.
type accountFields struct {
	FirstName string `validate:"max=100"`
	LastName  string `validate:"max=100"`
	Username  string `validate:"required,max=30"`
	Password  string `validate:"min=7,max=30,hasdigit"`
}

// validateAccount maps a rule violation onto a service error. Username
// problems win over password problems, which win over names.
func validateAccount(f accountFields) error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	failed := make(map[string]bool, len(verrs))
	for _, fe := range verrs {
		failed[fe.StructField()] = true
	}
	switch {
	case failed["Username"]:
		return ErrInvalidUsername
	case failed["Password"]:
		return ErrInvalidPassword
	default:
		return ErrInvalidName
	}
}
