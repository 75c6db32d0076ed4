package auth

import (
	"strings"
	"unicode"

	"duo-chat/errors"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

var (
	validate  = validator.New()
	sanitizer = bluemonday.StrictPolicy()
)

type RegisterRequest struct {
	Name       string `json:"name" validate:"required,max=64"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=12,max=72"`
	ProfilePic string `json:"profilePic" validate:"omitempty,url,max=2048"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}

	if !isPasswordComplex(req.Password) {
		return errors.ErrInvalidPassword
	}
	return nil
}

// SanitizeRegister strips markup from the profile fields other users will see.
func SanitizeRegister(req RegisterRequest) RegisterRequest {
	req.Name = strings.TrimSpace(sanitizer.Sanitize(req.Name))
	req.Email = strings.TrimSpace(req.Email)
	req.ProfilePic = strings.TrimSpace(req.ProfilePic)
	return req
}

func ValidateLogin(req LoginRequest) error {
	return validate.Struct(req)
}

func isPasswordComplex(s string) bool {
	var (
		hasUpper   = false
		hasLower   = false
		hasNumber  = false
		hasSpecial = false
	)
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasNumber && hasSpecial
}
