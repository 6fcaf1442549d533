// Package validation normalizes and checks user input before it reaches the store.
package validation

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/mikepea/clubhouse/pkg/clubhouse/models"
)

// MaxNameLength bounds club and student names, in runes
const MaxNameLength = 100

var validate = validator.New()

// NormalizeEmail trims and lowercases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email, after normalization, is a syntactically valid address
func ValidEmail(email string) bool {
	return validate.Var(NormalizeEmail(email), "required,email") == nil
}

// ValidName reports whether name is non-blank, within MaxNameLength and free of control characters
func ValidName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return false
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// ValidRole reports whether role is a catalog role
func ValidRole(role string) bool {
	return models.IsValidRole(role)
}

// Register adds the clubhouse-specific tags to v:
//
//	clubrole   - value is a catalog role ("Vice President" contains a space, so oneof cannot express it)
//	personname - value passes ValidName
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("clubrole", func(fl validator.FieldLevel) bool {
		return ValidRole(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return ValidName(fl.Field().String())
	})
}

var registerOnce sync.Once

// RegisterGin registers the custom tags on gin's binding validator. Safe to call repeatedly.
func RegisterGin() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			if err := Register(v); err != nil {
				panic(err)
			}
		}
	})
}
