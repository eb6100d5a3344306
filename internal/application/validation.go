package application

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
)

// MaxFeedbackLength caps the number of characters in a feedback message.
const MaxFeedbackLength = 500

// AnonymousUser is recorded as the author of every feedback message.
const AnonymousUser = "anonymous"

const secretSpecials = "@$!%*?&"

var (
	emailPattern     = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@(.+)$`)
	studentIDPattern = regexp.MustCompile(`^[01]\d{7}$`)
)

// IsValidUsername reports whether value is an email address or an eight digit
// student id starting with 0 or 1.
func IsValidUsername(value string) bool {
	return emailPattern.MatchString(value) || studentIDPattern.MatchString(value)
}

// IsValidEmail reports whether value looks like an email address.
func IsValidEmail(value string) bool {
	return emailPattern.MatchString(value)
}

// IsStrongSecret reports whether value has at least eight characters drawn
// from ASCII letters, digits and @$!%*?&, including at least one of each
// class.
func IsStrongSecret(value string) bool {
	if len(value) < 8 {
		return false
	}
	var upper, lower, digit, special bool
	for _, r := range value {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(secretSpecials, r):
			special = true
		default:
			return false
		}
	}
	return upper && lower && digit && special
}

// NormalizeLocale parses a BCP 47 tag and returns its canonical form.
func NormalizeLocale(value string) (string, bool) {
	tag, err := language.Parse(strings.TrimSpace(value))
	if err != nil || tag == language.Und {
		return "", false
	}
	return tag.String(), true
}

var validate = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	registerValidations(v, customValidations)
	return v
})

var customValidations = map[string]validator.Func{
	"username": func(fl validator.FieldLevel) bool {
		return IsValidUsername(fl.Field().String())
	},
	"emailaddr": func(fl validator.FieldLevel) bool {
		return IsValidEmail(fl.Field().String())
	},
	"strongsecret": func(fl validator.FieldLevel) bool {
		return IsStrongSecret(fl.Field().String())
	},
	"locale": func(fl validator.FieldLevel) bool {
		_, ok := NormalizeLocale(fl.Field().String())
		return ok
	},
	"notblank": func(fl validator.FieldLevel) bool {
		return strings.TrimFunc(fl.Field().String(), unicode.IsSpace) != ""
	},
	"maxrunes": func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(fl.Field().String()) <= MaxFeedbackLength
	},
}

// registerValidations panics on a rejected tag: the rules are fixed at build
// time, so a failure here is a programming error.
func registerValidations(v *validator.Validate, rules map[string]validator.Func) {
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register validation %q: %v", tag, err))
		}
	}
}

var tagMessages = map[string]string{
	"required":     "is required",
	"notblank":     "must not be blank",
	"username":     "must be an email address or an 8 digit student id",
	"emailaddr":    "must be a valid email address",
	"strongsecret": "must be at least 8 characters with upper and lower case letters, a digit and one of @$!%*?&",
	"locale":       "must be a valid language tag",
	"maxrunes":     "must be at most 500 characters",
	"oneof":        "is not a recognised value",
}

// validateStruct runs the struct tags on req and converts failures into a
// ValidationError keyed by json field name.
func validateStruct(req any) *ValidationError {
	vErr := &ValidationError{}
	err := validate().Struct(req)
	if err == nil {
		return vErr
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		vErr.add("request", err.Error())
		return vErr
	}
	for _, fe := range fieldErrs {
		msg, known := tagMessages[fe.Tag()]
		if !known {
			msg = "is invalid"
		}
		vErr.add(fe.Field(), msg)
	}
	return vErr
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Secret     string `json:"secret" validate:"required"`
}

type registerRequest struct {
	ID          string `json:"id" validate:"omitempty,username"`
	DisplayName string `json:"display_name" validate:"notblank"`
	Email       string `json:"email" validate:"required,emailaddr"`
	Secret      string `json:"secret" validate:"required,strongsecret"`
}

type profileRequest struct {
	DisplayName *string `json:"display_name" validate:"omitnil,notblank"`
	Email       *string `json:"email" validate:"omitnil,emailaddr"`
	Secret      *string `json:"secret" validate:"omitnil,strongsecret"`
	Locale      *string `json:"locale" validate:"omitnil,locale"`
}

type eventRequest struct {
	Title string `json:"title" validate:"notblank"`
}

type feedbackRequest struct {
	Message string `json:"message" validate:"notblank,maxrunes"`
}

type broadcastRequest struct {
	Content string `json:"content" validate:"notblank"`
	Role    string `json:"role" validate:"required,oneof=ADMIN PROFESSOR STUDENT"`
}
