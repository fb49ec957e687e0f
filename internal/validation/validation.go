// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/mmeshcher/loyalty-system/internal/loyalty"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("dni", func(fl validator.FieldLevel) bool {
		return IsValidDNI(fl.Field().String())
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return v
}

// Struct проверяет структуру по тегам validate и возвращает loyalty.ValidationError для первого нарушения.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return loyalty.ValidationError{Field: fe.Field(), Message: message(fe)}
	}
	return loyalty.ValidationError{Message: err.Error()}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "dni":
		return "must be 7 to 10 digits"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "email":
		return "must be a valid email"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gtfield":
		return "must be after " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// IsValidDNI проверяет, что DNI состоит из 7–10 цифр.
func IsValidDNI(dni string) bool {
	if len(dni) < 7 || len(dni) > 10 {
		return false
	}
	for _, ch := range dni {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// NormalizeWinnerCode приводит введённый кассиром код к виду, в котором он хранится.
func NormalizeWinnerCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
