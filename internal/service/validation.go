package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/enrollment-service/pkg/util/errorutil"
)

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// studentInput is the normalized form of StudentFields. Field order decides
// which error is reported first.
type studentInput struct {
	Name           string    `json:"name" validate:"required,min=2"`
	Email          string    `json:"email" validate:"required,email"`
	Course         string    `json:"course" validate:"required"`
	EnrollmentDate time.Time `json:"enrollment_date" validate:"required"`
}

type registration struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// normalize trims text and lowercases the email. supplied holds the Go
// names of the non-nil fields.
func normalize(fields StudentFields) (studentInput, map[string]bool) {
	var in studentInput
	supplied := map[string]bool{}
	if fields.Name != nil {
		in.Name = strings.TrimSpace(*fields.Name)
		supplied["Name"] = true
	}
	if fields.Email != nil {
		in.Email = normalizeEmail(*fields.Email)
		supplied["Email"] = true
	}
	if fields.Course != nil {
		in.Course = strings.TrimSpace(*fields.Course)
		supplied["Course"] = true
	}
	if fields.EnrollmentDate != nil {
		if !fields.EnrollmentDate.IsZero() {
			in.EnrollmentDate = dateOnly(*fields.EnrollmentDate)
		}
		supplied["EnrollmentDate"] = true
	}
	return in, supplied
}

// validateSupplied checks only the fields present in supplied.
func validateSupplied(in studentInput, supplied map[string]bool) error {
	err := validate.StructFiltered(in, func(ns []byte) bool {
		field := string(ns)
		if i := strings.LastIndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		return !supplied[field]
	})
	return firstFieldError(err)
}

func validateStruct(value any) error {
	return firstFieldError(validate.Struct(value))
}

// firstFieldError turns the first failed rule into a field-scoped validation error.
func firstFieldError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.NewInternalError(err)
	}
	fe := verrs[0]
	return apperrors.NewFieldError(fe.Field(), describe(fe))
}

func describe(fe validator.FieldError) string {
	label := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}
