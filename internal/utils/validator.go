package utils

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/brightclass/cbt-service/internal/errors"
	"github.com/brightclass/cbt-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground struct validation plus the custom rules
// this service uses on request payloads.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	validate := validator.New()
	registerCustomValidators(validate)
	return &Validator{validate: validate}
}

// Validate checks struct tags and converts failures into the shared
// ValidationErrors type.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		if ve := apperrors.ToValidationErrors(err); len(ve) > 0 {
			return ve
		}
		return err
	}
	return nil
}

var academicYearPattern = regexp.MustCompile(`^\d{4}-\d{4}$`)

// ValidateTerm implements the "term" tag.
func ValidateTerm(fl validator.FieldLevel) bool {
	return models.Term(fl.Field().String()).Valid()
}

// ValidateAcademicYear implements the "academic_year" tag: YYYY-YYYY with
// consecutive years, e.g. "2024-2025".
func ValidateAcademicYear(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if !academicYearPattern.MatchString(value) {
		return false
	}
	first, _ := strconv.Atoi(value[:4])
	second, _ := strconv.Atoi(value[5:])
	return second == first+1
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("term", ValidateTerm)
	validate.RegisterValidation("academic_year", ValidateAcademicYear)

	// Report json field names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
