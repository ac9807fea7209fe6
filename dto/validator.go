package dto

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var periodKeyRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func init() {
	validate = validator.New()
	validate.RegisterValidation("period_key", validatePeriodKey)
}

func GetValidator() *validator.Validate {
	return validate
}

// Period keys are calendar dates: the day itself for daily challenges, the
// Monday of the week for weekly ones.
func validatePeriodKey(fl validator.FieldLevel) bool {
	return periodKeyRegex.MatchString(fl.Field().String())
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func FormatValidationErrors(err error) []ValidationError {
	var errors []ValidationError

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrors {
			var message string

			switch fieldError.Tag() {
			case "required":
				message = fieldError.Field() + " is required"
			case "gte":
				message = fieldError.Field() + " must be at least " + fieldError.Param()
			case "lte":
				message = fieldError.Field() + " must be at most " + fieldError.Param()
			case "oneof":
				message = fieldError.Field() + " must be one of: " + fieldError.Param()
			case "period_key":
				message = fieldError.Field() + " must be a YYYY-MM-DD date"
			default:
				message = fieldError.Field() + " is invalid"
			}

			errors = append(errors, ValidationError{
				Field:   fieldError.Field(),
				Message: message,
			})
		}
	}

	return errors
}
