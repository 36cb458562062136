package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// BindJSON binds and validates the request body, responding with the
// failure envelope on any bind error.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	err := ctx.ShouldBindJSON(out)

	if err != nil {
		RespondBadRequest(ctx, "Invalid request body", bindErrors(err)...)

		return false
	}

	return true
}

func bindErrors(err error) []string {
	var validatorErrors validator.ValidationErrors

	if errors.As(err, &validatorErrors) {
		out := make([]string, 0, len(validatorErrors))

		for _, fieldError := range validatorErrors {
			out = append(out, fieldMessage(fieldError))
		}

		return out
	}

	var syntaxError *json.SyntaxError

	if errors.As(err, &syntaxError) {
		return []string{"invalid JSON syntax"}
	}

	var typeError *json.UnmarshalTypeError

	if errors.As(err, &typeError) {
		return []string{fmt.Sprintf("%s must be of type %s", typeError.Field, typeError.Type.String())}
	}

	return []string{err.Error()}
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return field + " must be at least " + fe.Param()
	case "max":
		return field + " must be at most " + fe.Param()
	case "gt":
		return field + " must be greater than " + fe.Param()
	case "oneof":
		return field + " must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return field + " failed " + fe.Tag() + " validation"
	}
}
