package handlers

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/tbourn/go-lms-backend/internal/services"
)

var registerTagNames sync.Once

// useJSONFieldNames makes validator report fields by their json name so the
// details in a validation_failed response match the request body.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}

// bindJSON decodes and validates the request body into dst. On failure it
// writes the error response and returns false: malformed JSON is a
// bad_request, failed binding rules are validation_failed with details.
func bindJSON(c *gin.Context, dst any) bool {
	useJSONFieldNames()
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &verrs):
		fields := make([]services.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, services.FieldError{Field: fe.Field(), Message: ruleMessage(fe)})
		}
		failValidation(c, fields)
	case errors.As(err, &tooLarge):
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
	case errors.Is(err, io.EOF):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request body is required")
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed JSON body")
	}
	return false
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		if fe.Kind() == reflect.Slice {
			return "must have at most " + fe.Param() + " items"
		}
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}
