package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/mentor-match/internal/apperror"
	"github.com/sakif/mentor-match/internal/auth"
	"github.com/sakif/mentor-match/internal/model"
	"github.com/sakif/mentor-match/internal/service"
)

// REQUEST SCHEMAS:
// Every JSON body is decoded into one of these structs and validated with
// go-playground/validator before a service sees it. The services re-check the
// same rules, so these tags are about giving the client a complete list of
// problems in one 400 rather than about safety.

type signupRequest struct {
	Email    string `json:"email"    validate:"required,min=5,max=254,email"`
	Password string `json:"password" validate:"required,min=8,max=128,strongpw"`
	Name     string `json:"name"     validate:"required,min=1,max=100,personname"`
	Role     string `json:"role"     validate:"required,oneof=mentor mentee"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	Name       *string  `json:"name"       validate:"omitempty,max=100,personname"`
	Bio        *string  `json:"bio"        validate:"omitempty,max=1000"`
	Skills     []string `json:"skills"     validate:"omitempty,max=50,dive,max=50"`
	Experience *int     `json:"experience" validate:"omitempty,min=0"`
	HourlyRate *float64 `json:"hourlyRate" validate:"omitempty,min=0"`
	Image      *string  `json:"image"`
}

type createMatchRequest struct {
	MentorID string `json:"mentorId" validate:"required"`
	Message  string `json:"message"  validate:"max=500"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name ("hourlyRate", not "HourlyRate").
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "strongpw", func(fl validator.FieldLevel) bool {
		return service.StrongPassword(fl.Field().String())
	})
	mustRegister(v, "personname", func(fl validator.FieldLevel) bool {
		return service.ValidName(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("handler: registering %s validator: %v", tag, err))
	}
}

// decodeJSON reads the body into dst and validates it.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return apperror.ValidationFailed("body", "request body must be valid JSON")
	}
	return validateStruct(dst)
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("handler: validating request: %w", err)
	}

	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldMessage(fe))
	}
	return apperror.Invalid(details)
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	unit := ""
	switch fe.Kind() {
	case reflect.String:
		unit = " characters"
	case reflect.Slice:
		unit = " items"
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", field, fe.Param(), unit)
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", field, fe.Param(), unit)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "strongpw":
		return field + " must contain a lowercase letter, an uppercase letter and a digit"
	case "personname":
		return field + " may only contain letters, Hangul and spaces"
	}
	return field + " is invalid"
}

// callerFrom returns the authenticated caller. RequireAuth guarantees it is
// present on protected routes; a missing caller is treated as unauthenticated.
func callerFrom(r *http.Request) (model.Caller, error) {
	c, ok := auth.CallerFromContext(r.Context())
	if !ok {
		return model.Caller{}, apperror.Unauthorized("access token required")
	}
	return c, nil
}
