package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/JustSympa/agariki/internal/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// validateRequest returns the message for the first failing field, or "".
func validateRequest(req any) string {
	err := validate.Struct(req)
	if err == nil {
		return ""
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return "Invalid request"
	}

	fe := fieldErrors[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "uuid":
		return fmt.Sprintf("%s must be a valid id", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or greater", fe.Field(), fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", fe.Field(), fe.Param())
	case "latitude":
		return fmt.Sprintf("%s must be between -90 and 90", fe.Field())
	case "longitude":
		return fmt.Sprintf("%s must be between -180 and 180", fe.Field())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func parseActorID(c *fiber.Ctx) (uuid.UUID, error) {
	subject, ok := c.Locals("user_id").(string)
	if !ok {
		return uuid.Nil, errors.New("missing user id")
	}
	return uuid.Parse(subject)
}

func parseIDParam(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
}

// invalidInputMessage prefers the field-level message from the service.
func invalidInputMessage(err error) string {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Error()
	}
	return "Invalid request"
}
