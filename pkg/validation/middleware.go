package validation

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// bodyKey is the fiber.Ctx locals key holding the validated request body.
const bodyKey = "validation.body"

// ValidateJSON returns a Fiber handler that decodes the request body into a T,
// validates it and stores it for BodyFrom. Invalid bodies are answered with 400
// and the list of field errors.
func ValidateJSON[T any]() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body T
		if err := c.BodyParser(&body); err != nil {
			return writeErrorResponse(c, fiber.StatusBadRequest, ValidationErrors{{
				Field:   "request_body",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			}})
		}
		if err := ValidateStruct(&body); err != nil {
			if verrs, ok := AsValidationErrors(err); ok {
				return writeErrorResponse(c, fiber.StatusBadRequest, verrs)
			}
			return writeErrorResponse(c, fiber.StatusBadRequest, ValidationErrors{{
				Field:   "request_body",
				Message: err.Error(),
			}})
		}
		c.Locals(bodyKey, &body)
		return c.Next()
	}
}

// ValidateParams checks route parameters against validator tags, e.g.
// {"id": "session_id"}.
func ValidateParams(rules map[string]string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var errs ValidationErrors
		for param, tag := range rules {
			value := c.Params(param)
			if err := Validate.Var(value, tag); err != nil {
				errs = append(errs, ValidationError{
					Field:   param,
					Value:   value,
					Message: fmt.Sprintf("invalid path parameter (%s)", tag),
				})
			}
		}
		if len(errs) > 0 {
			return writeErrorResponse(c, fiber.StatusBadRequest, errs)
		}
		return c.Next()
	}
}

// BodyFrom returns the body stored by ValidateJSON.
func BodyFrom[T any](c *fiber.Ctx) (*T, bool) {
	body, ok := c.Locals(bodyKey).(*T)
	return body, ok
}

// writeErrorResponse writes validation errors as JSON response
func writeErrorResponse(c *fiber.Ctx, status int, errs ValidationErrors) error {
	return c.Status(status).JSON(errorResponse{Errors: errs, Count: len(errs)})
}
