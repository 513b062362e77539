package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware turns handler errors into the JSON envelope.
// statuses maps domain sentinel errors (matched with errors.Is) to HTTP codes.
func ErrorHandlerMiddleware(statuses map[error]int) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code := fiber.StatusInternalServerError
		message := err.Error()

		var fiberErr *fiber.Error
		var validationErr *ValidationError
		switch {
		case errors.As(err, &validationErr):
			return ctx.Status(fiber.StatusBadRequest).JSON(Response{
				Code:    fiber.StatusBadRequest,
				Message: validationErr.Error(),
				Data:    validationErr.Fields,
			})
		case errors.As(err, &fiberErr):
			code = fiberErr.Code
			message = fiberErr.Message
		default:
			for target, status := range statuses {
				if errors.Is(err, target) {
					code = status
					break
				}
			}
		}

		if code == fiber.StatusInternalServerError {
			message = "internal server error"
		}
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}
