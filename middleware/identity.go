package middleware

import (
	"github.com/gofiber/fiber/v2"

	"rental-messenger/model"
)

const identityKey = "identity"

// Identity returns the participant authenticated by JWT.
func Identity(c *fiber.Ctx) model.Identity {
	identity, _ := c.Locals(identityKey).(model.Identity)
	return identity
}

// Owner guards /:kind/:id routes: participants only reach their own resources.
func Owner() fiber.Handler {
	return func(c *fiber.Ctx) error {
		target, err := model.ParseIdentity(c.Params("kind"), c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).
				JSON(fiber.Map{
					"status":  "error",
					"message": "Invalid identity",
					"data":    nil,
				})
		}

		if target != Identity(c) {
			return c.Status(fiber.StatusForbidden).
				JSON(fiber.Map{
					"status":  "error",
					"message": "Forbidden",
					"data":    nil,
				})
		}

		return c.Next()
	}
}
