package middleware

import (
	"github.com/casbin/casbin/v2"
	"github.com/gofiber/fiber/v2"
)

// RBAC checks the identity kind against the casbin policy for the request path and method.
func RBAC(enforcer casbin.IEnforcer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := Identity(c)

		accepted, err := enforcer.Enforce(string(identity.Kind), c.Path(), c.Method())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status":  "error",
				"message": "Internal server error",
				"data":    nil,
			})
		}

		if !accepted {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"status":  "error",
				"message": "Unauthorized",
				"data":    nil,
			})
		}

		return c.Next()
	}
}
