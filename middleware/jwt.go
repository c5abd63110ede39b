package middleware

import (
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"rental-messenger/utils"
)

func JWT(key string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{
			JWTAlg: "HS512",
			Key:    []byte(key),
		},
		SuccessHandler: func(c *fiber.Ctx) error {
			token := c.Locals("user").(*jwt.Token)
			identity, err := utils.ClaimsIdentity(token.Claims.(jwt.MapClaims))
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).
					JSON(fiber.Map{
						"status":  "error",
						"message": "Invalid token identity",
						"data":    nil,
					})
			}
			c.Locals(identityKey, identity)
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if err.Error() == "Missing or malformed JWT" {
				return c.Status(fiber.StatusBadRequest).
					JSON(fiber.Map{
						"status":  "error",
						"message": "Missing or malformed JWT",
						"data":    nil,
					})
			}
			return c.Status(fiber.StatusUnauthorized).
				JSON(fiber.Map{
					"status":  "error",
					"message": "Invalid or expired JWT",
					"data":    nil,
				})
		},
	})
}
