package controller

import "github.com/gofiber/fiber/v2"

func success(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data":    data,
	})
}

func failure(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  "error",
		"message": message,
		"data":    nil,
	})
}
