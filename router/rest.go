package router

import (
	"github.com/casbin/casbin/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"rental-messenger/controller"
	"rental-messenger/middleware"
)

func Rest(app *fiber.App, chat *controller.Chat, profile *controller.Profile, jwtKey string, enforcer casbin.IEnforcer) {
	api := app.Group("/v1", logger.New())

	// Chat
	messages := api.Group("/chat", middleware.JWT(jwtKey), middleware.RBAC(enforcer))
	messages.Post("/message", chat.Send)
	messages.Get("/history", chat.History)
	messages.Post("/read", chat.MarkRead)
	messages.Get("/messages/:kind/:id", middleware.Owner(), chat.Messages)
	messages.Get("/unread/:kind/:id", middleware.Owner(), chat.UnreadCount)
	messages.Get("/unread/:kind/:id/senders", middleware.Owner(), chat.UnreadBySender)
	messages.Get("/sessions/:kind/:id", middleware.Owner(), chat.Sessions)

	// Profiles
	profiles := api.Group("/profiles", middleware.JWT(jwtKey), middleware.RBAC(enforcer))
	profiles.Post("/lookup", profile.Lookup)
	profiles.Put("/me", profile.SaveMine)
}
