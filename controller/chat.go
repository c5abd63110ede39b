package controller

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"rental-messenger/middleware"
	"rental-messenger/model"
)

const (
	defaultPage = 1
	defaultSize = 20
	maxSize     = 100
)

type Sender interface {
	Send(ctx context.Context, req model.SendMessageRequest) (model.Message, error)
}

type ChatStore interface {
	History(ctx context.Context, a, b model.Identity, page, size int) ([]model.Message, error)
	ForIdentity(ctx context.Context, identity model.Identity) ([]model.Message, error)
	MarkRead(ctx context.Context, receiver, sender model.Identity) error
	UnreadCount(ctx context.Context, receiver model.Identity) (int, error)
	UnreadBySender(ctx context.Context, receiver model.Identity) ([]model.UnreadBySender, error)
	Sessions(ctx context.Context, identity model.Identity) ([]model.ChatSession, error)
}

type Chat struct {
	sender Sender
	store  ChatStore
	log    *slog.Logger
}

func NewChat(sender Sender, store ChatStore, log *slog.Logger) *Chat {
	return &Chat{sender: sender, store: store, log: log}
}

func (h *Chat) Send(c *fiber.Ctx) error {
	input := new(model.SendMessageRequest)
	if err := c.BodyParser(input); err != nil {
		return failure(c, fiber.StatusBadRequest, "Review your input")
	}
	if input.Sender() != middleware.Identity(c) {
		return failure(c, fiber.StatusForbidden, "Sender must be the caller")
	}

	msg, err := h.sender.Send(c.UserContext(), *input)
	if errors.Is(err, model.ErrInvalidMessage) {
		return failure(c, fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		h.log.Error("Send failed", "sender", input.Sender().String(), "error", err)
		return failure(c, fiber.StatusInternalServerError, "Internal server error")
	}
	return success(c, msg)
}

// History serves one page of a two-party exchange the caller takes part in.
func (h *Chat) History(c *fiber.Ctx) error {
	sender, err := model.ParseIdentity(c.Query("senderType"), c.Query("senderId"))
	if err != nil {
		return failure(c, fiber.StatusBadRequest, "Invalid sender")
	}
	receiver, err := model.ParseIdentity(c.Query("receiverType"), c.Query("receiverId"))
	if err != nil {
		return failure(c, fiber.StatusBadRequest, "Invalid receiver")
	}
	caller := middleware.Identity(c)
	if caller != sender && caller != receiver {
		return failure(c, fiber.StatusForbidden, "Forbidden")
	}

	page, size := Paging(c.Query("page"), c.Query("size"))
	messages, err := h.store.History(c.UserContext(), sender, receiver, page, size)
	if err != nil {
		h.log.Error("History failed", "identity", caller.String(), "error", err)
		return failure(c, fiber.StatusInternalServerError, "Internal server error")
	}
	return success(c, messages)
}

func (h *Chat) Messages(c *fiber.Ctx) error {
	self := middleware.Identity(c)
	messages, err := h.store.ForIdentity(c.UserContext(), self)
	if err != nil {
		h.log.Error("Listing messages failed", "identity", self.String(), "error", err)
		return failure(c, fiber.StatusInternalServerError, "Internal server error")
	}
	return success(c, messages)
}

func (h *Chat) MarkRead(c *fiber.Ctx) error {
	input := new(model.MarkReadRequest)
	if err := c.BodyParser(input); err != nil {
		return failure(c, fiber.StatusBadRequest, "Review your input")
	}
	if !input.Sender().Valid() || !input.Receiver().Valid() {
		return failure(c, fiber.StatusBadRequest, "Invalid identity")
	}
	if input.Receiver() != middleware.Identity(c) {
		return failure(c, fiber.StatusForbidden, "Receiver must be the caller")
	}

	if err := h.store.MarkRead(c.UserContext(), input.Receiver(), input.Sender()); err != nil {
		h.log.Error("Mark read failed", "receiver", input.Receiver().String(), "error", err)
		return failure(c, fiber.StatusInternalServerError, "Internal server error")
	}
	return success(c, nil)
}

func (h *Chat) UnreadCount(c *fiber.Ctx) error {
	self := middleware.Identity(c)
	count, err := h.store.UnreadCount(c.UserContext(), self)
	if err != nil {
		h.log.Error("Unread count failed", "identity", self.String(), "error", err)
		return failure(c, fiber.StatusInternalServerError, "Internal server error")
	}
	return success(c, count)
}

func (h *Chat) UnreadBySender(c *fiber.Ctx) error {
	self := middleware.Identity(c)
	rows, err := h.store.UnreadBySender(c.UserContext(), self)
	if err != nil {
		h.log.Error("Unread breakdown failed", "identity", self.String(), "error", err)
		return failure(c, fiber.StatusInternalServerError, "Internal server error")
	}
	return success(c, rows)
}

func (h *Chat) Sessions(c *fiber.Ctx) error {
	self := middleware.Identity(c)
	sessions, err := h.store.Sessions(c.UserContext(), self)
	if err != nil {
		h.log.Error("Listing sessions failed", "identity", self.String(), "error", err)
		return failure(c, fiber.StatusInternalServerError, "Internal server error")
	}
	return success(c, sessions)
}

// Paging applies the defaults and bounds of paged history queries.
func Paging(rawPage, rawSize string) (page, size int) {
	page, err := strconv.Atoi(rawPage)
	if err != nil || page < 1 {
		page = defaultPage
	}
	size, err = strconv.Atoi(rawSize)
	if err != nil || size < 1 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	return page, size
}
