package controller

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"rental-messenger/middleware"
	"rental-messenger/model"
)

// maxLookup bounds one batched profile lookup.
const maxLookup = 200

type ProfileStore interface {
	Lookup(ctx context.Context, identities []model.Identity) ([]model.Profile, error)
	Save(ctx context.Context, p *model.Profile) error
}

type ProfileInput struct {
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

type Profile struct {
	store ProfileStore
	log   *slog.Logger
}

func NewProfile(store ProfileStore, log *slog.Logger) *Profile {
	return &Profile{store: store, log: log}
}

func (h *Profile) Lookup(c *fiber.Ctx) error {
	input := new(model.ProfileLookupRequest)
	if err := c.BodyParser(input); err != nil {
		return failure(c, fiber.StatusBadRequest, "Review your input")
	}
	if len(input.Identities) > maxLookup {
		return failure(c, fiber.StatusBadRequest, "Too many identities")
	}

	profiles, err := h.store.Lookup(c.UserContext(), input.Identities)
	if err != nil {
		h.log.Error("Profile lookup failed", "count", len(input.Identities), "error", err)
		return failure(c, fiber.StatusInternalServerError, "Internal server error")
	}
	return success(c, profiles)
}

// SaveMine stores the display data of the caller.
func (h *Profile) SaveMine(c *fiber.Ctx) error {
	input := new(ProfileInput)
	if err := c.BodyParser(input); err != nil || input.Nickname == "" {
		return failure(c, fiber.StatusBadRequest, "Review your input")
	}

	self := middleware.Identity(c)
	profile := &model.Profile{
		Kind:     self.Kind,
		RefID:    self.ID,
		Nickname: input.Nickname,
		Avatar:   input.Avatar,
	}
	if err := h.store.Save(c.UserContext(), profile); err != nil {
		h.log.Error("Saving profile failed", "identity", self.String(), "error", err)
		return failure(c, fiber.StatusInternalServerError, "Internal server error")
	}
	return success(c, profile)
}
