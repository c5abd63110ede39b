package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"rental-messenger/model"
)

// Directory resolves display data for a batch of identities in a single call.
type Directory interface {
	Lookup(ctx context.Context, identities []model.Identity) ([]model.Profile, error)
}

// Placeholder is the label used when a counterpart has no known profile.
func Placeholder(identity model.Identity) string {
	switch identity.Kind {
	case model.KindMerchant:
		return fmt.Sprintf("Merchant %d", identity.ID)
	case model.KindUser:
		return fmt.Sprintf("User %d", identity.ID)
	}
	return identity.String()
}

// Resolve fills Name and Avatar with one batched lookup. A failed lookup or a missing
// profile never drops a conversation; the placeholder label is used instead.
func Resolve(ctx context.Context, directory Directory, log *slog.Logger, conversations []model.Conversation) []model.Conversation {
	if len(conversations) == 0 {
		return conversations
	}

	profiles := make(map[model.Identity]model.Profile)
	if directory != nil {
		ids := make([]model.Identity, 0, len(conversations))
		for _, conv := range conversations {
			ids = append(ids, conv.Counterpart)
		}
		found, err := directory.Lookup(ctx, ids)
		if err != nil {
			log.Warn("Profile lookup failed, using placeholders", "count", len(ids), "error", err)
		}
		for _, p := range found {
			profiles[p.Identity()] = p
		}
	}

	out := make([]model.Conversation, len(conversations))
	for i, conv := range conversations {
		p, ok := profiles[conv.Counterpart]
		if ok && p.Nickname != "" {
			conv.Name = p.Nickname
		} else {
			conv.Name = Placeholder(conv.Counterpart)
		}
		if ok {
			conv.Avatar = p.Avatar
		}
		out[i] = conv
	}
	return out
}
