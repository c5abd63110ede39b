//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_unread_store.go -package=mocks
package unread

import (
	"context"

	"rental-messenger/model"
)

// Store is the subset of the message store the tracker reconciles against.
type Store interface {
	MarkRead(ctx context.Context, receiver, sender model.Identity) error
	UnreadCount(ctx context.Context, receiver model.Identity) (int, error)
	UnreadBySender(ctx context.Context, receiver model.Identity) ([]model.UnreadBySender, error)
}
