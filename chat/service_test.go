package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"rental-messenger/model"
)

type memoryStore struct {
	messages []model.Message
	err      error
}

func (m *memoryStore) Send(_ context.Context, msg *model.Message) error {
	if m.err != nil {
		return m.err
	}
	msg.ID = uint(len(m.messages) + 1)
	m.messages = append(m.messages, *msg)
	return nil
}

type notifierFunc func(ctx context.Context, msg model.Message) error

func (f notifierFunc) Notify(ctx context.Context, msg model.Message) error { return f(ctx, msg) }

var (
	user     = model.NewIdentity(model.KindUser, 3)
	merchant = model.NewIdentity(model.KindMerchant, 3)
	discard  = slog.New(slog.NewTextHandler(io.Discard, nil))
)

func TestService_Send(t *testing.T) {
	req := require.New(t)
	store := &memoryStore{}
	var pushed []model.Message
	broken := notifierFunc(func(context.Context, model.Message) error { return errors.New("broker down") })
	recording := notifierFunc(func(_ context.Context, msg model.Message) error {
		pushed = append(pushed, msg)
		return nil
	})
	service := NewService(store, discard, broken, recording)

	// When a message is sent while one push channel is failing
	msg, err := service.Send(context.Background(), model.NewTextMessage(user, merchant, "  is the bike free?  "))

	// Then it is stored, trimmed and still pushed through the healthy channel
	req.NoError(err)
	req.Equal(uint(1), msg.ID)
	req.Equal("is the bike free?", msg.Content)
	req.Len(store.messages, 1)
	req.Equal([]model.Message{msg}, pushed)
}

func TestService_Send_Rejects_Invalid(t *testing.T) {
	cases := map[string]model.SendMessageRequest{
		"blank text":   model.NewTextMessage(user, merchant, "   "),
		"self":         model.NewTextMessage(user, user, "hi"),
		"bad kind":     model.NewTextMessage(model.NewIdentity("admin", 1), merchant, "hi"),
		"image no url": {SenderID: user.ID, SenderType: user.Kind, ReceiverID: merchant.ID, ReceiverType: merchant.Kind, MessageType: model.MessageImage},
	}
	for name, request := range cases {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			store := &memoryStore{}

			_, err := NewService(store, discard).Send(context.Background(), request)

			req.ErrorIs(err, model.ErrInvalidMessage)
			req.Empty(store.messages)
		})
	}
}

func TestService_Send_Store_Failure(t *testing.T) {
	req := require.New(t)
	storeErr := errors.New("db gone")
	pushed := false
	service := NewService(&memoryStore{err: storeErr}, discard, notifierFunc(func(context.Context, model.Message) error {
		pushed = true
		return nil
	}))

	_, err := service.Send(context.Background(), model.NewTextMessage(user, merchant, "hi"))

	req.ErrorIs(err, storeErr)
	req.False(pushed)
}
