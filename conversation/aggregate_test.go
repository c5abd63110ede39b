package conversation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rental-messenger/model"
)

var (
	t0    = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	self  = model.NewIdentity(model.KindUser, 1)
	shopA = model.NewIdentity(model.KindMerchant, 10)
	shopB = model.NewIdentity(model.KindMerchant, 20)
)

func msg(id uint, from, to model.Identity, at time.Time, content string) model.Message {
	return model.Message{
		ID:           id,
		SenderID:     from.ID,
		SenderType:   from.Kind,
		ReceiverID:   to.ID,
		ReceiverType: to.Kind,
		Content:      content,
		MessageType:  model.MessageText,
		CreatedAt:    at,
	}
}

func TestAggregate_Most_Recent_Conversation_First(t *testing.T) {
	req := require.New(t)

	// Given user:1 talked with merchant:10 at T1 and merchant:20 at T2 > T1
	messages := []model.Message{
		msg(1, self, shopA, t0, "is the tent available?"),
		msg(2, shopB, self, t0.Add(time.Hour), "your order shipped"),
	}

	conversations := Aggregate(self, messages, nil)

	req.Len(conversations, 2)
	req.Equal(shopB, conversations[0].Counterpart)
	req.Equal(shopA, conversations[1].Counterpart)
}

func TestAggregate_Last_Message_Is_The_Latest_Created(t *testing.T) {
	req := require.New(t)

	// Arrival order differs from creation order
	messages := []model.Message{
		msg(3, shopA, self, t0.Add(2*time.Minute), "latest"),
		msg(1, self, shopA, t0, "first"),
		msg(2, shopA, self, t0.Add(time.Minute), "second"),
	}

	conversations := Aggregate(self, messages, nil)

	req.Len(conversations, 1)
	req.Equal("latest", conversations[0].LastMessage.Content)
	req.Equal(t0.Add(2*time.Minute), conversations[0].LastMessageTime)
}

func TestAggregate_Duplicates_Do_Not_Change_Output(t *testing.T) {
	req := require.New(t)
	messages := []model.Message{
		msg(1, self, shopA, t0, "a"),
		msg(2, shopB, self, t0.Add(time.Minute), "b"),
		msg(3, shopA, self, t0.Add(2*time.Minute), "c"),
	}
	withDuplicates := append(append([]model.Message{}, messages...), messages[2], messages[0], messages[2])

	req.Equal(Aggregate(self, messages, nil), Aggregate(self, withDuplicates, nil))
	req.Len(Dedupe(withDuplicates), 3)
}

func TestAggregate_Ties_Broken_By_Counterpart_Id(t *testing.T) {
	req := require.New(t)
	messages := []model.Message{
		msg(1, shopB, self, t0, "b"),
		msg(2, shopA, self, t0, "a"),
	}

	for range 10 {
		conversations := Aggregate(self, messages, nil)
		req.Equal(shopA, conversations[0].Counterpart)
		req.Equal(shopB, conversations[1].Counterpart)
	}
}

func TestAggregate_Same_Id_Different_Kind_Are_Distinct(t *testing.T) {
	req := require.New(t)
	merchantSelf := model.NewIdentity(model.KindMerchant, 5)
	user7 := model.NewIdentity(model.KindUser, 7)
	merchant7 := model.NewIdentity(model.KindMerchant, 7)

	conversations := Aggregate(merchantSelf, []model.Message{
		msg(1, user7, merchantSelf, t0, "from user"),
		msg(2, merchant7, merchantSelf, t0, "from merchant"),
	}, nil)

	req.Len(conversations, 2)
	req.Equal(merchant7, conversations[0].Counterpart)
	req.Equal(user7, conversations[1].Counterpart)
}

func TestAggregate_Edge_Cases(t *testing.T) {
	t.Run("empty input yields empty output", func(t *testing.T) {
		req := require.New(t)
		req.Empty(Aggregate(self, nil, nil))
	})

	t.Run("conversation with only outgoing messages is kept", func(t *testing.T) {
		req := require.New(t)
		conversations := Aggregate(self, []model.Message{msg(1, self, shopA, t0, "hello?")}, nil)
		req.Len(conversations, 1)
		req.Equal(shopA, conversations[0].Counterpart)
	})

	t.Run("self to self and foreign messages are ignored", func(t *testing.T) {
		req := require.New(t)
		conversations := Aggregate(self, []model.Message{
			msg(1, self, self, t0, "note to self"),
			msg(2, shopA, shopB, t0, "not mine"),
		}, nil)
		req.Empty(conversations)
	})
}

func TestAggregate_Merges_Unread_Side_Channel(t *testing.T) {
	req := require.New(t)
	messages := []model.Message{
		msg(1, shopA, self, t0, "a"),
		msg(2, shopB, self, t0.Add(time.Minute), "b"),
	}

	conversations := Aggregate(self, messages, map[model.Identity]int{shopA: 3})

	req.Zero(conversations[0].UnreadCount)
	req.Equal(3, conversations[1].UnreadCount)
	req.Equal(3, TotalUnread(conversations))
}

func TestCounterparts(t *testing.T) {
	req := require.New(t)
	counterparts := Counterparts(self, []model.Message{
		msg(1, shopB, self, t0, "b"),
		msg(2, self, shopA, t0, "a"),
		msg(3, shopB, self, t0, "b again"),
	})
	req.Equal([]model.Identity{shopA, shopB}, counterparts)
}

type stubDirectory struct {
	profiles []model.Profile
	err      error
	calls    int
}

func (d *stubDirectory) Lookup(_ context.Context, _ []model.Identity) ([]model.Profile, error) {
	d.calls++
	return d.profiles, d.err
}

func TestResolve(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	conversations := Aggregate(self, []model.Message{
		msg(1, shopA, self, t0, "a"),
		msg(2, shopB, self, t0.Add(time.Minute), "b"),
	}, nil)

	t.Run("known profiles are applied in a single lookup", func(t *testing.T) {
		req := require.New(t)
		directory := &stubDirectory{profiles: []model.Profile{
			{Kind: model.KindMerchant, RefID: 10, Nickname: "Camping Gear Co", Avatar: "https://cdn/a.png"},
		}}

		resolved := Resolve(context.Background(), directory, log, conversations)

		req.Equal(1, directory.calls)
		req.Equal("Merchant 20", resolved[0].Name)
		req.Equal("Camping Gear Co", resolved[1].Name)
		req.Equal("https://cdn/a.png", resolved[1].Avatar)
	})

	t.Run("lookup failure falls back to placeholders", func(t *testing.T) {
		req := require.New(t)
		directory := &stubDirectory{err: errors.New("store down")}

		resolved := Resolve(context.Background(), directory, log, conversations)

		req.Len(resolved, 2)
		req.Equal("Merchant 20", resolved[0].Name)
		req.Equal("Merchant 10", resolved[1].Name)
	})
}
