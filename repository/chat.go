package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rental-messenger/model"
)

// Chat is the gorm-backed message store.
type Chat struct {
	db *gorm.DB
}

func NewChat(db *gorm.DB) *Chat {
	return &Chat{db: db}
}

// Send persists msg and folds it into the chat session of its pair. ID and CreatedAt
// are filled in on return.
func (r *Chat) Send(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		return upsertSession(tx, *msg)
	})
}

func upsertSession(tx *gorm.DB, msg model.Message) error {
	user, merchant, ok := pair(msg.Sender(), msg.Receiver())
	if !ok {
		return nil
	}

	row := model.ChatSession{
		UserID:          user.ID,
		MerchantID:      merchant.ID,
		LastMessage:     msg.Preview(),
		LastMessageTime: msg.CreatedAt,
	}
	counter := "user_unread_count"
	if msg.Receiver().Kind == model.KindMerchant {
		counter = "merchant_unread_count"
		row.MerchantUnreadCount = 1
	} else {
		row.UserUnreadCount = 1
	}

	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "merchant_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_message":      row.LastMessage,
			"last_message_time": row.LastMessageTime,
			"updated_at":        msg.CreatedAt,
			counter:             gorm.Expr("chat_sessions." + counter + " + 1"),
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert chat session: %w", err)
	}
	return nil
}

// History returns one page of the exchange between a and b, oldest first.
func (r *Chat) History(ctx context.Context, a, b model.Identity, page, size int) ([]model.Message, error) {
	messages := []model.Message{}
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND sender_type = ? AND receiver_id = ? AND receiver_type = ?) OR "+
			"(sender_id = ? AND sender_type = ? AND receiver_id = ? AND receiver_type = ?)",
			a.ID, a.Kind, b.ID, b.Kind,
			b.ID, b.Kind, a.ID, a.Kind,
		).
		Order("created_at asc").Order("id asc").
		Offset((page - 1) * size).
		Limit(size).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("history %s %s: %w", a, b, err)
	}
	return messages, nil
}

// ForIdentity returns every message identity sent or received, oldest first.
func (r *Chat) ForIdentity(ctx context.Context, identity model.Identity) ([]model.Message, error) {
	messages := []model.Message{}
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND sender_type = ?) OR (receiver_id = ? AND receiver_type = ?)",
			identity.ID, identity.Kind, identity.ID, identity.Kind,
		).
		Order("created_at asc").Order("id asc").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("messages of %s: %w", identity, err)
	}
	return messages, nil
}

// MarkRead flags every message from sender to receiver as read and resets the
// receiver side of their session. Marking an already read conversation is a no-op.
func (r *Chat) MarkRead(ctx context.Context, receiver, sender model.Identity) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.Message{}).
			Where(partyOf("receiver", receiver)).
			Where(partyOf("sender", sender)).
			Where("is_read = ?", false).
			Update("is_read", true).Error
		if err != nil {
			return fmt.Errorf("mark read %s from %s: %w", receiver, sender, err)
		}

		user, merchant, ok := pair(receiver, sender)
		if !ok {
			return nil
		}
		counter := "user_unread_count"
		if receiver.Kind == model.KindMerchant {
			counter = "merchant_unread_count"
		}
		err = tx.Model(&model.ChatSession{}).
			Where("user_id = ? AND merchant_id = ?", user.ID, merchant.ID).
			Update(counter, 0).Error
		if err != nil {
			return fmt.Errorf("reset session counter: %w", err)
		}
		return nil
	})
}

func (r *Chat) UnreadCount(ctx context.Context, receiver model.Identity) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where(partyOf("receiver", receiver)).
		Where("is_read = ?", false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("unread count of %s: %w", receiver, err)
	}
	return int(count), nil
}

// UnreadBySender breaks the unread count of receiver down per sender.
func (r *Chat) UnreadBySender(ctx context.Context, receiver model.Identity) ([]model.UnreadBySender, error) {
	rows := []model.UnreadBySender{}
	err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Select("sender_id, sender_type, count(*) as count").
		Where(partyOf("receiver", receiver)).
		Where("is_read = ?", false).
		Group("sender_id, sender_type").
		Order("sender_id asc").Order("sender_type asc").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("unread breakdown of %s: %w", receiver, err)
	}
	return rows, nil
}

// Sessions lists the chat sessions of identity, most recent first.
func (r *Chat) Sessions(ctx context.Context, identity model.Identity) ([]model.ChatSession, error) {
	column := "user_id"
	if identity.Kind == model.KindMerchant {
		column = "merchant_id"
	}
	sessions := []model.ChatSession{}
	err := r.db.WithContext(ctx).
		Where(column+" = ?", identity.ID).
		Order("last_message_time desc").Order("id desc").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("sessions of %s: %w", identity, err)
	}
	return sessions, nil
}

func partyOf(side string, identity model.Identity) clause.Expr {
	return gorm.Expr(side+"_id = ? AND "+side+"_type = ?", identity.ID, identity.Kind)
}

// pair orders a user and a merchant. ok is false for any other combination.
func pair(a, b model.Identity) (user, merchant model.Identity, ok bool) {
	switch {
	case a.Kind == model.KindUser && b.Kind == model.KindMerchant:
		return a, b, true
	case a.Kind == model.KindMerchant && b.Kind == model.KindUser:
		return b, a, true
	}
	return model.Identity{}, model.Identity{}, false
}
