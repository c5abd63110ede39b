package model

import "time"

// ChatSession is the store-side row kept per (user, merchant) pair.
type ChatSession struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	UserID              int64     `gorm:"not null;uniqueIndex:idx_chat_sessions_pair" json:"userId"`
	MerchantID          int64     `gorm:"not null;uniqueIndex:idx_chat_sessions_pair" json:"merchantId"`
	LastMessage         string    `json:"lastMessage"`
	LastMessageTime     time.Time `gorm:"index" json:"lastMessageTime"`
	UserUnreadCount     int       `gorm:"not null;default:0" json:"userUnreadCount"`
	MerchantUnreadCount int       `gorm:"not null;default:0" json:"merchantUnreadCount"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}
