// Package conversation rebuilds per-counterpart conversation summaries from a flat,
// unordered message list. Everything here is pure except Resolve, which consults a
// Directory for display data.
package conversation

import (
	"slices"

	"rental-messenger/model"
)

// Dedupe drops repeated message ids, keeping the last value seen for each id at the
// position of its first occurrence.
func Dedupe(messages []model.Message) []model.Message {
	index := make(map[uint]int, len(messages))
	out := make([]model.Message, 0, len(messages))
	for _, msg := range messages {
		if i, ok := index[msg.ID]; ok {
			out[i] = msg
			continue
		}
		index[msg.ID] = len(out)
		out = append(out, msg)
	}
	return out
}

// Counterparts lists the distinct counterparts of self, ordered by id then kind.
func Counterparts(self model.Identity, messages []model.Message) []model.Identity {
	seen := make(map[model.Identity]struct{})
	var out []model.Identity
	for _, msg := range messages {
		counterpart, ok := msg.Counterpart(self)
		if !ok {
			continue
		}
		if _, dup := seen[counterpart]; dup {
			continue
		}
		seen[counterpart] = struct{}{}
		out = append(out, counterpart)
	}
	slices.SortFunc(out, compareIdentity)
	return out
}

// Aggregate returns one conversation per counterpart of self, most recent first.
// Equal lastMessageTime values fall back to counterpart id ascending. unread is the
// optional read-state side channel; counterparts missing from it report zero.
// Messages that do not involve self, or that self sent to itself, are ignored.
func Aggregate(self model.Identity, messages []model.Message, unread map[model.Identity]int) []model.Conversation {
	groups := make(map[model.Identity]*model.Conversation)
	for _, msg := range Dedupe(messages) {
		counterpart, ok := msg.Counterpart(self)
		if !ok {
			continue
		}
		conv, ok := groups[counterpart]
		if !ok {
			groups[counterpart] = &model.Conversation{
				Counterpart:     counterpart,
				LastMessage:     msg,
				LastMessageTime: msg.CreatedAt,
			}
			continue
		}
		if newer(msg, conv.LastMessage) {
			conv.LastMessage = msg
			conv.LastMessageTime = msg.CreatedAt
		}
	}

	out := make([]model.Conversation, 0, len(groups))
	for counterpart, conv := range groups {
		conv.UnreadCount = unread[counterpart]
		out = append(out, *conv)
	}
	Sort(out)
	return out
}

// Sort orders conversations by lastMessageTime descending, then counterpart ascending.
func Sort(conversations []model.Conversation) {
	slices.SortFunc(conversations, func(a, b model.Conversation) int {
		if c := b.LastMessageTime.Compare(a.LastMessageTime); c != 0 {
			return c
		}
		return compareIdentity(a.Counterpart, b.Counterpart)
	})
}

// TotalUnread sums the unread counters of conversations.
func TotalUnread(conversations []model.Conversation) int {
	total := 0
	for _, conv := range conversations {
		total += conv.UnreadCount
	}
	return total
}

// newer reports whether a supersedes b as the last message. Same timestamps are broken
// by the store-assigned id so the result does not depend on input order.
func newer(a, b model.Message) bool {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c > 0
	}
	return a.ID > b.ID
}

func compareIdentity(a, b model.Identity) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}
