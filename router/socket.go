package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/zishang520/socket.io/v2/socket"

	"rental-messenger/model"
	"rental-messenger/socketio"
)

const socketTimeout = 5 * time.Second

// ReadState is the part of the store behind the socket read events.
type ReadState interface {
	MarkRead(ctx context.Context, receiver, sender model.Identity) error
	UnreadCount(ctx context.Context, receiver model.Identity) (int, error)
	UnreadBySender(ctx context.Context, receiver model.Identity) ([]model.UnreadBySender, error)
}

// UnreadSummary is the payload of chat_unread.
type UnreadSummary struct {
	Total    int                    `json:"total"`
	BySender []model.UnreadBySender `json:"bySender"`
}

// Socket wires the read-state events. chat_read takes {senderId, senderType} and marks that
// conversation read for the socket identity; both events answer with a fresh chat_unread.
func Socket(server *socketio.Server, store ReadState, log *slog.Logger) {
	server.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		self, ok := socketio.Identity(client)
		if !ok {
			client.Disconnect(true)
			return
		}

		client.On(socketio.EventRead, func(args ...any) {
			var sender model.Identity
			var input model.MarkReadRequest
			if err := decodeArg(args, &input); err == nil {
				sender = input.Sender()
			}
			if !sender.Valid() {
				client.Emit(socketio.EventError, "invalid sender")
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), socketTimeout)
			defer cancel()
			if err := store.MarkRead(ctx, self, sender); err != nil {
				log.Warn("Socket mark read failed", "identity", self.String(), "sender", sender.String(), "error", err)
				client.Emit(socketio.EventError, "mark read failed")
				return
			}
			emitUnread(ctx, client, store, self, log)
		})

		client.On(socketio.EventUnread, func(args ...any) {
			ctx, cancel := context.WithTimeout(context.Background(), socketTimeout)
			defer cancel()
			emitUnread(ctx, client, store, self, log)
		})
	})
}

func emitUnread(ctx context.Context, client *socket.Socket, store ReadState, self model.Identity, log *slog.Logger) {
	total, err := store.UnreadCount(ctx, self)
	if err != nil {
		log.Warn("Socket unread count failed", "identity", self.String(), "error", err)
		return
	}
	bySender, err := store.UnreadBySender(ctx, self)
	if err != nil {
		log.Warn("Socket unread breakdown failed", "identity", self.String(), "error", err)
		bySender = []model.UnreadBySender{}
	}
	client.Emit(socketio.EventUnread, UnreadSummary{Total: total, BySender: bySender})
}

// decodeArg converts the first event argument, already decoded as generic JSON, into v.
func decodeArg(args []any, v any) error {
	if len(args) == 0 {
		return json.Unmarshal([]byte("null"), v)
	}
	raw, err := json.Marshal(args[0])
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
