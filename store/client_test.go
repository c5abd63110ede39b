package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rental-messenger/chat"
	"rental-messenger/controller"
	"rental-messenger/database"
	"rental-messenger/model"
	"rental-messenger/repository"
	"rental-messenger/router"
	"rental-messenger/utils"
)

const jwtKey = "test-key"

var (
	renter = model.NewIdentity(model.KindUser, 5)
	owner  = model.NewIdentity(model.KindMerchant, 8)
)

// startStore serves the real routes over a loopback listener, backed by SQLite.
func startStore(t *testing.T) string {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	enforcer, err := database.Casbin(db, log)
	require.NoError(t, err)

	chats := repository.NewChat(db)
	app := fiber.New(fiber.Config{DisableStartupMessage: true, StrictRouting: true})
	router.Rest(app,
		controller.NewChat(chat.NewService(chats, log), chats, log),
		controller.NewProfile(repository.NewProfiles(db), log),
		jwtKey, enforcer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() {
		_ = app.Shutdown()
		_ = sqlDB.Close()
	})
	return "http://" + ln.Addr().String()
}

func clientFor(t *testing.T, baseURL string, identity model.Identity) *Client {
	t.Helper()
	token, err := utils.GenerateToken(identity, jwtKey, time.Hour)
	require.NoError(t, err)
	return NewClient(baseURL, token, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_Conversation_Roundtrip(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	baseURL := startStore(t)
	renterClient := clientFor(t, baseURL, renter)
	ownerClient := clientFor(t, baseURL, owner)

	// Given the renter asks and the owner answers twice
	first, err := renterClient.Send(ctx, model.NewTextMessage(renter, owner, "Is the tent available?"))
	req.NoError(err)
	req.NotZero(first.ID)
	req.False(first.CreatedAt.IsZero())
	for _, content := range []string{"Yes", "From Friday"} {
		_, err := ownerClient.Send(ctx, model.NewTextMessage(owner, renter, content))
		req.NoError(err)
	}

	// Then the renter sees everything and two unread
	messages, err := renterClient.Messages(ctx, renter)
	req.NoError(err)
	req.Len(messages, 3)

	count, err := renterClient.UnreadCount(ctx, renter)
	req.NoError(err)
	req.Equal(2, count)

	bySender, err := renterClient.UnreadBySender(ctx, renter)
	req.NoError(err)
	req.Equal([]model.UnreadBySender{{SenderID: owner.ID, SenderType: owner.Kind, Count: 2}}, bySender)

	page, err := renterClient.History(ctx, owner, renter, 2, 2)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal("From Friday", page[0].Content)

	// When the renter reads the conversation
	req.NoError(renterClient.MarkRead(ctx, renter, owner))

	count, err = renterClient.UnreadCount(ctx, renter)
	req.NoError(err)
	req.Zero(count)

	sessions, err := ownerClient.Sessions(ctx, owner)
	req.NoError(err)
	req.Len(sessions, 1)
	req.Equal("From Friday", sessions[0].LastMessage)
	req.Zero(sessions[0].UserUnreadCount)
	req.Equal(1, sessions[0].MerchantUnreadCount)
}

func TestClient_Profiles(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	baseURL := startStore(t)
	ownerClient := clientFor(t, baseURL, owner)

	saved, err := ownerClient.SaveProfile(ctx, "Camping Gear Co", "https://cdn.example/logo.png")
	req.NoError(err)
	req.Equal(owner, saved.Identity())

	profiles, err := clientFor(t, baseURL, renter).Lookup(ctx, []model.Identity{owner, renter})
	req.NoError(err)
	req.Len(profiles, 1)
	req.Equal("Camping Gear Co", profiles[0].Nickname)
}

func TestClient_Failures(t *testing.T) {
	baseURL := startStore(t)

	t.Run("another identity's resources are forbidden", func(t *testing.T) {
		req := require.New(t)

		_, err := clientFor(t, baseURL, renter).UnreadCount(context.Background(), owner)

		req.ErrorIs(err, ErrRequestFailed)
		var requestErr *RequestError
		req.True(errors.As(err, &requestErr))
		req.Equal(fiber.StatusForbidden, requestErr.Status)
	})

	t.Run("impersonated sender is forbidden", func(t *testing.T) {
		req := require.New(t)

		_, err := clientFor(t, baseURL, renter).Send(context.Background(), model.NewTextMessage(owner, renter, "hi"))

		var requestErr *RequestError
		req.True(errors.As(err, &requestErr))
		req.Equal(fiber.StatusForbidden, requestErr.Status)
	})

	t.Run("invalid message", func(t *testing.T) {
		req := require.New(t)

		_, err := clientFor(t, baseURL, renter).Send(context.Background(), model.NewTextMessage(renter, owner, "   "))

		var requestErr *RequestError
		req.True(errors.As(err, &requestErr))
		req.Equal(fiber.StatusBadRequest, requestErr.Status)
	})

	t.Run("bad token", func(t *testing.T) {
		req := require.New(t)
		client := NewClient(baseURL, "garbage", time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))

		_, err := client.Messages(context.Background(), renter)

		var requestErr *RequestError
		req.True(errors.As(err, &requestErr))
		req.Equal(fiber.StatusUnauthorized, requestErr.Status)
	})

	t.Run("cancelled context", func(t *testing.T) {
		req := require.New(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := clientFor(t, baseURL, renter).Messages(ctx, renter)

		req.ErrorIs(err, ErrRequestFailed)
		req.ErrorIs(err, context.Canceled)
	})

	t.Run("unreachable store", func(t *testing.T) {
		req := require.New(t)

		_, err := clientFor(t, "http://127.0.0.1:1", renter).Messages(context.Background(), renter)

		req.ErrorIs(err, ErrRequestFailed)
	})
}
