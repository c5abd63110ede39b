package socketio

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	eiolog "github.com/zishang520/engine.io/v2/log"
	"github.com/zishang520/socket.io-go-redis/adapter"
	r_type "github.com/zishang520/socket.io-go-redis/types"
	"github.com/zishang520/socket.io/v2/socket"

	"rental-messenger/model"
	"rental-messenger/utils"
)

const (
	EventMessage = "chat_message"
	EventRead    = "chat_read"
	EventUnread  = "chat_unread"
	EventError   = "chat_error"
)

// Server is the browser push channel. Every authenticated socket joins the room of its
// identity.
type Server struct {
	io  *socket.Server
	log *slog.Logger
}

// Init mounts socket.io on app. With a redis client the rooms are shared by every
// service instance.
func Init(app *fiber.App, redisClient *redis.Client, jwtKey string, log *slog.Logger) *Server {
	eiolog.DEBUG = log.Enabled(context.Background(), slog.LevelDebug)

	options := socket.DefaultServerOptions()
	options.SetServeClient(false)
	options.SetAllowEIO3(true)
	options.SetPingInterval(25 * time.Second)
	options.SetPingTimeout(20 * time.Second)
	options.SetMaxHttpBufferSize(1000000)
	options.SetConnectTimeout(10 * time.Second)
	if redisClient != nil {
		options.SetAdapter(&adapter.RedisAdapterBuilder{
			Redis: r_type.NewRedisClient(context.Background(), redisClient),
			Opts:  &adapter.RedisAdapterOptions{},
		})
	}

	server := socket.NewServer(nil, options)

	server.Use(func(client *socket.Socket, next func(*socket.ExtendedError)) {
		token, _ := client.Conn().Request().Query().Get("token")
		claims, err := utils.CheckAndExtractTokenMetadata(token, jwtKey)
		if err != nil {
			log.Debug("Socket rejected", "error", err)
			next(socket.NewExtendedError("unauthorized", nil))
			return
		}

		client.Join(socket.Room(claims.Identity().String()))
		client.SetData(claims)
		next(nil)
	})

	app.Get("/socket.io/", adaptor.HTTPHandler(server.ServeHandler(options)))
	app.Post("/socket.io/", adaptor.HTTPHandler(server.ServeHandler(options)))

	return &Server{io: server, log: log}
}

func (s *Server) On(event string, listener func(args ...any)) {
	s.io.On(event, listener)
}

// Emit sends to every socket of identity.
func (s *Server) Emit(identity model.Identity, event string, message any) {
	s.io.To(socket.Room(identity.String())).Emit(event, message)
}

// Notify pushes msg to the room of its receiver.
func (s *Server) Notify(_ context.Context, msg model.Message) error {
	s.Emit(msg.Receiver(), EventMessage, msg)
	return nil
}

func (s *Server) Close() {
	s.io.Close(nil)
}

// Identity returns the participant bound to client during the handshake.
func Identity(client *socket.Socket) (model.Identity, bool) {
	claims, ok := client.Data().(*utils.TokenMetadata)
	if !ok || claims == nil {
		return model.Identity{}, false
	}
	return claims.Identity(), true
}
