package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/mama165/sdk-go/logs"

	"rental-messenger/chat"
	"rental-messenger/config"
	"rental-messenger/controller"
	"rental-messenger/database"
	"rental-messenger/event"
	"rental-messenger/event/listener"
	"rental-messenger/repository"
	"rental-messenger/router"
	"rental-messenger/socketio"
	"rental-messenger/utils"
)

const (
	brokerHeartbeat   = 10 * time.Second
	brokerDialTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadService()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	defer stop()

	db, err := database.PostgresConnect(cfg, log)
	if err != nil {
		return err
	}
	enforcer, err := database.Casbin(db, log)
	if err != nil {
		return err
	}
	redisClient, err := database.RedisConnect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	broker, err := event.Dial(ctx, cfg.RabbitMQURL, brokerHeartbeat, brokerDialTimeout, log)
	if err != nil {
		return err
	}
	defer broker.Close()
	log.Info("Connection opened to RabbitMQ")

	rest := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StrictRouting:         true,
		AppName:               "rental-messenger",
	})
	rest.Use(cors.New())

	socket := socketio.Init(rest, redisClient, cfg.JWTAccessKey, log)
	defer socket.Close()

	chats := repository.NewChat(db)
	sender := chat.NewService(chats, log, event.NewNotifier(broker, log), socket)

	router.Rest(rest,
		controller.NewChat(sender, chats, log),
		controller.NewProfile(repository.NewProfiles(db), log),
		cfg.JWTAccessKey, enforcer)
	router.Socket(socket, chats, log)

	// Messages published by clients over the transport
	sends, err := broker.Subscribe(ctx, event.SendQueue)
	if err != nil {
		return err
	}
	go listener.Send(ctx, sends, sender, utils.Verifier(cfg.JWTAccessKey), log)

	errChan := make(chan error, 1)
	go func() {
		address := fmt.Sprintf(":%s", cfg.ServerPort)
		log.Info("Starting REST server", "address", address)
		if err := rest.Listen(address); err != nil {
			errChan <- fmt.Errorf("rest server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err := <-errChan:
		return err
	case amqpErr := <-broker.NotifyClose():
		return fmt.Errorf("rabbitmq connection lost: %v", amqpErr)
	}

	return rest.ShutdownWithTimeout(5 * time.Second)
}
