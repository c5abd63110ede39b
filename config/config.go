package config

import (
	"fmt"
	"sync"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

var loadOnce sync.Once

// load reads .env once. A missing file is fine, the process environment wins anyway.
func load() {
	loadOnce.Do(func() {
		_ = godotenv.Load(".env")
	})
}

// Service holds the message store service settings.
type Service struct {
	ServerPort       string `env:"SERVER_PORT,default=8080"`
	PostgresHost     string `env:"POSTGRES_HOST,default=localhost"`
	PostgresPort     string `env:"POSTGRES_PORT,default=5432"`
	PostgresUser     string `env:"POSTGRES_USER,required=true"`
	PostgresPassword string `env:"POSTGRES_PASSWORD,required=true"`
	PostgresDB       string `env:"POSTGRES_DB,required=true"`
	RedisHost        string `env:"REDIS_HOST,default=localhost"`
	RedisPort        string `env:"REDIS_PORT,default=6379"`
	RedisPassword    string `env:"REDIS_PASSWORD"`
	RedisDB          int    `env:"REDIS_DB,default=1"`
	RabbitMQURL      string `env:"RABBITMQ_URL,required=true"`
	JWTAccessKey     string `env:"JWT_ACCESS_KEY,required=true"`
	LogLevel         string `env:"LOG_LEVEL,default=INFO"`
}

// PostgresDSN builds the gorm postgres DSN.
func (s Service) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		s.PostgresHost,
		s.PostgresPort,
		s.PostgresUser,
		s.PostgresPassword,
		s.PostgresDB,
	)
}

// Client holds the messaging client settings.
type Client struct {
	StoreURL           string        `env:"CHAT_STORE_URL,default=http://localhost:8080"`
	RabbitMQURL        string        `env:"RABBITMQ_URL,required=true"`
	Token              string        `env:"CHAT_TOKEN,required=true"`
	IdentityKind       string        `env:"CHAT_IDENTITY_KIND,required=true"`
	IdentityID         int64         `env:"CHAT_IDENTITY_ID,required=true"`
	MaxRetries         int           `env:"CHAT_MAX_RETRIES,default=3"`
	RetryDelay         time.Duration `env:"CHAT_RETRY_DELAY,default=5s"`
	Heartbeat          time.Duration `env:"CHAT_HEARTBEAT,default=4s"`
	ConnectTimeout     time.Duration `env:"CHAT_CONNECT_TIMEOUT,default=10s"`
	HandlerTimeout     time.Duration `env:"CHAT_HANDLER_TIMEOUT,default=2s"`
	UnreadPollInterval time.Duration `env:"CHAT_UNREAD_POLL_INTERVAL,default=30s"`
	RequestTimeout     time.Duration `env:"CHAT_REQUEST_TIMEOUT,default=10s"`
	LogLevel           string        `env:"LOG_LEVEL,default=INFO"`
}

// Token holds the settings used to sign access tokens locally. The key must
// match the store's JWT_ACCESS_KEY.
type Token struct {
	JWTAccessKey    string `env:"JWT_ACCESS_KEY,required=true"`
	JWTAccessExpire int    `env:"JWT_ACCESS_EXPIRE,default=60"`
}

// LoadService fills Service from .env and the environment.
func LoadService() (Service, error) {
	load()
	var cfg Service
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Service{}, fmt.Errorf("service config: %w", err)
	}
	return cfg, nil
}

// LoadClient fills Client from .env and the environment.
func LoadClient() (Client, error) {
	load()
	var cfg Client
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Client{}, fmt.Errorf("client config: %w", err)
	}
	return cfg, nil
}

// LoadToken fills Token from .env and the environment.
func LoadToken() (Token, error) {
	load()
	var cfg Token
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Token{}, fmt.Errorf("token config: %w", err)
	}
	if cfg.JWTAccessExpire <= 0 {
		return Token{}, fmt.Errorf("token config: JWT_ACCESS_EXPIRE must be positive, got %d", cfg.JWTAccessExpire)
	}
	return cfg, nil
}
