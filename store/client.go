package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"rental-messenger/model"
)

var ErrRequestFailed = errors.New("store request failed")

// RequestError is a store answer that was not a success. It matches ErrRequestFailed.
type RequestError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

func (e *RequestError) Unwrap() error {
	return ErrRequestFailed
}

type envelope[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Client talks to the message store REST API on behalf of one token holder.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	log     *slog.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
		log:     log,
	}
}

func (c *Client) Send(ctx context.Context, req model.SendMessageRequest) (model.Message, error) {
	return do[model.Message](ctx, c, fiber.MethodPost, "/v1/chat/message", nil, req)
}

// History fetches one page of the exchange between a and b, oldest first.
func (c *Client) History(ctx context.Context, a, b model.Identity, page, size int) ([]model.Message, error) {
	query := url.Values{}
	query.Set("senderId", strconv.FormatInt(a.ID, 10))
	query.Set("senderType", string(a.Kind))
	query.Set("receiverId", strconv.FormatInt(b.ID, 10))
	query.Set("receiverType", string(b.Kind))
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))
	return do[[]model.Message](ctx, c, fiber.MethodGet, "/v1/chat/history", query, nil)
}

// Messages fetches every message self sent or received.
func (c *Client) Messages(ctx context.Context, self model.Identity) ([]model.Message, error) {
	return do[[]model.Message](ctx, c, fiber.MethodGet, identityPath("/v1/chat/messages", self), nil, nil)
}

func (c *Client) MarkRead(ctx context.Context, receiver, sender model.Identity) error {
	_, err := do[json.RawMessage](ctx, c, fiber.MethodPost, "/v1/chat/read", nil, model.NewMarkReadRequest(receiver, sender))
	return err
}

func (c *Client) UnreadCount(ctx context.Context, receiver model.Identity) (int, error) {
	return do[int](ctx, c, fiber.MethodGet, identityPath("/v1/chat/unread", receiver), nil, nil)
}

func (c *Client) UnreadBySender(ctx context.Context, receiver model.Identity) ([]model.UnreadBySender, error) {
	return do[[]model.UnreadBySender](ctx, c, fiber.MethodGet, identityPath("/v1/chat/unread", receiver)+"/senders", nil, nil)
}

func (c *Client) Sessions(ctx context.Context, self model.Identity) ([]model.ChatSession, error) {
	return do[[]model.ChatSession](ctx, c, fiber.MethodGet, identityPath("/v1/chat/sessions", self), nil, nil)
}

// Lookup resolves display data for identities in one request.
func (c *Client) Lookup(ctx context.Context, identities []model.Identity) ([]model.Profile, error) {
	body := model.ProfileLookupRequest{Identities: identities}
	return do[[]model.Profile](ctx, c, fiber.MethodPost, "/v1/profiles/lookup", nil, body)
}

func (c *Client) SaveProfile(ctx context.Context, nickname, avatar string) (model.Profile, error) {
	body := fiber.Map{"nickname": nickname, "avatar": avatar}
	return do[model.Profile](ctx, c, fiber.MethodPut, "/v1/profiles/me", nil, body)
}

type result struct {
	code int
	body []byte
	errs []error
}

// do runs one request. The request timeout is capped by the context deadline and a
// cancelled context abandons the call.
func do[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, path, err)
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	agent := fiber.AcquireAgent()
	request := agent.Request()
	request.Header.SetMethod(method)
	request.SetRequestURI(c.baseURL + path)
	if len(query) > 0 {
		agent.QueryString(query.Encode())
	}
	agent.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	agent.Timeout(timeout)
	if body != nil {
		agent.JSON(body)
	}
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return zero, fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, path, err)
	}

	done := make(chan result, 1)
	go func() {
		code, raw, errs := agent.Bytes()
		done <- result{code: code, body: raw, errs: errs}
	}()

	var res result
	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, path, ctx.Err())
	case res = <-done:
	}

	if len(res.errs) > 0 {
		return zero, fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, path, errors.Join(res.errs...))
	}

	var env envelope[T]
	decodeErr := json.Unmarshal(res.body, &env)
	if res.code < fiber.StatusOK || res.code >= fiber.StatusMultipleChoices || env.Status != "success" {
		message := env.Message
		if decodeErr != nil || message == "" {
			message = strings.TrimSpace(string(res.body))
		}
		return zero, &RequestError{Method: method, Path: path, Status: res.code, Message: message}
	}
	if decodeErr != nil {
		return zero, fmt.Errorf("%w: %s %s: decode: %w", ErrRequestFailed, method, path, decodeErr)
	}

	c.log.Debug("Store request", "method", method, "path", path, "status", res.code)
	return env.Data, nil
}

func identityPath(prefix string, identity model.Identity) string {
	return fmt.Sprintf("%s/%s/%d", prefix, identity.Kind, identity.ID)
}
