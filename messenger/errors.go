package messenger

import "errors"

var (
	ErrTransportUnavailable = errors.New("transport unavailable")
	ErrSubscriptionFailed   = errors.New("subscription failed")
	ErrNotConnected         = errors.New("not connected")
	ErrRetriesExhausted     = errors.New("reconnect retries exhausted")
	ErrHandlerPanic         = errors.New("handler panic")
)
