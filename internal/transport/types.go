// Package transport defines the messaging contracts consumed by the engine.
package transport

import "context"

// Messenger delivers outbound text to a chat. Implementations own their own
// timeouts and rate limiting; the engine imposes none.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
}
