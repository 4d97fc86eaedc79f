package notifier

import "context"

// TextNotifier defines a minimal text notification interface.
// Components depend on it instead of a concrete channel such as Telegram.
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}

// Discard drops every message. Used when no channel is configured.
type Discard struct{}

func (Discard) SendText(context.Context, string) error { return nil }
