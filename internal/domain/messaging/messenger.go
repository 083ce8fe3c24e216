package messaging

import "context"

// ReplyTarget addresses a reply to the user who sent a message.
type ReplyTarget struct {
	UserID string // Stable messenger user id, key of the session
	ChatID int64
}

// Sender delivers replies to a user. Message text may carry the small HTML
// subset chat clients render (<a>, <b>, <i>); callers escape dynamic content.
type Sender interface {
	SendMessage(ctx context.Context, target ReplyTarget, text string) error
	// SendOptions sends text with a set of quick-reply choices.
	SendOptions(ctx context.Context, target ReplyTarget, text string, options []string) error
}

// Handler receives inbound user events.
type Handler interface {
	OnTextMessage(ctx context.Context, target ReplyTarget, text string)
	OnFileMessage(ctx context.Context, target ReplyTarget, fileName string, content []byte)
}

// Messenger is a chat transport: it delivers inbound events to a Handler
// until ctx is cancelled and sends replies.
// Implemented by the Telegram client in the infrastructure layer.
type Messenger interface {
	Sender
	Start(ctx context.Context, handler Handler) error
}
