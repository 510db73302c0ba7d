package notifications

import "context"

// Kind labels a message for logs and metrics.
type Kind string

const (
	KindLibrary Kind = "library"
	KindStatus  Kind = "status"
)

// Message is the destination-agnostic chat notification.
type Message struct {
	Kind       Kind
	Content    string
	Embed      *Embed
	Attachment *Attachment
}

type Embed struct {
	Title       string
	Description string
	Color       int
	// ThumbnailURL may reference the attachment, e.g. "attachment://thumb.jpg".
	ThumbnailURL string
}

// Attachment is a file uploaded alongside the message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Notifier publishes notifications to a single destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, msg Message) error
}

// Sender accepts a message for best-effort delivery. Send never blocks on
// the outbound call and never reports its outcome.
type Sender interface {
	Send(msg Message)
}
