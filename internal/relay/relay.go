// Package relay turns Plex library events into Discord notifications.
package relay

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gordonpn/plex-2-discord/internal/metrics"
	"github.com/gordonpn/plex-2-discord/internal/notifications"
	"github.com/gordonpn/plex-2-discord/internal/plex"
)

const (
	// PlexOrange is the embed accent color.
	PlexOrange = 0xE5A00D

	ThumbnailFilename = "thumb.jpg"
	ThumbnailRef      = "attachment://" + ThumbnailFilename

	Ellipsis = "..."

	DefaultMaxSummaryLength = 400
)

type Config struct {
	MaxSummaryLength int
}

type Relay struct {
	config  Config
	sender  notifications.Sender
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func New(config Config, sender notifications.Sender, m *metrics.Metrics, logger zerolog.Logger) *Relay {
	if config.MaxSummaryLength < len(Ellipsis)+1 {
		config.MaxSummaryLength = DefaultMaxSummaryLength
	}
	return &Relay{
		config:  config,
		sender:  sender,
		metrics: m,
		logger:  logger.With().Str("component", "relay").Logger(),
	}
}

// Handle forwards event when it announces a new library item. It reports
// whether a message was handed to the sender; delivery itself is not awaited.
func (r *Relay) Handle(event plex.Event) (notifications.Message, bool) {
	if !event.IsLibraryNew() {
		r.metrics.RecordWebhook("ignored")
		r.logger.Debug().Str("event", event.Event).Msg("ignoring event")
		return notifications.Message{}, false
	}

	msg := BuildMessage(event, r.config.MaxSummaryLength)
	r.sender.Send(msg)
	r.metrics.RecordWebhook("relayed")

	r.logger.Info().
		Str("type", event.Metadata.Type).
		Str("library", event.Metadata.LibrarySectionTitle).
		Str("title", event.Metadata.Title).
		Bool("thumbnail", msg.Attachment != nil).
		Msg("relaying new library item")
	return msg, true
}

// BuildMessage renders a library.new event. The thumbnail reference is set
// only when the image itself is attached.
func BuildMessage(event plex.Event, maxSummaryLength int) notifications.Message {
	msg := notifications.Message{
		Kind:    notifications.KindLibrary,
		Content: fmt.Sprintf("New %s was just uploaded to %s library!", event.Metadata.Type, event.Metadata.LibrarySectionTitle),
		Embed: &notifications.Embed{
			Title:       event.Metadata.Title,
			Description: Truncate(event.Metadata.Summary, maxSummaryLength),
			Color:       PlexOrange,
		},
	}

	if thumb := event.Thumbnail; thumb != nil && len(thumb.Data) > 0 {
		msg.Attachment = &notifications.Attachment{
			Filename:    ThumbnailFilename,
			ContentType: thumb.ContentType,
			Data:        thumb.Data,
		}
		msg.Embed.ThumbnailURL = ThumbnailRef
	}
	return msg
}

// Truncate shortens s to at most limit characters. A shortened result ends in
// the ellipsis and is exactly limit characters long.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= len(Ellipsis) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(Ellipsis)]) + Ellipsis
}
