package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"
)

type DiscordNotifier struct {
	client     *http.Client
	webhookURL string
}

type discordPayload struct {
	Content string `json:"content"`
}

type discordMessage struct {
	Content string                   `json:"content,omitempty"`
	Embeds  []*discordgo.MessageEmbed `json:"embeds,omitempty"`
}

func NewDiscordNotifier(client *http.Client, webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{client: client, webhookURL: strings.TrimSpace(webhookURL)}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

// Notify posts msg to the webhook. Plain text messages go out as JSON; messages
// with an embed or an attachment go out as multipart with a payload_json part
// and one files[n] part per attachment.
func (d *DiscordNotifier) Notify(ctx context.Context, msg Message) error {
	var (
		contentType string
		body        []byte
		err         error
	)

	if msg.Embed == nil && msg.Attachment == nil {
		contentType = "application/json"
		body, err = json.Marshal(discordPayload{Content: msg.Content})
		if err != nil {
			return fmt.Errorf("marshal discord payload: %w", err)
		}
	} else {
		contentType, body, err = discordgo.MultipartBodyWithJSON(buildDiscordMessage(msg), attachmentFiles(msg))
		if err != nil {
			return fmt.Errorf("encode discord multipart body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return errors.New("build discord request: invalid webhook URL")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := d.client.Do(req)
	if err != nil {
		// The webhook path carries the token; keep it out of the error text.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("post discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("discord status %d: %s", resp.StatusCode, string(respBody))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func buildDiscordMessage(msg Message) discordMessage {
	out := discordMessage{Content: msg.Content}
	if msg.Embed == nil {
		return out
	}

	embed := &discordgo.MessageEmbed{
		Title:       msg.Embed.Title,
		Description: msg.Embed.Description,
		Color:       msg.Embed.Color,
	}
	if msg.Embed.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: msg.Embed.ThumbnailURL}
	}
	out.Embeds = []*discordgo.MessageEmbed{embed}
	return out
}

func attachmentFiles(msg Message) []*discordgo.File {
	if msg.Attachment == nil {
		return nil
	}
	return []*discordgo.File{{
		Name:        msg.Attachment.Filename,
		ContentType: msg.Attachment.ContentType,
		Reader:      bytes.NewReader(msg.Attachment.Data),
	}}
}
