package destination

import (
	"context"
	"encoding/json"

	"github.com/marcelsud/webhook-relay/forwarding"
)

// SlackSender posts to a Slack incoming webhook
type SlackSender struct {
	poster
}

func (s SlackSender) Send(ctx context.Context, dest forwarding.Destination, payload json.RawMessage) forwarding.DispatchResult {
	cfg := dest.Config
	if cfg.URL == "" {
		return failure("Slack webhook URL is not configured")
	}

	msg := decode(payload)
	if !msg.has("blocks", "text") {
		headline := summary(payload)
		msg = message{
			"text": headline,
			"blocks": []any{
				map[string]any{"type": "section", "text": map[string]any{"type": "mrkdwn", "text": "*" + headline + "*"}},
				map[string]any{"type": "section", "text": map[string]any{"type": "mrkdwn", "text": "```" + detail(payload) + "```"}},
			},
		}
	}
	msg.setDefault("channel", cfg.Channel)
	msg.setDefault("username", cfg.Username)
	msg.setDefault("icon_emoji", cfg.IconEmoji)

	return postMessage(ctx, s.poster, cfg.URL, msg)
}

// DiscordSender posts to a Discord channel webhook
type DiscordSender struct {
	poster
}

func (s DiscordSender) Send(ctx context.Context, dest forwarding.Destination, payload json.RawMessage) forwarding.DispatchResult {
	cfg := dest.Config
	if cfg.URL == "" {
		return failure("Discord webhook URL is not configured")
	}

	msg := decode(payload)
	if !msg.has("embeds", "content") {
		headline := summary(payload)
		msg = message{
			"content": headline,
			"embeds": []any{
				map[string]any{
					"title":       headline,
					"description": "```json\n" + detail(payload) + "\n```",
					"color":       0x5865F2,
				},
			},
		}
	}
	msg.setDefault("username", cfg.Username)
	msg.setDefault("avatar_url", cfg.AvatarURL)

	return postMessage(ctx, s.poster, cfg.URL, msg)
}

// TeamsSender posts a MessageCard to a Teams incoming webhook
type TeamsSender struct {
	poster
}

func (s TeamsSender) Send(ctx context.Context, dest forwarding.Destination, payload json.RawMessage) forwarding.DispatchResult {
	cfg := dest.Config
	if cfg.URL == "" {
		return failure("Teams webhook URL is not configured")
	}

	msg := decode(payload)
	if msg["@type"] != "MessageCard" && !msg.has("sections") {
		headline := summary(payload)
		msg = message{
			"@type":      "MessageCard",
			"@context":   "https://schema.org/extensions",
			"summary":    headline,
			"themeColor": "0076D7",
			"title":      headline,
			"sections":   []any{map[string]any{"text": "<pre>" + detail(payload) + "</pre>"}},
		}
	}

	return postMessage(ctx, s.poster, cfg.URL, msg)
}

// EmailSender is a placeholder; email delivery is not implemented
type EmailSender struct{}

func (EmailSender) Send(context.Context, forwarding.Destination, json.RawMessage) forwarding.DispatchResult {
	return forwarding.DispatchResult{Success: false, Error: "not implemented"}
}

func postMessage(ctx context.Context, p poster, url string, msg message) forwarding.DispatchResult {
	body, err := json.Marshal(msg)
	if err != nil {
		return failure("encoding message: %v", err)
	}
	return p.post(ctx, url, body, nil)
}
