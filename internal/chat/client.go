// Package chat wraps the Slack Web API behind a small interface so the
// rest of the bot can be tested without network access.
package chat

import (
	"context"
	"time"

	"github.com/slack-go/slack"
)

// API is the subset of the Slack client the bot needs.
type API interface {
	GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
	GetPermalinkContext(ctx context.Context, params *slack.PermalinkParameters) (string, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
}

// Client provides the bot-facing chat operations on top of an API.
type Client struct {
	api API
}

func NewClient(api API) *Client {
	return &Client{api: api}
}

// NewSlackAPI builds the real Slack client from a bot token.
func NewSlackAPI(token string) API {
	return slack.New(token)
}

// SendMessage posts text to a channel. A non-empty threadTS threads the
// message under that root.
func (c *Client) SendMessage(ctx context.Context, channelID, threadTS, text string) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	_, _, err := c.api.PostMessageContext(ctx, channelID, opts...)
	return err
}

// UserDisplayName resolves a user ID to a human-readable name, preferring
// the profile display name. Unresolvable users come back as the raw ID so
// ledger rows never lose the reporter entirely.
func (c *Client) UserDisplayName(ctx context.Context, userID string) string {
	if userID == "" {
		return "Unknown"
	}
	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil || user == nil {
		return userID
	}
	if user.Profile.DisplayName != "" {
		return user.Profile.DisplayName
	}
	if user.RealName != "" {
		return user.RealName
	}
	return user.Name
}

// BotIdentity returns the authenticated bot's own user ID.
func (c *Client) BotIdentity(ctx context.Context) (string, error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", err
	}
	return resp.UserID, nil
}

// rateLimitDelay classifies Slack API errors for the retry loop: rate
// limit responses are retryable and may carry a server wait interval,
// anything else fails fast.
func rateLimitDelay(err error) (time.Duration, bool) {
	if rle, ok := err.(*slack.RateLimitedError); ok {
		return rle.RetryAfter, true
	}
	return 0, false
}
