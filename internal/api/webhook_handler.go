package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"

	"github.com/pqfbot/internal/bot"
)

type eventPayload struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Event     struct {
		Type     string `json:"type"`
		Channel  string `json:"channel"`
		User     string `json:"user"`
		Text     string `json:"text"`
		TS       string `json:"ts"`
		ThreadTS string `json:"thread_ts"`
	} `json:"event"`
}

type webhookHandler struct {
	signingSecret string
	filter        *bot.EventFilter
	submitter     Submitter
}

// handleEvents processes one webhook delivery. The endpoint acknowledges
// before any real work happens: processing is submitted to the worker pool
// and the response is always a 200 so the platform never retries a slow
// event.
func (h *webhookHandler) handleEvents(c echo.Context) error {
	// The platform redelivers on slow responses; the first delivery is
	// already being processed.
	if c.Request().Header.Get("X-Slack-Retry-Num") != "" {
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored retry"})
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
	}

	if h.signingSecret != "" {
		if err := h.verifySignature(c.Request().Header, body); err != nil {
			log.Warn().Err(err).Msg("Webhook signature rejected")
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		}
	}

	var payload eventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error().Err(err).Msg("Undecodable webhook payload")
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}

	switch payload.Type {
	case "url_verification":
		return c.JSON(http.StatusOK, map[string]string{"challenge": payload.Challenge})
	case "event_callback":
		if payload.Event.Type == "app_mention" {
			ev := payload.Event
			if h.filter.Seen(ev.Channel, ev.TS, ev.Text) {
				log.Info().Str("channel", ev.Channel).Str("ts", ev.TS).Msg("Duplicate event suppressed")
				break
			}
			h.submitter.Submit(bot.MentionEvent{
				Channel:  ev.Channel,
				User:     ev.User,
				Text:     ev.Text,
				TS:       ev.TS,
				ThreadTS: ev.ThreadTS,
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *webhookHandler) verifySignature(header http.Header, body []byte) error {
	verifier, err := slack.NewSecretsVerifier(header, h.signingSecret)
	if err != nil {
		return err
	}
	if _, err := verifier.Write(body); err != nil {
		return err
	}
	return verifier.Ensure()
}
