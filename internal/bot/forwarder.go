package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pqfbot/internal/ledger"
)

// forwardHeader builds the relay summary line:
// [Q2] [2025] [Week 1] [Date 3 - April] [Tercatat]
func forwardHeader(t time.Time, recorded bool, notifyUserID string) string {
	status := "Tercatat"
	if !recorded {
		status = "Tidak Tercatat"
	}
	header := fmt.Sprintf("[%s] [%d] [Week %d] [Date %d - %s] [%s]",
		Quarter(t.Month()), t.Year(), WeekOfMonth(t.Day()), t.Day(), t.Month().String(), status)
	if !recorded && notifyUserID != "" {
		header += fmt.Sprintf(" [<@%s>]", notifyUserID)
	}
	return header
}

// forward relays the thread summary and permalink to every configured
// relay channel. Forwarding is best-effort: a failure is logged, never
// surfaced to the reporter.
func (o *Orchestrator) forward(ctx context.Context, reportedAt time.Time, recorded bool, permalink string) {
	header := forwardHeader(reportedAt, recorded, o.cfg.Slack.BotUserID)
	text := header + "\n" + ledger.NormalizeLink(permalink)
	for _, channel := range o.cfg.Slack.ForwardChannels {
		if err := o.chat.SendMessage(ctx, channel, "", text); err != nil {
			log.Error().Err(err).Str("channel", channel).Msg("Forwarding failed")
		}
	}
}
