// Package bot contains the event orchestrator: it takes mention events
// from the webhook, runs the parent/reply state machine, and drives the
// chat client, classifier and ledgers.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/pqfbot/internal/chat"
	"github.com/pqfbot/internal/classify"
	"github.com/pqfbot/internal/command"
	"github.com/pqfbot/internal/config"
	"github.com/pqfbot/internal/ledger"
)

// MentionEvent is one app_mention delivery, reduced to the fields the
// state machine reads.
type MentionEvent struct {
	Channel  string
	User     string
	Text     string
	TS       string
	ThreadTS string
}

// Chat is the platform surface the orchestrator drives.
type Chat interface {
	SendMessage(ctx context.Context, channelID, threadTS, text string) error
	UserDisplayName(ctx context.Context, userID string) string
	BotIdentity(ctx context.Context) (string, error)
	FetchThread(ctx context.Context, ref chat.ThreadRef) (*chat.Thread, error)
}

// ThreadClassifier produces the nine-field analysis of a thread.
type ThreadClassifier interface {
	Classify(ctx context.Context, thread *chat.Thread, opts ...classify.Option) classify.Result
}

// MainLedger is the intake ledger surface.
type MainLedger interface {
	CreateSheetIfAbsent(ctx context.Context, sheet string) error
	SheetNames(ctx context.Context) ([]string, error)
	HasLink(ctx context.Context, sheet, link string) (bool, error)
	PrependRow(ctx context.Context, row ledger.Row, sheet string) (bool, error)
	UpdateColumnByLink(ctx context.Context, sheet, link, column, value string) (bool, error)
}

// BugLedger is the ticket ledger surface.
type BugLedger interface {
	NextCode(ctx context.Context, sheet string) string
	PrependRow(ctx context.Context, row ledger.BugRow, sheet string) (bool, error)
}

// Orchestrator runs the per-event state machine on a bounded worker pool.
type Orchestrator struct {
	cfg        *config.Config
	chat       Chat
	classifier ThreadClassifier
	store      MainLedger
	bugs       BugLedger

	pool    *semaphore.Weighted
	timeout time.Duration
	now     func() time.Time
}

func NewOrchestrator(cfg *config.Config, chatClient Chat, classifier ThreadClassifier, store MainLedger, bugs BugLedger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		chat:       chatClient,
		classifier: classifier,
		store:      store,
		bugs:       bugs,
		pool:       semaphore.NewWeighted(int64(cfg.Worker.PoolSize)),
		timeout:    cfg.Worker.EventTimeout,
		now:        time.Now,
	}
}

// Submit schedules the event on the worker pool and returns immediately.
// Each event gets its own wall-clock budget; a panic in a handler is
// contained to that event.
func (o *Orchestrator) Submit(ev MentionEvent) {
	go func() {
		if err := o.pool.Acquire(context.Background(), 1); err != nil {
			return
		}
		defer o.pool.Release(1)

		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("channel", ev.Channel).Str("ts", ev.TS).Msg("Event handler panicked")
			}
		}()

		o.HandleMention(ctx, ev)
	}()
}

// HandleMention runs the state machine for one mention event.
func (o *Orchestrator) HandleMention(ctx context.Context, ev MentionEvent) {
	if !o.cfg.IsAllowedChannel(ev.Channel) {
		log.Info().Str("channel", ev.Channel).Msg("Ignored event from channel not in allowed list")
		return
	}

	if ev.ThreadTS == "" || ev.ThreadTS == ev.TS {
		o.handleParent(ctx, ev)
		return
	}
	o.handleReply(ctx, ev)
}

// handleParent: a mention on a thread root. Acknowledge, classify, route
// by product into a dated sheet, and relay the outcome.
func (o *Orchestrator) handleParent(ctx context.Context, ev MentionEvent) {
	o.say(ctx, ev.Channel, ev.TS, msgAcknowledge)

	thread, err := o.chat.FetchThread(ctx, chat.ThreadRef{ChannelID: ev.Channel, Timestamp: ev.TS})
	if err != nil {
		log.Error().Err(err).Str("channel", ev.Channel).Str("ts", ev.TS).Msg("Thread fetch failed")
		o.say(ctx, ev.Channel, ev.TS, msgDeferred)
		return
	}

	reportedAt, ok := tsTime(thread.Parent.Timestamp)
	if !ok {
		log.Error().Str("ts", thread.Parent.Timestamp).Msg("Unparseable parent timestamp")
		return
	}

	res := o.classifier.Classify(ctx, thread)
	product := RouteProduct(res.Product)
	if product == "Unknown" {
		o.forward(ctx, reportedAt, false, thread.Permalink)
		return
	}

	sheet := SheetName(reportedAt, product)
	if err := o.store.CreateSheetIfAbsent(ctx, sheet); err != nil {
		log.Error().Err(err).Str("sheet", sheet).Msg("Sheet creation failed")
		o.say(ctx, ev.Channel, ev.TS, msgDeferred)
		return
	}

	link := ledger.NormalizeLink(thread.Permalink)
	dup, err := o.store.HasLink(ctx, sheet, link)
	if err != nil {
		log.Error().Err(err).Str("sheet", sheet).Msg("Dedupe lookup failed")
		o.say(ctx, ev.Channel, ev.TS, msgDeferred)
		return
	}
	if !dup {
		row := o.buildRow(ctx, thread, res, "Eksternal", reportedAt, link)
		if _, err := o.store.PrependRow(ctx, row, sheet); err != nil {
			log.Error().Err(err).Str("sheet", sheet).Msg("Ledger write failed")
			o.say(ctx, ev.Channel, ev.TS, msgDeferred)
			return
		}
	}
	o.forward(ctx, reportedAt, true, thread.Permalink)
}

// handleReply: a mention inside a thread. Detect the command and run its
// branch; anything unrecognized gets the deferred-processing notice.
func (o *Orchestrator) handleReply(ctx context.Context, ev MentionEvent) {
	switch command.Detect(ev.Text) {
	case command.ActionPQF:
		o.handlePQF(ctx, ev)
	case command.ActionResolution:
		o.handleResolutionOrResolve(ctx, ev, ledger.ColResolutionTime)
	case command.ActionResolve:
		o.handleResolutionOrResolve(ctx, ev, ledger.ColDeploymentTime)
	case command.ActionTicket:
		o.handleTicket(ctx, ev)
	case command.ActionConfirmBug:
		o.handleConfirmBug(ctx, ev)
	default:
		o.say(ctx, ev.Channel, ev.TS, msgDeferred)
	}
}

func (o *Orchestrator) handlePQF(ctx context.Context, ev MentionEvent) {
	if !o.cfg.IsForwardChannel(ev.Channel) {
		o.say(ctx, ev.Channel, ev.TS, msgRestricted)
		return
	}

	cmd, err := command.ParsePQF(ev.Text)
	if err != nil {
		o.say(ctx, ev.Channel, ev.TS, msgDeferred)
		return
	}

	thread, err := o.resolveOriginThread(ctx, ev)
	if err != nil {
		o.say(ctx, ev.Channel, ev.TS, fmt.Sprintf(msgNoThread, ev.User))
		return
	}

	reportedAt, ok := tsTime(thread.Parent.Timestamp)
	if !ok {
		o.say(ctx, ev.Channel, ev.TS, fmt.Sprintf(msgNoThread, ev.User))
		return
	}

	sheet := SheetName(reportedAt, cmd.Product)
	if err := o.store.CreateSheetIfAbsent(ctx, sheet); err != nil {
		log.Error().Err(err).Str("sheet", sheet).Msg("Sheet creation failed")
		o.say(ctx, ev.Channel, ev.TS, msgDeferred)
		return
	}

	link := ledger.NormalizeLink(thread.Permalink)
	dup, err := o.store.HasLink(ctx, sheet, link)
	if err != nil {
		log.Error().Err(err).Str("sheet", sheet).Msg("Dedupe lookup failed")
		o.say(ctx, ev.Channel, ev.TS, msgDeferred)
		return
	}
	if dup {
		o.say(ctx, ev.Channel, ev.TS, fmt.Sprintf(msgAlreadyLogged, ev.User))
		return
	}

	o.say(ctx, ev.Channel, ev.TS, fmt.Sprintf(msgQueued, sheet))

	res := o.classifier.Classify(ctx, thread, classify.WithUrgencyDefault("Medium"))
	row := o.buildRow(ctx, thread, res, cmd.Origin, reportedAt, link)
	if _, err := o.store.PrependRow(ctx, row, sheet); err != nil {
		log.Error().Err(err).Str("sheet", sheet).Msg("Ledger write failed")
		o.say(ctx, ev.Channel, ev.TS, msgDeferred)
		return
	}
	o.forward(ctx, reportedAt, true, thread.Permalink)
}

// handleResolutionOrResolve stamps the current time into the given column
// of the row matching this thread's permalink, scanning every sheet until
// a match is found.
func (o *Orchestrator) handleResolutionOrResolve(ctx context.Context, ev MentionEvent, column string) {
	thread, err := o.chat.FetchThread(ctx, chat.ThreadRef{ChannelID: ev.Channel, Timestamp: ev.ThreadTS})
	if err != nil {
		o.say(ctx, ev.Channel, ev.TS, fmt.Sprintf(msgNoThread, ev.User))
		return
	}

	link := ledger.NormalizeLink(thread.Permalink)
	sheets, err := o.store.SheetNames(ctx)
	if err != nil {
		o.say(ctx, ev.Channel, ev.TS, fmt.Sprintf(msgManualFollowup, ev.User))
		return
	}

	for _, sheet := range sheets {
		found, err := o.store.HasLink(ctx, sheet, link)
		if err != nil || !found {
			continue
		}
		now := o.now().Format("2006-01-02 15:04")
		updated, err := o.store.UpdateColumnByLink(ctx, sheet, link, column, now)
		if err != nil || !updated {
			o.say(ctx, ev.Channel, ev.TS, fmt.Sprintf(msgUpdateFailed, ev.User, column, sheet))
			return
		}
		reporter := "Reporter"
		if thread.Parent.UserID != "" {
			reporter = fmt.Sprintf("<@%s>", thread.Parent.UserID)
		}
		status := msgResolutionStatus
		if column == ledger.ColDeploymentTime {
			status = msgResolveStatus
		}
		o.say(ctx, ev.Channel, ev.TS, fmt.Sprintf(status, reporter))
		return
	}
	o.say(ctx, ev.Channel, ev.TS, fmt.Sprintf(msgManualFollowup, ev.User))
}

// handleTicket records the origin thread in the bug ledger with a fresh
// QR code. The redirect through the permalink in the forwarded copy is
// mandatory: tickets must never be created against the relay thread.
func (o *Orchestrator) handleTicket(ctx context.Context, ev MentionEvent) {
	forwarded, err := o.chat.FetchThread(ctx, chat.ThreadRef{ChannelID: ev.Channel, Timestamp: ev.ThreadTS})
	if err != nil {
		o.say(ctx, ev.Channel, ev.TS, fmt.Sprintf(msgNoThread, ev.User))
		return
	}

	originLink := chat.ExtractLink(forwarded.Parent.Text)
	if originLink == "" {
		o.say(ctx, ev.Channel, ev.TS, msgDeferred)
		return
	}
	ref, err := chat.ResolvePermalink(originLink)
	if err != nil {
		o.say(ctx, ev.Channel, ev.TS, msgDeferred)
		return
	}
	origin, err := o.chat.FetchThread(ctx, ref)
	if err != nil {
		o.say(ctx, ev.Channel, ev.TS, fmt.Sprintf(msgNoThread, ev.User))
		return
	}

	res := o.classifier.Classify(ctx, origin)

	reporter := o.chat.UserDisplayName(ctx, origin.Parent.UserID)
	reportedAt, _ := tsTime(origin.Parent.Timestamp)
	link := ledger.NormalizeLink(originLink)

	code := o.bugs.NextCode(ctx, o.cfg.Sheets.BugSheetName)
	row := ledger.BugRow{
		From:              "Eksternal",
		Type:              res.Type,
		Code:              code,
		Product:           res.Product,
		Role:              res.Role,
		Feature:           res.Feature,
		Reporter:          reporter,
		ReportingDateTime: reportedAt.Format("2006-01-02 15:04"),
		Description:       res.Description,
		Severity:          res.Severity,
		Urgency:           res.Urgency,
		Link:              link,
	}
	inserted, err := o.bugs.PrependRow(ctx, row, o.cfg.Sheets.BugSheetName)
	if err != nil {
		log.Error().Err(err).Msg("Bug ledger write failed")
		o.say(ctx, ev.Channel, ev.TS, msgDeferred)
		return
	}
	if inserted {
		o.linkTicket(ctx, link, code)
	}
	o.say(ctx, ev.Channel, ev.TS, fmt.Sprintf(msgTicketCreated, code))
}

// linkTicket cross-references a new bug code into the main ledger's
// Related Ticket column wherever the permalink appears.
func (o *Orchestrator) linkTicket(ctx context.Context, link, code string) {
	sheets, err := o.store.SheetNames(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Sheet listing failed during ticket linking")
		return
	}
	for _, sheet := range sheets {
		updated, err := o.store.UpdateColumnByLink(ctx, sheet, link, ledger.ColRelatedTicket, code)
		if err != nil {
			log.Error().Err(err).Str("sheet", sheet).Msg("Related ticket update failed")
			continue
		}
		if updated {
			return
		}
	}
}

func (o *Orchestrator) handleConfirmBug(ctx context.Context, ev MentionEvent) {
	sheet := "Thread Analysis"
	if cmd, err := command.ParsePQF(ev.Text); err == nil {
		sheet = SheetName(o.now(), cmd.Product)
	}
	o.say(ctx, ev.Channel, ev.TS, fmt.Sprintf(msgQueued, sheet))
}

// resolveOriginThread returns the thread a reply-side command refers to.
// In a relay channel the thread is a forwarded copy whose parent carries
// the origin permalink; follow it when present, otherwise use the current
// thread.
func (o *Orchestrator) resolveOriginThread(ctx context.Context, ev MentionEvent) (*chat.Thread, error) {
	thread, err := o.chat.FetchThread(ctx, chat.ThreadRef{ChannelID: ev.Channel, Timestamp: ev.ThreadTS})
	if err != nil {
		return nil, err
	}
	link := chat.ExtractLink(thread.Parent.Text)
	if link == "" {
		return thread, nil
	}
	ref, err := chat.ResolvePermalink(link)
	if err != nil {
		return thread, nil
	}
	origin, err := o.chat.FetchThread(ctx, ref)
	if err != nil {
		return nil, err
	}
	return origin, nil
}

// buildRow assembles a main-ledger row from a classified thread. The
// responder defaults to the bot itself with the first bot reply as the
// response time, matching the automatic acknowledgement flow.
func (o *Orchestrator) buildRow(ctx context.Context, thread *chat.Thread, res classify.Result, from string, reportedAt time.Time, link string) ledger.Row {
	reporter := "Unknown"
	if res.ReporterID != "" && res.ReporterID != "Unknown" {
		reporter = o.chat.UserDisplayName(ctx, res.ReporterID)
	}

	responder := "Unknown"
	responseTime := ""
	botID, err := o.chat.BotIdentity(ctx)
	if err == nil {
		responder = o.chat.UserDisplayName(ctx, botID)
		for _, reply := range thread.Replies {
			if reply.UserID == botID {
				if t, ok := tsTime(reply.Timestamp); ok {
					responseTime = t.Format("2006-01-02 15:04")
				}
				break
			}
		}
	}

	return ledger.Row{
		From:              from,
		Type:              res.Type,
		Product:           res.Product,
		Role:              res.Role,
		Feature:           res.Feature,
		Reporter:          reporter,
		ReportingDateTime: reportedAt.Format("2006-01-02 15:04"),
		ResponseTime:      responseTime,
		Responder:         responder,
		Description:       res.Description,
		Severity:          res.Severity,
		Urgency:           res.Urgency,
		Link:              link,
	}
}

func (o *Orchestrator) say(ctx context.Context, channel, threadTS, text string) {
	if err := o.chat.SendMessage(ctx, channel, threadTS, text); err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("Sending message failed")
	}
}

// tsTime converts a dotted platform timestamp to local time.
func tsTime(ts string) (time.Time, bool) {
	whole, _, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}
