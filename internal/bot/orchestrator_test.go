package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pqfbot/internal/chat"
	"github.com/pqfbot/internal/classify"
	"github.com/pqfbot/internal/config"
	"github.com/pqfbot/internal/ledger"
)

type sentMessage struct {
	Channel  string
	ThreadTS string
	Text     string
}

type fakeChat struct {
	threads  map[string]*chat.Thread // keyed "channel|ts"
	names    map[string]string
	botID    string
	messages []sentMessage
}

func (f *fakeChat) SendMessage(_ context.Context, channelID, threadTS, text string) error {
	f.messages = append(f.messages, sentMessage{channelID, threadTS, text})
	return nil
}

func (f *fakeChat) UserDisplayName(_ context.Context, userID string) string {
	if name, ok := f.names[userID]; ok {
		return name
	}
	return userID
}

func (f *fakeChat) BotIdentity(context.Context) (string, error) {
	return f.botID, nil
}

func (f *fakeChat) FetchThread(_ context.Context, ref chat.ThreadRef) (*chat.Thread, error) {
	th, ok := f.threads[ref.ChannelID+"|"+ref.Timestamp]
	if !ok {
		return nil, fmt.Errorf("thread %s not found", ref.Timestamp)
	}
	return th, nil
}

func (f *fakeChat) sentTo(channel string) []string {
	var texts []string
	for _, m := range f.messages {
		if m.Channel == channel {
			texts = append(texts, m.Text)
		}
	}
	return texts
}

type fakeMainLedger struct {
	sheets  map[string][]ledger.Row
	order   []string
	updates map[string]string // "sheet|link|column" -> value
}

func newFakeMainLedger(names ...string) *fakeMainLedger {
	l := &fakeMainLedger{sheets: map[string][]ledger.Row{}, updates: map[string]string{}}
	for _, n := range names {
		l.sheets[n] = nil
		l.order = append(l.order, n)
	}
	return l
}

func (l *fakeMainLedger) CreateSheetIfAbsent(_ context.Context, sheet string) error {
	if _, ok := l.sheets[sheet]; !ok {
		l.sheets[sheet] = nil
		l.order = append(l.order, sheet)
	}
	return nil
}

func (l *fakeMainLedger) SheetNames(context.Context) ([]string, error) {
	return append([]string(nil), l.order...), nil
}

func (l *fakeMainLedger) HasLink(_ context.Context, sheet, link string) (bool, error) {
	for _, r := range l.sheets[sheet] {
		if ledger.NormalizeLink(r.Link) == ledger.NormalizeLink(link) {
			return true, nil
		}
	}
	return false, nil
}

func (l *fakeMainLedger) PrependRow(ctx context.Context, row ledger.Row, sheet string) (bool, error) {
	if dup, _ := l.HasLink(ctx, sheet, row.Link); dup {
		return false, nil
	}
	l.sheets[sheet] = append([]ledger.Row{row}, l.sheets[sheet]...)
	return true, nil
}

func (l *fakeMainLedger) UpdateColumnByLink(ctx context.Context, sheet, link, column, value string) (bool, error) {
	found, _ := l.HasLink(ctx, sheet, link)
	if !found {
		return false, nil
	}
	l.updates[sheet+"|"+ledger.NormalizeLink(link)+"|"+column] = value
	return true, nil
}

type fakeBugLedger struct {
	rows []ledger.BugRow
	code string
}

func (l *fakeBugLedger) NextCode(context.Context, string) string {
	return l.code
}

func (l *fakeBugLedger) PrependRow(_ context.Context, row ledger.BugRow, _ string) (bool, error) {
	for _, r := range l.rows {
		if ledger.NormalizeLink(r.Link) == ledger.NormalizeLink(row.Link) {
			return false, nil
		}
	}
	l.rows = append(l.rows, row)
	return true, nil
}

type fixedClassifier struct {
	result classify.Result
}

func (c *fixedClassifier) Classify(context.Context, *chat.Thread, ...classify.Option) classify.Result {
	return c.result
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Slack.BotUserID = "UBOT"
	cfg.Slack.AllowedChannels = []string{"CSRC", "CRELAY"}
	cfg.Slack.ForwardChannels = []string{"CRELAY"}
	cfg.Sheets.BugSheetName = "Bug List"
	cfg.Worker.PoolSize = 2
	cfg.Worker.EventTimeout = time.Minute
	return cfg
}

// April 2025 report date: quarter Q2.
const aprilTS = "1743992100.000100" // 2025-04-07 (UTC)

func shopeeResult() classify.Result {
	return classify.Result{Classification: classify.Classification{
		Type:        "Bug",
		Product:     "Shopee",
		Feature:     "Checkout",
		Description: "Error saat checkout",
		Role:        "Backend",
		ReporterID:  "U1",
		ResponderID: "U2",
		Severity:    "Bugfix",
		Urgency:     "High",
	}}
}

func parentThread(channel, ts, permalink string) *chat.Thread {
	return &chat.Thread{
		ChannelID: channel,
		RootTS:    ts,
		Permalink: permalink,
		Parent:    chat.Message{UserID: "U1", Text: "ada error nih <@UBOT>", Timestamp: ts},
	}
}

func TestParentMention_RecordsAndForwards(t *testing.T) {
	chatFake := &fakeChat{
		botID: "UBOT",
		names: map[string]string{"U1": "Budi", "UBOT": "PQF Bot"},
		threads: map[string]*chat.Thread{
			"CSRC|" + aprilTS: parentThread("CSRC", aprilTS, "https://acme.slack.com/archives/CSRC/p1743992100000100&cid=CSRC"),
		},
	}
	store := newFakeMainLedger()
	bugs := &fakeBugLedger{code: "QR-001"}
	o := NewOrchestrator(testConfig(), chatFake, &fixedClassifier{result: shopeeResult()}, store, bugs)

	o.HandleMention(context.Background(), MentionEvent{Channel: "CSRC", User: "U1", TS: aprilTS, ThreadTS: aprilTS})

	sheetName := SheetName(time.Unix(1743992100, 0), "Appcenter")
	rows := store.sheets[sheetName]
	require.Len(t, rows, 1)
	assert.Equal(t, "Eksternal", rows[0].From)
	assert.Equal(t, "Budi", rows[0].Reporter)
	assert.Equal(t, "https://acme.slack.com/archives/CSRC/p1743992100000100", rows[0].Link)

	// immediate acknowledgement in the thread
	texts := chatFake.sentTo("CSRC")
	require.NotEmpty(t, texts)
	assert.Equal(t, msgAcknowledge, texts[0])

	// relay got the recorded summary
	relay := chatFake.sentTo("CRELAY")
	require.Len(t, relay, 1)
	assert.Contains(t, relay[0], "[Tercatat]")
	assert.Contains(t, relay[0], "https://acme.slack.com/archives/CSRC/p1743992100000100")
	assert.NotContains(t, relay[0], "&cid=")
}

func TestParentMention_UnknownProductForwardsUnrecorded(t *testing.T) {
	res := shopeeResult()
	res.Product = "Mystery Tool"
	chatFake := &fakeChat{
		botID: "UBOT",
		threads: map[string]*chat.Thread{
			"CSRC|" + aprilTS: parentThread("CSRC", aprilTS, "https://acme.slack.com/archives/CSRC/p1"),
		},
	}
	store := newFakeMainLedger()
	o := NewOrchestrator(testConfig(), chatFake, &fixedClassifier{result: res}, store, &fakeBugLedger{})

	o.HandleMention(context.Background(), MentionEvent{Channel: "CSRC", User: "U1", TS: aprilTS, ThreadTS: aprilTS})

	assert.Empty(t, store.sheets)
	relay := chatFake.sentTo("CRELAY")
	require.Len(t, relay, 1)
	assert.Contains(t, relay[0], "[Tidak Tercatat]")
	assert.Contains(t, relay[0], "[<@UBOT>]")
}

func TestParentMention_DuplicateSkipsWriteButForwards(t *testing.T) {
	link := "https://acme.slack.com/archives/CSRC/p77"
	chatFake := &fakeChat{
		botID: "UBOT",
		threads: map[string]*chat.Thread{
			"CSRC|" + aprilTS: parentThread("CSRC", aprilTS, link),
		},
	}
	store := newFakeMainLedger()
	sheetName := SheetName(time.Unix(1743992100, 0), "Appcenter")
	store.CreateSheetIfAbsent(context.Background(), sheetName)
	store.sheets[sheetName] = []ledger.Row{{Link: link}}

	o := NewOrchestrator(testConfig(), chatFake, &fixedClassifier{result: shopeeResult()}, store, &fakeBugLedger{})
	o.HandleMention(context.Background(), MentionEvent{Channel: "CSRC", User: "U1", TS: aprilTS, ThreadTS: aprilTS})

	assert.Len(t, store.sheets[sheetName], 1)
	relay := chatFake.sentTo("CRELAY")
	require.Len(t, relay, 1)
	assert.Contains(t, relay[0], "[Tercatat]")
}

func TestDisallowedChannelIgnored(t *testing.T) {
	chatFake := &fakeChat{}
	store := newFakeMainLedger()
	o := NewOrchestrator(testConfig(), chatFake, &fixedClassifier{result: shopeeResult()}, store, &fakeBugLedger{})

	o.HandleMention(context.Background(), MentionEvent{Channel: "COTHER", TS: "1.0", ThreadTS: "1.0"})

	assert.Empty(t, chatFake.messages)
	assert.Empty(t, store.sheets)
}

func TestPQFReply_RestrictedOutsideForwardChannels(t *testing.T) {
	chatFake := &fakeChat{}
	store := newFakeMainLedger()
	o := NewOrchestrator(testConfig(), chatFake, &fixedClassifier{result: shopeeResult()}, store, &fakeBugLedger{})

	o.HandleMention(context.Background(), MentionEvent{
		Channel:  "CSRC", // allowed, but not a forwarding channel
		User:     "U1",
		Text:     "eksternal pqf q1 2025 agentlabs",
		TS:       "1743992200.000001",
		ThreadTS: aprilTS,
	})

	texts := chatFake.sentTo("CSRC")
	require.Len(t, texts, 1)
	assert.Equal(t, msgRestricted, texts[0])
	assert.Empty(t, store.sheets)
}

func TestPQFReply_RecordsViaOriginRedirect(t *testing.T) {
	originLink := "https://acme.slack.com/archives/CSRC/p1743992100000100"
	relayTS := "1743999999.000001"
	chatFake := &fakeChat{
		botID: "UBOT",
		names: map[string]string{"U1": "Budi", "UBOT": "PQF Bot"},
		threads: map[string]*chat.Thread{
			// forwarded copy in the relay channel carries the origin permalink
			"CRELAY|" + relayTS: {
				ChannelID: "CRELAY",
				RootTS:    relayTS,
				Permalink: "https://acme.slack.com/archives/CRELAY/p999",
				Parent:    chat.Message{UserID: "UBOT", Text: "[Q2] [2025] ...\n<" + originLink + ">", Timestamp: relayTS},
			},
			"CSRC|1743992100.000100": parentThread("CSRC", aprilTS, originLink),
		},
	}
	store := newFakeMainLedger()
	o := NewOrchestrator(testConfig(), chatFake, &fixedClassifier{result: shopeeResult()}, store, &fakeBugLedger{})

	o.HandleMention(context.Background(), MentionEvent{
		Channel:  "CRELAY",
		User:     "U3",
		Text:     "eksternal pqf appcenter",
		TS:       "1744000000.000001",
		ThreadTS: relayTS,
	})

	sheetName := SheetName(time.Unix(1743992100, 0), "Appcenter")
	rows := store.sheets[sheetName]
	require.Len(t, rows, 1)
	assert.Equal(t, "Eksternal", rows[0].From)
	assert.Equal(t, originLink, rows[0].Link)

	var queued bool
	for _, text := range chatFake.sentTo("CRELAY") {
		if strings.Contains(text, "sudah masuk ke list PQF") {
			queued = true
		}
	}
	assert.True(t, queued)
}

func TestPQFReply_AlreadyLogged(t *testing.T) {
	originLink := "https://acme.slack.com/archives/CSRC/p1743992100000100"
	relayTS := "1743999999.000001"
	chatFake := &fakeChat{
		botID: "UBOT",
		threads: map[string]*chat.Thread{
			"CRELAY|" + relayTS: {
				ChannelID: "CRELAY",
				RootTS:    relayTS,
				Parent:    chat.Message{UserID: "UBOT", Text: "<" + originLink + ">", Timestamp: relayTS},
			},
			"CSRC|1743992100.000100": parentThread("CSRC", aprilTS, originLink),
		},
	}
	store := newFakeMainLedger()
	sheetName := SheetName(time.Unix(1743992100, 0), "Appcenter")
	store.CreateSheetIfAbsent(context.Background(), sheetName)
	store.sheets[sheetName] = []ledger.Row{{Link: originLink}}

	o := NewOrchestrator(testConfig(), chatFake, &fixedClassifier{result: shopeeResult()}, store, &fakeBugLedger{})
	o.HandleMention(context.Background(), MentionEvent{
		Channel:  "CRELAY",
		User:     "U3",
		Text:     "eksternal pqf appcenter",
		TS:       "1744000000.000001",
		ThreadTS: relayTS,
	})

	texts := chatFake.sentTo("CRELAY")
	require.Len(t, texts, 1)
	assert.Equal(t, fmt.Sprintf(msgAlreadyLogged, "U3"), texts[0])
	assert.Len(t, store.sheets[sheetName], 1)
}

func TestResolutionReply_StampsColumnAndNotifies(t *testing.T) {
	link := "https://acme.slack.com/archives/CSRC/p55"
	chatFake := &fakeChat{
		threads: map[string]*chat.Thread{
			"CSRC|" + aprilTS: parentThread("CSRC", aprilTS, link),
		},
	}
	store := newFakeMainLedger("Q2 2025 Appcenter")
	store.sheets["Q2 2025 Appcenter"] = []ledger.Row{{Link: link}}

	o := NewOrchestrator(testConfig(), chatFake, &fixedClassifier{result: shopeeResult()}, store, &fakeBugLedger{})
	o.now = func() time.Time { return time.Date(2025, time.April, 9, 14, 30, 0, 0, time.UTC) }

	o.HandleMention(context.Background(), MentionEvent{
		Channel:  "CSRC",
		User:     "U2",
		Text:     "resolution",
		TS:       "1744000000.000002",
		ThreadTS: aprilTS,
	})

	assert.Equal(t, "2025-04-09 14:30", store.updates["Q2 2025 Appcenter|"+link+"|"+ledger.ColResolutionTime])
	texts := chatFake.sentTo("CSRC")
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "On Progress - Dev Team")
	assert.Contains(t, texts[0], "<@U1>")
}

func TestResolveReply_StampsDeploymentTime(t *testing.T) {
	link := "https://acme.slack.com/archives/CSRC/p56"
	chatFake := &fakeChat{
		threads: map[string]*chat.Thread{
			"CSRC|" + aprilTS: parentThread("CSRC", aprilTS, link),
		},
	}
	store := newFakeMainLedger("Q2 2025 Appcenter")
	store.sheets["Q2 2025 Appcenter"] = []ledger.Row{{Link: link}}

	o := NewOrchestrator(testConfig(), chatFake, &fixedClassifier{result: shopeeResult()}, store, &fakeBugLedger{})
	o.now = func() time.Time { return time.Date(2025, time.April, 10, 9, 0, 0, 0, time.UTC) }

	o.HandleMention(context.Background(), MentionEvent{
		Channel:  "CSRC",
		User:     "U2",
		Text:     "tolong resolve ya",
		TS:       "1744000000.000003",
		ThreadTS: aprilTS,
	})

	assert.Equal(t, "2025-04-10 09:00", store.updates["Q2 2025 Appcenter|"+link+"|"+ledger.ColDeploymentTime])
	texts := chatFake.sentTo("CSRC")
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "terselesaikan")
}

func TestResolutionReply_NotFoundAnywhere(t *testing.T) {
	chatFake := &fakeChat{
		threads: map[string]*chat.Thread{
			"CSRC|" + aprilTS: parentThread("CSRC", aprilTS, "https://acme.slack.com/archives/CSRC/p57"),
		},
	}
	store := newFakeMainLedger("Q2 2025 Appcenter")

	o := NewOrchestrator(testConfig(), chatFake, &fixedClassifier{result: shopeeResult()}, store, &fakeBugLedger{})
	o.HandleMention(context.Background(), MentionEvent{
		Channel: "CSRC", User: "U2", Text: "resolution", TS: "2.0", ThreadTS: aprilTS,
	})

	texts := chatFake.sentTo("CSRC")
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "menindaklanjutinya secara manual")
}

func TestTicketReply_CreatesBugAndLinksTicket(t *testing.T) {
	originLink := "https://acme.slack.com/archives/CSRC/p1743992100000100"
	relayTS := "1743999999.000001"
	chatFake := &fakeChat{
		botID: "UBOT",
		names: map[string]string{"U1": "Budi"},
		threads: map[string]*chat.Thread{
			"CRELAY|" + relayTS: {
				ChannelID: "CRELAY",
				RootTS:    relayTS,
				Parent:    chat.Message{UserID: "UBOT", Text: "[Q2] ...\n<" + originLink + ">", Timestamp: relayTS},
			},
			"CSRC|1743992100.000100": parentThread("CSRC", aprilTS, originLink),
		},
	}
	store := newFakeMainLedger("Q2 2025 Appcenter")
	store.sheets["Q2 2025 Appcenter"] = []ledger.Row{{Link: originLink}}
	bugs := &fakeBugLedger{code: "QR-042"}

	o := NewOrchestrator(testConfig(), chatFake, &fixedClassifier{result: shopeeResult()}, store, bugs)
	o.HandleMention(context.Background(), MentionEvent{
		Channel: "CRELAY", User: "U3", Text: "ticket", TS: "3.0", ThreadTS: relayTS,
	})

	require.Len(t, bugs.rows, 1)
	assert.Equal(t, "QR-042", bugs.rows[0].Code)
	assert.Equal(t, "Eksternal", bugs.rows[0].From)
	assert.Equal(t, "Budi", bugs.rows[0].Reporter)
	assert.Equal(t, originLink, bugs.rows[0].Link)

	// main ledger cross-referenced
	assert.Equal(t, "QR-042", store.updates["Q2 2025 Appcenter|"+originLink+"|"+ledger.ColRelatedTicket])

	texts := chatFake.sentTo("CRELAY")
	require.Len(t, texts, 1)
	assert.Equal(t, "Ticket created: QR-042", texts[0])
}

func TestTicketReply_DuplicateDoesNotRelink(t *testing.T) {
	originLink := "https://acme.slack.com/archives/CSRC/p1743992100000100"
	relayTS := "1743999999.000001"
	chatFake := &fakeChat{
		botID: "UBOT",
		threads: map[string]*chat.Thread{
			"CRELAY|" + relayTS: {
				ChannelID: "CRELAY",
				RootTS:    relayTS,
				Parent:    chat.Message{UserID: "UBOT", Text: "<" + originLink + ">", Timestamp: relayTS},
			},
			"CSRC|1743992100.000100": parentThread("CSRC", aprilTS, originLink),
		},
	}
	store := newFakeMainLedger("Q2 2025 Appcenter")
	store.sheets["Q2 2025 Appcenter"] = []ledger.Row{{Link: originLink}}
	bugs := &fakeBugLedger{code: "QR-043"}
	bugs.rows = []ledger.BugRow{{Code: "QR-042", Link: originLink}}

	o := NewOrchestrator(testConfig(), chatFake, &fixedClassifier{result: shopeeResult()}, store, bugs)
	o.HandleMention(context.Background(), MentionEvent{
		Channel: "CRELAY", User: "U3", Text: "ticket", TS: "3.0", ThreadTS: relayTS,
	})

	assert.Len(t, bugs.rows, 1)
	assert.Empty(t, store.updates)
}

func TestUnknownReply_DeferredNotice(t *testing.T) {
	chatFake := &fakeChat{}
	o := NewOrchestrator(testConfig(), chatFake, &fixedClassifier{result: shopeeResult()}, newFakeMainLedger(), &fakeBugLedger{})

	o.HandleMention(context.Background(), MentionEvent{
		Channel: "CSRC", User: "U2", Text: "terima kasih", TS: "2.0", ThreadTS: aprilTS,
	})

	texts := chatFake.sentTo("CSRC")
	require.Len(t, texts, 1)
	assert.Equal(t, msgDeferred, texts[0])
}
