package chat

import (
	"context"

	"github.com/slack-go/slack"

	"github.com/pqfbot/internal/retry"
)

// Message is one message in a fetched thread.
type Message struct {
	UserID    string
	Text      string
	Timestamp string
}

// Thread is a fully paginated conversation thread.
type Thread struct {
	ChannelID string
	RootTS    string
	Permalink string
	Parent    Message
	Replies   []Message
}

const repliesPageSize = 200

// Fetcher retrieves complete threads, following pagination cursors and
// backing off on rate limits.
type Fetcher struct {
	api API
	cfg retry.Config
}

func NewFetcher(api API) *Fetcher {
	return &Fetcher{api: api, cfg: retry.DefaultConfig()}
}

// FetchThread loads every message of the thread containing ref. When ref
// points at a reply rather than the root, the first page's thread
// timestamp re-anchors the fetch at the true root.
func (f *Fetcher) FetchThread(ctx context.Context, ref ThreadRef) (*Thread, error) {
	msgs, err := f.fetchAll(ctx, ref.ChannelID, ref.Timestamp)
	if err != nil {
		return nil, err
	}

	// A reply permalink without thread_ts resolves to the reply itself;
	// its thread timestamp names the root, so refetch from there.
	if len(msgs) > 0 {
		root := msgs[0].ThreadTimestamp
		if root != "" && root != ref.Timestamp {
			ref.Timestamp = root
			msgs, err = f.fetchAll(ctx, ref.ChannelID, ref.Timestamp)
			if err != nil {
				return nil, err
			}
		}
	}
	if len(msgs) == 0 {
		return &Thread{ChannelID: ref.ChannelID, RootTS: ref.Timestamp}, nil
	}

	thread := &Thread{
		ChannelID: ref.ChannelID,
		RootTS:    ref.Timestamp,
		Parent:    toMessage(msgs[0]),
	}
	for _, m := range msgs[1:] {
		thread.Replies = append(thread.Replies, toMessage(m))
	}

	link, err := f.permalink(ctx, ref.ChannelID, thread.Parent.Timestamp)
	if err != nil {
		return nil, err
	}
	thread.Permalink = link
	return thread, nil
}

func (f *Fetcher) fetchAll(ctx context.Context, channelID, ts string) ([]slack.Message, error) {
	var all []slack.Message
	cursor := ""
	for {
		var (
			page       []slack.Message
			hasMore    bool
			nextCursor string
		)
		err := retry.Do(ctx, f.cfg, func() error {
			var opErr error
			page, hasMore, nextCursor, opErr = f.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
				ChannelID: channelID,
				Timestamp: ts,
				Cursor:    cursor,
				Limit:     repliesPageSize,
			})
			return opErr
		}, rateLimitDelay)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if !hasMore || nextCursor == "" {
			break
		}
		cursor = nextCursor
	}
	return all, nil
}

func (f *Fetcher) permalink(ctx context.Context, channelID, ts string) (string, error) {
	var link string
	err := retry.Do(ctx, f.cfg, func() error {
		var opErr error
		link, opErr = f.api.GetPermalinkContext(ctx, &slack.PermalinkParameters{
			Channel: channelID,
			Ts:      ts,
		})
		return opErr
	}, rateLimitDelay)
	return link, err
}

func toMessage(m slack.Message) Message {
	return Message{UserID: m.User, Text: m.Text, Timestamp: m.Timestamp}
}
