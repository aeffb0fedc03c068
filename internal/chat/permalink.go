package chat

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	archiveRe = regexp.MustCompile(`/archives/([A-Z0-9]+)/p(\d+)`)
	linkRe    = regexp.MustCompile(`https://[^\s<>|]+/archives/[A-Z0-9]+/p\d+[^\s<>|]*`)
)

// ThreadRef identifies a message within a channel.
type ThreadRef struct {
	ChannelID string
	Timestamp string
}

// ResolvePermalink extracts the channel and message timestamp from a Slack
// archive permalink. The path timestamp is the message's own; a thread_ts
// query parameter, when present, points at the thread root and wins.
func ResolvePermalink(link string) (ThreadRef, error) {
	m := archiveRe.FindStringSubmatch(link)
	if m == nil {
		return ThreadRef{}, fmt.Errorf("not a message permalink: %s", link)
	}
	ref := ThreadRef{ChannelID: m[1], Timestamp: dotTimestamp(m[2])}

	if u, err := url.Parse(link); err == nil {
		if ts := u.Query().Get("thread_ts"); ts != "" {
			ref.Timestamp = ts
		}
	}
	return ref, nil
}

// ExtractLink returns the first Slack message permalink found in text, or
// the empty string. Slack wraps pasted links in angle brackets and may
// append a |label suffix, both of which are stripped.
func ExtractLink(text string) string {
	link := linkRe.FindString(text)
	if link == "" {
		return ""
	}
	if i := strings.IndexByte(link, '|'); i >= 0 {
		link = link[:i]
	}
	return strings.TrimRight(link, ">")
}

// dotTimestamp converts the permalink's compact digit form (p1234567890123456)
// into the API's dotted form (1234567890.123456).
func dotTimestamp(raw string) string {
	if len(raw) <= 10 {
		return raw
	}
	return raw[:len(raw)-6] + "." + raw[len(raw)-6:]
}
