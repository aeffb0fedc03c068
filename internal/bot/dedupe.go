package bot

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const dedupeCapacity = 4096

// EventFilter suppresses duplicate webhook deliveries of the same mention.
// Keys combine channel, event timestamp, and a hash of the text, and age
// out of the window automatically.
type EventFilter struct {
	seen *expirable.LRU[string, struct{}]
}

func NewEventFilter(window time.Duration) *EventFilter {
	return &EventFilter{
		seen: expirable.NewLRU[string, struct{}](dedupeCapacity, nil, window),
	}
}

// Seen records the event and reports whether it was already present.
func (f *EventFilter) Seen(channel, ts, text string) bool {
	sum := sha256.Sum256([]byte(text))
	key := channel + "|" + ts + "|" + hex.EncodeToString(sum[:])
	if _, ok := f.seen.Get(key); ok {
		return true
	}
	f.seen.Add(key, struct{}{})
	return false
}
