package router

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/wardenlabs/gamewarden/internal/gamelog"
)

const subscriberBuffer = 32

// FeedEvent is the JSON frame pushed to live feed subscribers.
type FeedEvent struct {
	GuildID string         `json:"guild_id"`
	Event   *gamelog.Event `json:"event"`
	At      time.Time      `json:"at"`
}

// Feed fans events out to live subscribers. Slow subscribers lose frames
// rather than stalling the router.
type Feed struct {
	mu   sync.Mutex
	subs map[chan []byte]string
}

func NewFeed() *Feed {
	return &Feed{subs: map[chan []byte]string{}}
}

// Subscribe registers a listener for one guild's events, or all guilds when
// guildID is empty. The returned cancel closes the channel.
func (f *Feed) Subscribe(guildID string) (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)
	f.mu.Lock()
	f.subs[ch] = guildID
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (f *Feed) Broadcast(guildID string, ev *gamelog.Event) {
	frame, err := json.Marshal(&FeedEvent{GuildID: guildID, Event: ev, At: time.Now().UTC()})
	if err != nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for ch, want := range f.subs {
		if want != "" && want != guildID {
			continue
		}
		select {
		case ch <- frame:
		default:
		}
	}
}
