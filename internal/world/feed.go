package world

import (
	"sync"
	"time"
)

// FeedMsg is one committed append, as delivered to feed subscribers.
type FeedMsg struct {
	WorldID     int64         `json:"world_id"`
	Changes     []BlockChange `json:"changes"`
	LastUpdated time.Time     `json:"last_updated"`
}

// Feed fans committed appends out to live subscribers, keyed by world id.
// Delivery is best effort: a subscriber that falls behind its buffer misses
// messages rather than stalling the writer.
type Feed struct {
	buf int

	mu   sync.Mutex
	subs map[int64]map[chan FeedMsg]struct{}
}

func NewFeed(buf int) *Feed {
	if buf <= 0 {
		buf = 16
	}
	return &Feed{
		buf:  buf,
		subs: make(map[int64]map[chan FeedMsg]struct{}),
	}
}

// Subscribe registers a listener for one world. The returned cancel must be
// called when the subscriber goes away; it closes the channel.
func (f *Feed) Subscribe(worldID int64) (<-chan FeedMsg, func()) {
	ch := make(chan FeedMsg, f.buf)

	f.mu.Lock()
	set := f.subs[worldID]
	if set == nil {
		set = make(map[chan FeedMsg]struct{})
		f.subs[worldID] = set
	}
	set[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if set, ok := f.subs[worldID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(f.subs, worldID)
			}
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a committed batch to every subscriber of the world.
func (f *Feed) Publish(worldID int64, changes []BlockChange, at time.Time) {
	msg := FeedMsg{WorldID: worldID, Changes: changes, LastUpdated: at}

	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs[worldID] {
		select {
		case ch <- msg:
		default:
		}
	}
}
