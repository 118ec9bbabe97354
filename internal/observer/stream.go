package observer

import (
	"sync"

	"github.com/taptalk/commlog/internal/storage"
)

// Stream broadcasts records to live subscribers such as an SSE connection.
// A subscriber that falls behind misses records rather than stalling the
// logger.
type Stream struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan storage.Interaction
}

// NewStream creates an empty hub.
func NewStream() *Stream {
	return &Stream{subs: make(map[int]chan storage.Interaction)}
}

// Subscribe registers a subscriber with the given buffer. The returned
// cancel function unregisters it and closes the channel.
func (s *Stream) Subscribe(buffer int) (<-chan storage.Interaction, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan storage.Interaction, buffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the number of active subscribers.
func (s *Stream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Notify delivers rec to every subscriber that has room.
func (s *Stream) Notify(rec storage.Interaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- rec:
		default:
		}
	}
}
