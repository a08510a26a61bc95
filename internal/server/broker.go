package server

import (
	"encoding/json"
	"sync"
)

type sseMessage struct {
	event string
	data  []byte
}

// Broker is an in-process pub/sub for the spectator stream, keyed by room
// code. It implements realtime.Publisher.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan sseMessage]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan sseMessage]struct{}),
	}
}

// Subscribe returns a channel that receives events for the given room.
func (b *Broker) Subscribe(room string) chan sseMessage {
	ch := make(chan sseMessage, 16)
	b.mu.Lock()
	if b.subs[room] == nil {
		b.subs[room] = make(map[chan sseMessage]struct{})
	}
	b.subs[room][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(room string, ch chan sseMessage) {
	b.mu.Lock()
	delete(b.subs[room], ch)
	if len(b.subs[room]) == 0 {
		delete(b.subs, room)
	}
	b.mu.Unlock()
}

// Publish sends an event to every subscriber of the room.
func (b *Broker) Publish(room, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	msg := sseMessage{event: event, data: raw}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[room] {
		select {
		case ch <- msg:
		default:
			// Drop if subscriber is slow.
		}
	}
}

// Subscribers reports how many streams are open for room.
func (b *Broker) Subscribers(room string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[room])
}
