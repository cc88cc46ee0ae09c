package engine

import "sync"

// EventType labels the typed events the engine emits.
type EventType string

const (
	EventBotStarted    EventType = "BOT_STARTED"
	EventBotStopped    EventType = "BOT_STOPPED"
	EventTradeOpened   EventType = "TRADE_OPENED"
	EventTradeClosed   EventType = "TRADE_CLOSED"
	EventPriceUpdate   EventType = "PRICE_UPDATE"
	EventConfigUpdated EventType = "CONFIG_UPDATED"
	EventLog           EventType = "LOG"
	EventError         EventType = "ERROR"
)

// Event is one outbound notification. The transport layer broadcasts each
// event verbatim to connected observers.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

// eventBus fans events out to any number of subscriber channels.
type eventBus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[int]chan Event)}
}

// subscribe returns a receive channel and a cancel func. The channel is
// buffered; a subscriber that stops draining loses events rather than
// blocking the engine.
func (b *eventBus) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, 64)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (b *eventBus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default: // subscriber is not keeping up
		}
	}
}
