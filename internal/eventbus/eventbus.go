package eventbus

import (
	"encoding/json"
	"go.uber.org/zap"
	"sync"
	"time"
	"warden/logger"
)

// All receives every event regardless of its identifier.
const All = "*"

const (
	subscriberBuffer = 256
	backlogSize      = 100
)

type (
	Bus interface {
		Register(identifier string) chan Event
		// Subscribe registers like Register and returns the backlog as of that
		// moment. Every event is either in the backlog or delivered to the channel, never both.
		Subscribe(identifier string) ([]Event, chan Event)
		Unregister(identifier string, ch chan Event)
		Broadcast(identifier string, evType Type, message string)
		BroadcastWithData(identifier string, evType Type, message string, data interface{})
		Recent(identifier string) []Event
	}

	Event struct {
		Type       Type            `json:"type"`
		Identifier string          `json:"identifier"`
		Message    string          `json:"message"`
		Data       json.RawMessage `json:"data,omitempty"`
		Time       time.Time       `json:"time"`
	}

	Type string
)

const (
	Error    Type = "error"
	Info     Type = "info"
	Success  Type = "success"
	Complete Type = "complete"
	Alert    Type = "alert"
)

type eventPublisher struct {
	events  map[string][]chan Event
	backlog *EvictingList[Event]
	lock    sync.Mutex
}

func New() Bus {
	return &eventPublisher{
		events:  make(map[string][]chan Event),
		backlog: NewEvictingList[Event](backlogSize),
	}
}

func (e *eventPublisher) Register(identifier string) chan Event {
	e.lock.Lock()
	defer e.lock.Unlock()

	ch := make(chan Event, subscriberBuffer)
	e.events[identifier] = append(e.events[identifier], ch)
	return ch
}

func (e *eventPublisher) Subscribe(identifier string) ([]Event, chan Event) {
	e.lock.Lock()
	defer e.lock.Unlock()

	ch := make(chan Event, subscriberBuffer)
	e.events[identifier] = append(e.events[identifier], ch)
	return e.recent(identifier), ch
}

func (e *eventPublisher) Unregister(identifier string, ch chan Event) {
	e.lock.Lock()
	defer e.lock.Unlock()

	clients := e.events[identifier]
	for i, next := range clients {
		if next == ch {
			e.events[identifier] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(e.events[identifier]) == 0 {
		delete(e.events, identifier)
	}
}

func (e *eventPublisher) Broadcast(identifier string, evType Type, message string) {
	e.publish(Event{
		Type:       evType,
		Identifier: identifier,
		Message:    message,
	})
}

func (e *eventPublisher) BroadcastWithData(identifier string, evType Type, message string, data interface{}) {
	ev := Event{
		Type:       evType,
		Identifier: identifier,
		Message:    message,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			logger.Error("failed to encode event data", zap.String("identifier", identifier), zap.Error(err))
		} else {
			ev.Data = raw
		}
	}
	e.publish(ev)
}

// Recent returns the backlog of events for identifier, oldest first.
func (e *eventPublisher) Recent(identifier string) []Event {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.recent(identifier)
}

func (e *eventPublisher) recent(identifier string) []Event {
	values := e.backlog.Values()
	if identifier == All {
		return values
	}
	out := make([]Event, 0, len(values))
	for _, ev := range values {
		if ev.Identifier == identifier {
			out = append(out, ev)
		}
	}
	return out
}

// publish never blocks: a subscriber whose buffer is full misses the event.
func (e *eventPublisher) publish(ev Event) {
	ev.Time = time.Now().UTC()

	e.lock.Lock()
	defer e.lock.Unlock()

	e.backlog.Add(ev)

	clients := append([]chan Event(nil), e.events[ev.Identifier]...)
	if ev.Identifier != All {
		clients = append(clients, e.events[All]...)
	}
	for _, ch := range clients {
		select {
		case ch <- ev:
		default:
			logger.Warn("dropping event for slow subscriber",
				zap.String("identifier", ev.Identifier),
				zap.String("type", string(ev.Type)))
		}
	}
}
