package session

// Event represents a session lifecycle event.
// Minimal and stable: name + session handle and optional fields via key/values.
type Event struct {
	Name    string
	Session uint64
	Fields  map[string]any
}

// EventPublisher receives events from sessions. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
