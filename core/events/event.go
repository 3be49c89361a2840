package events

// Event represents a structured state change emitted by the marketplace
// engines.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (indexers, the
// reputation collaborator, UIs). Events are the only way external observers
// learn of state changes.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
// Engines default to it so event wiring stays optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
