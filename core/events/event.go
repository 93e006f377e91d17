package events

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer collects events during a unit of work so they can be flushed to a
// real emitter only after the work commits. A discarded buffer simply drops
// its contents.
type Buffer struct {
	pending []Event
}

func (b *Buffer) Emit(evt Event) {
	b.pending = append(b.pending, evt)
}

// Flush forwards every buffered event to the target emitter and resets the
// buffer.
func (b *Buffer) Flush(target Emitter) {
	if target == nil {
		b.pending = nil
		return
	}
	for _, evt := range b.pending {
		target.Emit(evt)
	}
	b.pending = nil
}
