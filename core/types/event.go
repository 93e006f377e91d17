package types

// Event is the wire form of a ledger event: a dotted type name plus a flat
// set of string attributes. Emitters in core/events build these; subscribers
// only ever see this shape.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
