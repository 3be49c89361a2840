package types

// Event is the wire form of a settlement notification. Type names the
// lifecycle transition and Attributes carries its string-encoded payload.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
