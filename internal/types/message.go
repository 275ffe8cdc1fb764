package types

// MessageKind discriminates the tagged-variant message type used at the
// queue boundary (spec.md §9 Design Notes: "a redesign should introduce a
// tagged-variant message type"). Coalescing rules are pattern matches on
// Kind rather than re-parsing strings at every layer.
type MessageKind int

const (
	MessageRaw MessageKind = iota
	MessageTile
	MessageCallback
	MessageChildCommand
	MessageEof
)

// Message is one queued unit of work: either a tile render request, an
// engine callback, a command addressed to a specific ChildSession, the
// end-of-stream sentinel, or an opaque raw line for anything the queue
// does not special-case (§4.1 "Everything else: append").
type Message struct {
	Kind MessageKind

	// Tile is populated when Kind == MessageTile.
	Tile TileDesc

	// Callback is populated when Kind == MessageCallback.
	Callback Callback

	// ChildSessionID/ChildCommand are populated when Kind == MessageChildCommand
	// (wire form: "child-<sessionid> <inner message>", §4.3).
	ChildSessionID string
	ChildCommand   string

	// Raw is the text DumpState prints: the original line for MessageRaw,
	// the inner command for MessageChildCommand, TileDesc.String() for
	// MessageTile, "eof" for MessageEof, and empty for MessageCallback.
	Raw string
}

// NewTileMessage wraps a tile request.
func NewTileMessage(t TileDesc) Message {
	return Message{Kind: MessageTile, Tile: t, Raw: t.String()}
}

// NewCallbackMessage wraps a callback record.
func NewCallbackMessage(c Callback) Message {
	return Message{Kind: MessageCallback, Callback: c}
}

// NewChildCommandMessage wraps a message addressed to one session.
func NewChildCommandMessage(sessionID, inner string) Message {
	return Message{Kind: MessageChildCommand, ChildSessionID: sessionID, ChildCommand: inner, Raw: inner}
}

// NewRawMessage wraps an opaque, non-special-cased line.
func NewRawMessage(line string) Message {
	return Message{Kind: MessageRaw, Raw: line}
}

// EofMessage is the sentinel that terminates the dispatcher loop (§4.3).
var EofMessage = Message{Kind: MessageEof, Raw: "eof"}

// IsPreview reports whether m is a tile message carrying a preview
// marker.
func (m Message) IsPreview() bool {
	return m.Kind == MessageTile && m.Tile.IsPreview()
}
