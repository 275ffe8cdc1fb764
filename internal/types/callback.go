package types

// CallbackKind enumerates the engine callback types relevant to queue
// coalescing (§3 Callback record, §4.1.1). Values not listed here still
// flow through the queue; they are just never special-cased.
type CallbackKind int

const (
	CallbackUnknown CallbackKind = iota
	CallbackInvalidateTiles
	CallbackStateChanged
	CallbackInvalidateVisibleCursor
	CallbackCursorVisible
	CallbackCellCursor
	CallbackViewCursor
	CallbackViewCellCursor
	CallbackViewCursorVisible
	CallbackDocumentSizeChanged
	CallbackStatusIndicatorSetValue
	CallbackSelectionChanged
	CallbackMousePointer
	CallbackUnoCommandResult
	CallbackRedlineTableSizeChanged
	CallbackRedlineTableEntryModified
	CallbackComment
	CallbackViewInfo
	CallbackHeader
	CallbackCellAddress
	CallbackReferenceMarks
	CallbackFormula
)

// BroadcastView is the sentinel view id meaning "all sessions of the
// document" (§3 Callback record).
const BroadcastView = -1

// Callback is a single notification emitted by the document engine and
// queued for delivery to one or all sessions (§3 Callback record).
type Callback struct {
	ViewID  int
	Kind    CallbackKind
	Name    string // raw wire name, e.g. "invalidatetiles"
	Payload string
}

// IsLastWinsCursorFamily reports whether k belongs to the cursor/selection
// family that is coalesced last-wins per (view, type) and, for
// view-scoped variants, per foreign view id embedded in the payload
// (§4.1.1).
func (k CallbackKind) IsLastWinsCursorFamily() bool {
	switch k {
	case CallbackInvalidateVisibleCursor, CallbackCursorVisible, CallbackCellCursor,
		CallbackViewCursor, CallbackViewCellCursor, CallbackViewCursorVisible,
		CallbackDocumentSizeChanged, CallbackStatusIndicatorSetValue:
		return true
	default:
		return false
	}
}

// IsViewScoped reports whether k's payload carries a foreign viewId used
// to key recorded_view_events separately from recorded_events (§3, §4.4).
func (k CallbackKind) IsViewScoped() bool {
	switch k {
	case CallbackViewCursor, CallbackViewCellCursor, CallbackViewCursorVisible:
		return true
	default:
		return false
	}
}

// IsReplayEvent reports whether k belongs to the broader cursor/selection/
// header/cell-address/reference-marks/formula family that StateRecorder
// keeps as last-wins "recorded_events" for an inactive session (§4.4).
// This is a superset of IsLastWinsCursorFamily: the recorder's replay
// obligations are wider than the ingress queue's cursor-coalescing rule.
func (k CallbackKind) IsReplayEvent() bool {
	if k.IsLastWinsCursorFamily() {
		return true
	}
	switch k {
	case CallbackSelectionChanged, CallbackHeader, CallbackCellAddress,
		CallbackReferenceMarks, CallbackFormula, CallbackMousePointer:
		return true
	default:
		return false
	}
}

// IsOrderedEvent reports whether k belongs to the family that must be kept
// in recorded_events_vector with every occurrence preserved (§3, §4.4).
func (k CallbackKind) IsOrderedEvent() bool {
	switch k {
	case CallbackRedlineTableSizeChanged, CallbackRedlineTableEntryModified, CallbackComment:
		return true
	default:
		return false
	}
}
