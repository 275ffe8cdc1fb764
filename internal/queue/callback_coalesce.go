package queue

import (
	"github.com/CollaboraOnline/tilekit/internal/protocol"
	"github.com/CollaboraOnline/tilekit/internal/types"
)

// PutCallback enqueues a callback from the engine after applying the
// callback-type-specific coalescing rules of §4.1.1.
func (q *TileQueue) PutCallback(viewID int, callbackType, payload string) {
	cb := protocol.ParsePutCallback(viewID, callbackType, payload)

	q.base.Put(func(items []types.Message) []types.Message {
		switch {
		case cb.Kind == types.CallbackInvalidateTiles:
			return coalesceInvalidateTiles(items, cb)
		case cb.Kind == types.CallbackStateChanged:
			return coalesceStateChanged(items, cb)
		case cb.Kind.IsLastWinsCursorFamily():
			return coalesceCursorFamily(items, cb)
		default:
			return append(items, types.NewCallbackMessage(cb))
		}
	})
}

// coalesceInvalidateTiles implements §4.1.1's invalidate_tiles rule:
// drop queued rectangles fully covered by the new one; merge intersecting
// rectangles into their union when the union fits the merge budget
// (§8 properties 2-3, Scenarios B/C).
func coalesceInvalidateTiles(items []types.Message, cb types.Callback) []types.Message {
	incoming, err := protocol.ParseInvalidationPayload(cb.Payload)
	if err != nil {
		return append(items, types.NewCallbackMessage(cb))
	}

	out := items[:0:0]
	for _, m := range items {
		if m.Kind != types.MessageCallback || m.Callback.Kind != types.CallbackInvalidateTiles ||
			m.Callback.ViewID != cb.ViewID {
			out = append(out, m)
			continue
		}
		existing, err := protocol.ParseInvalidationPayload(m.Callback.Payload)
		if err != nil || existing.Part != incoming.Part || existing.Mode != incoming.Mode {
			out = append(out, m)
			continue
		}
		switch {
		case incoming.Contains(existing):
			// Drop: fully covered by the new rectangle.
			continue
		case existing.Intersects(incoming):
			union := existing.Union(incoming)
			if union.Width <= mergeBudgetW && union.Height <= mergeBudgetH {
				incoming = union
				continue
			}
			out = append(out, m)
		default:
			out = append(out, m)
		}
	}
	cb.Payload = protocol.FormatInvalidationPayload(incoming)
	return append(out, types.NewCallbackMessage(cb))
}

// coalesceStateChanged implements §4.1.1's state_changed rule: last-wins
// per UNO command and view, except .uno:ModifiedStatus which is never
// coalesced (§8 property 4, Scenario D).
func coalesceStateChanged(items []types.Message, cb types.Callback) []types.Message {
	name, _ := protocol.ParseUnoState(cb.Payload)
	if name == protocol.ModifiedStatusCommand {
		return append(items, types.NewCallbackMessage(cb))
	}

	out := items[:0:0]
	for _, m := range items {
		if m.Kind == types.MessageCallback && m.Callback.Kind == types.CallbackStateChanged &&
			m.Callback.ViewID == cb.ViewID {
			existingName, _ := protocol.ParseUnoState(m.Callback.Payload)
			if existingName == name {
				continue
			}
		}
		out = append(out, m)
	}
	return append(out, types.NewCallbackMessage(cb))
}

// coalesceCursorFamily implements §4.1.1's cursor/selection family rule:
// last-wins per (view, type), and for view-scoped variants also per the
// foreign view id embedded in the payload.
func coalesceCursorFamily(items []types.Message, cb types.Callback) []types.Message {
	foreignView := ""
	if cb.Kind.IsViewScoped() {
		foreignView = protocol.ExtractViewIDField(cb.Payload)
	}

	out := items[:0:0]
	for _, m := range items {
		if m.Kind == types.MessageCallback && m.Callback.Kind == cb.Kind && m.Callback.ViewID == cb.ViewID {
			if !cb.Kind.IsViewScoped() || protocol.ExtractViewIDField(m.Callback.Payload) == foreignView {
				continue
			}
		}
		out = append(out, m)
	}
	return append(out, types.NewCallbackMessage(cb))
}
