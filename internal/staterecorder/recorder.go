// Package staterecorder implements the per-session replay memory of
// spec.md §3 StateRecorder / §4.4: the minimum set of callbacks an
// inactive session needs to catch up on reactivation without a full
// reload.
package staterecorder

import (
	"strconv"

	"github.com/CollaboraOnline/tilekit/internal/protocol"
	"github.com/CollaboraOnline/tilekit/internal/types"
)

// Recorder accumulates callbacks for one inactive session. It is not
// safe for concurrent use; the owning ChildSession serializes access
// (§5: callbacks reach it one at a time from the dispatcher thread).
type Recorder struct {
	invalidate         bool
	recordedEvents     map[string]types.Callback
	recordedViewEvents map[int]map[string]types.Callback
	recordedStates     map[string]string
	recordedVector     []types.Callback
}

// New creates an empty recorder.
func New() *Recorder {
	return &Recorder{
		recordedEvents:     make(map[string]types.Callback),
		recordedViewEvents: make(map[int]map[string]types.Callback),
		recordedStates:     make(map[string]string),
	}
}

// Record files a callback under the policy of §4.4. Callers must apply
// the ".uno:Save" unocommandresult exception themselves before calling
// Record (that callback is always forwarded live, never recorded).
func (r *Recorder) Record(cb types.Callback) {
	switch {
	case cb.Kind == types.CallbackInvalidateTiles:
		r.invalidate = true

	case cb.Kind == types.CallbackStateChanged:
		name, value := protocol.ParseUnoState(cb.Payload)
		r.recordedStates[name] = value

	case cb.Kind.IsOrderedEvent():
		r.recordedVector = append(r.recordedVector, cb)

	case cb.Kind.IsReplayEvent():
		if foreignView, ok := foreignViewOf(cb); ok && foreignView != cb.ViewID {
			perView, ok := r.recordedViewEvents[foreignView]
			if !ok {
				perView = make(map[string]types.Callback)
				r.recordedViewEvents[foreignView] = perView
			}
			perView[cb.Name] = cb
			return
		}
		r.recordedEvents[cb.Name] = cb

	default:
		// Drop while inactive (§4.4 "All others: drop").
	}
}

// foreignViewOf extracts the view-scoped id embedded in a view-cursor
// family payload, distinguishing the peer it describes from cb.ViewID,
// the session the callback was addressed to.
func foreignViewOf(cb types.Callback) (int, bool) {
	if !cb.Kind.IsViewScoped() {
		return 0, false
	}
	raw := protocol.ExtractViewIDField(cb.Payload)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Replay returns, in order, the sequence of callbacks a reactivating
// session must emit: the whole-document invalidation (if any), per-view
// events, self events, states, then the ordered event vector (§4.4).
// It does not clear the recorder; call Reset after a successful replay.
func (r *Recorder) Replay(part int) []types.Callback {
	var out []types.Callback

	if r.invalidate {
		out = append(out, types.Callback{
			ViewID:  types.BroadcastView,
			Kind:    types.CallbackInvalidateTiles,
			Name:    "invalidatetiles",
			Payload: protocol.FormatInvalidationPayload(types.WholePart(part, 0)),
		})
	}

	for _, perView := range r.recordedViewEvents {
		for _, cb := range perView {
			out = append(out, cb)
		}
	}

	for _, cb := range r.recordedEvents {
		out = append(out, cb)
	}

	for name, payload := range r.recordedStates {
		out = append(out, types.Callback{Kind: types.CallbackStateChanged, Name: "statechanged", Payload: name + "=" + payload})
	}

	out = append(out, r.recordedVector...)

	return out
}

// Reset clears all recorded state after a successful replay.
func (r *Recorder) Reset() {
	r.invalidate = false
	r.recordedEvents = make(map[string]types.Callback)
	r.recordedViewEvents = make(map[int]map[string]types.Callback)
	r.recordedStates = make(map[string]string)
	r.recordedVector = nil
}

// Invalidate reports whether a whole-document invalidation is pending.
func (r *Recorder) Invalidate() bool { return r.invalidate }
