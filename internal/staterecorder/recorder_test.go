package staterecorder

import (
	"testing"

	"github.com/CollaboraOnline/tilekit/internal/types"
	"github.com/stretchr/testify/require"
)

func TestRecorder_WholeInvalidationCollapses(t *testing.T) {
	r := New()
	r.Record(types.Callback{Kind: types.CallbackInvalidateTiles, Name: "invalidatetiles", Payload: "0, 0, 100, 100, 0, 0"})
	r.Record(types.Callback{Kind: types.CallbackInvalidateTiles, Name: "invalidatetiles", Payload: "0, 0, 200, 200, 0, 0"})

	require.True(t, r.Invalidate())
	replay := r.Replay(0)
	require.Len(t, replay, 1)
	require.Equal(t, "invalidatetiles", replay[0].Name)
}

func TestRecorder_StateLastWins(t *testing.T) {
	r := New()
	r.Record(types.Callback{Kind: types.CallbackStateChanged, Name: "statechanged", Payload: ".uno:Bold=false"})
	r.Record(types.Callback{Kind: types.CallbackStateChanged, Name: "statechanged", Payload: ".uno:Bold=true"})

	replay := r.Replay(0)
	require.Len(t, replay, 1)
	require.Equal(t, ".uno:Bold=true", replay[0].Payload)
}

func TestRecorder_OrderedEventsPreserveEveryOccurrence(t *testing.T) {
	r := New()
	r.Record(types.Callback{Kind: types.CallbackComment, Name: "comment", Payload: "add 1"})
	r.Record(types.Callback{Kind: types.CallbackComment, Name: "comment", Payload: "add 2"})
	r.Record(types.Callback{Kind: types.CallbackComment, Name: "comment", Payload: "add 3"})

	replay := r.Replay(0)
	require.Len(t, replay, 3)
	require.Equal(t, "add 1", replay[0].Payload)
	require.Equal(t, "add 2", replay[1].Payload)
	require.Equal(t, "add 3", replay[2].Payload)
}

func TestRecorder_SelfVsForeignViewEvents(t *testing.T) {
	r := New()
	// Own-view cursor callback: last-wins in recordedEvents.
	r.Record(types.Callback{ViewID: 1, Kind: types.CallbackCursorVisible, Name: "cursorvisible", Payload: "true"})
	// Peer-view cursor callback carries a foreign viewId in its payload.
	r.Record(types.Callback{ViewID: 1, Kind: types.CallbackViewCursor, Name: "viewcursor", Payload: `{"viewId":2,"x":10}`})
	r.Record(types.Callback{ViewID: 1, Kind: types.CallbackViewCursor, Name: "viewcursor", Payload: `{"viewId":2,"x":20}`})

	replay := r.Replay(0)
	require.Len(t, replay, 2) // own cursorvisible + one last-wins viewcursor for peer 2

	var viewCursorPayloads []string
	for _, cb := range replay {
		if cb.Name == "viewcursor" {
			viewCursorPayloads = append(viewCursorPayloads, cb.Payload)
		}
	}
	require.Equal(t, []string{`{"viewId":2,"x":20}`}, viewCursorPayloads)
}

func TestRecorder_DropsUnclassifiedCallbacks(t *testing.T) {
	r := New()
	r.Record(types.Callback{Kind: types.CallbackUnknown, Name: "something-else", Payload: "x"})
	require.Empty(t, r.Replay(0))
}

func TestRecorder_ResetClearsEverything(t *testing.T) {
	r := New()
	r.Record(types.Callback{Kind: types.CallbackInvalidateTiles, Name: "invalidatetiles", Payload: "0, 0, 1, 1, 0, 0"})
	r.Record(types.Callback{Kind: types.CallbackComment, Name: "comment", Payload: "x"})
	r.Reset()

	require.False(t, r.Invalidate())
	require.Empty(t, r.Replay(0))
}
