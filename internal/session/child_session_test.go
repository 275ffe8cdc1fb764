package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CollaboraOnline/tilekit/internal/engine"
	"github.com/CollaboraOnline/tilekit/internal/types"
)

type recordingSender struct {
	lines [][]byte
}

func (s *recordingSender) Send(frame []byte) error {
	s.lines = append(s.lines, frame)
	return nil
}

func TestChildSession_ActiveForwardsLive(t *testing.T) {
	sender := &recordingSender{}
	s := New("sess1", sender)

	s.DeliverCallback(types.Callback{Kind: types.CallbackStateChanged, Name: "statechanged", Payload: ".uno:Bold=true"})
	require.Len(t, sender.lines, 1)
	require.Contains(t, string(sender.lines[0]), "statechanged: .uno:Bold=true")
}

func TestChildSession_InactiveRecordsAndReplaysOnActivate(t *testing.T) {
	sender := &recordingSender{}
	s := New("sess1", sender)
	s.Deactivate()

	s.DeliverCallback(types.Callback{Kind: types.CallbackInvalidateTiles, Name: "invalidatetiles", Payload: "0, 0, 100, 100, 0"})
	require.Empty(t, sender.lines, "inactive session must not forward live")

	s.Activate(0)
	require.Len(t, sender.lines, 1)
	require.True(t, s.IsActive())
}

func TestChildSession_SaveAcknowledgementAlwaysForwarded(t *testing.T) {
	sender := &recordingSender{}
	s := New("sess1", sender)
	s.Deactivate()

	s.DeliverCallback(types.Callback{Kind: types.CallbackUnoCommandResult, Name: "unocommandresult", Payload: `{"commandName":".uno:Save","success":true}`})
	require.Len(t, sender.lines, 1, "save result must forward even while inactive")
}

func TestChildSession_HandleChildCommandPostsUnoCommand(t *testing.T) {
	eng := engine.NewFake()
	require.NoError(t, eng.Load(context.Background(), "file:///doc.odt", "", engine.RenderOptions{}))
	viewID, err := eng.CreateView(context.Background())
	require.NoError(t, err)

	s := New("sess1", &recordingSender{})
	s.SetViewID(viewID)

	require.NoError(t, s.HandleChildCommand(context.Background(), eng, "uno .uno:Bold"))
	require.Equal(t, []string{".uno:Bold "}, eng.Commands)
}

func TestChildSession_HandleChildCommandRoutesKeyMouseWindowKey(t *testing.T) {
	eng := engine.NewFake()
	require.NoError(t, eng.Load(context.Background(), "file:///doc.odt", "", engine.RenderOptions{}))
	viewID, err := eng.CreateView(context.Background())
	require.NoError(t, err)

	s := New("sess1", &recordingSender{})
	s.SetViewID(viewID)

	require.NoError(t, s.HandleChildCommand(context.Background(), eng, "key type=input char=97 key=0"))
	require.NoError(t, s.HandleChildCommand(context.Background(), eng, "mouse type=buttondown x=10 y=20 count=1 buttons=1 modifier=0"))
	require.NoError(t, s.HandleChildCommand(context.Background(), eng, "windowkey winid=5 type=input char=98 key=0"))

	require.Equal(t, []string{
		"key type=input char=97 key=0",
		"mouse type=buttondown x=10 y=20 count=1 buttons=1 modifier=0",
		"windowkey winid=5 type=input char=98 key=0",
	}, eng.Commands)
}
