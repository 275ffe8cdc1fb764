package document

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/CollaboraOnline/tilekit/internal/engine"
	"github.com/CollaboraOnline/tilekit/internal/imagecache"
)

type fakeSender struct {
	lines [][]byte
}

func (s *fakeSender) Send(frame []byte) error {
	s.lines = append(s.lines, frame)
	return nil
}

func fakeEncode(pixels []byte, _, _, _ int) ([]byte, error) {
	out := make([]byte, len(pixels))
	copy(out, pixels)
	return out, nil
}

func TestDocument_CreateSessionIsIdempotent(t *testing.T) {
	d := New("doc1", "file:///doc.odt", zerolog.Nop(), engine.NewFake(), imagecache.DefaultSoftBudget, fakeEncode)

	require.True(t, d.CreateSession("sess1", &fakeSender{}))
	require.True(t, d.CreateSession("sess1", &fakeSender{}))
	require.Equal(t, 1, d.sessions.Size())
}

func TestDocument_OnLoadAllocatesViewAndBroadcastsViewInfo(t *testing.T) {
	eng := engine.NewFake()
	d := New("doc1", "file:///doc.odt", zerolog.Nop(), eng, imagecache.DefaultSoftBudget, fakeEncode)

	sender1 := &fakeSender{}
	d.CreateSession("sess1", sender1)
	require.NoError(t, d.OnLoad(context.Background(), "sess1", d.URI, "alice", "", engine.RenderOptions{}))

	sess1, ok := d.SessionByID("sess1")
	require.True(t, ok)
	require.GreaterOrEqual(t, sess1.ViewID, 0)
	require.NotEmpty(t, sender1.lines, "viewinfo broadcast expected after on_load")

	sender2 := &fakeSender{}
	d.CreateSession("sess2", sender2)
	require.NoError(t, d.OnLoad(context.Background(), "sess2", d.URI, "bob", "", engine.RenderOptions{}))

	sess2, ok := d.SessionByID("sess2")
	require.True(t, ok)
	require.NotEqual(t, sess1.ViewID, sess2.ViewID, "second caller gets a new view, not a reload")
}

func TestDocument_OnLoadWrongPasswordReportsError(t *testing.T) {
	eng := engine.NewFake()
	eng.SetRequiredPassword("secret")
	d := New("doc1", "file:///doc.odt", zerolog.Nop(), eng, imagecache.DefaultSoftBudget, fakeEncode)

	sender := &fakeSender{}
	d.CreateSession("sess1", sender)
	err := d.OnLoad(context.Background(), "sess1", d.URI, "alice", "wrong", engine.RenderOptions{})
	require.Error(t, err)
	require.NotEmpty(t, sender.lines)
	require.Contains(t, string(sender.lines[0]), "wrongpassword")
}

func TestDocument_OnLoadModifyPasswordRequiredReportsError(t *testing.T) {
	eng := engine.NewFake()
	eng.SetModifyPassword("secret")
	d := New("doc1", "file:///doc.odt", zerolog.Nop(), eng, imagecache.DefaultSoftBudget, fakeEncode)

	sender := &fakeSender{}
	d.CreateSession("sess1", sender)
	err := d.OnLoad(context.Background(), "sess1", d.URI, "alice", "", engine.RenderOptions{})
	require.Error(t, err)
	require.NotEmpty(t, sender.lines)
	require.Contains(t, string(sender.lines[0]), "passwordrequired:to-modify")
}

func TestDocument_OnUnloadRemovesSessionAndDestroysView(t *testing.T) {
	eng := engine.NewFake()
	d := New("doc1", "file:///doc.odt", zerolog.Nop(), eng, imagecache.DefaultSoftBudget, fakeEncode)

	d.CreateSession("sess1", &fakeSender{})
	require.NoError(t, d.OnLoad(context.Background(), "sess1", d.URI, "alice", "", engine.RenderOptions{}))

	require.NoError(t, d.OnUnload(context.Background(), "sess1"))
	_, ok := d.SessionByID("sess1")
	require.False(t, ok)
}

func TestDocument_OnUnloadCancelsOutstandingTilesForView(t *testing.T) {
	eng := engine.NewFake()
	d := New("doc1", "file:///doc.odt", zerolog.Nop(), eng, imagecache.DefaultSoftBudget, fakeEncode)

	d.CreateSession("sess1", &fakeSender{})
	require.NoError(t, d.OnLoad(context.Background(), "sess1", d.URI, "alice", "", engine.RenderOptions{}))
	sess1, _ := d.SessionByID("sess1")

	d.Queue().Put(fmt.Sprintf("tile nviewid=%d part=0 width=256 height=256 tileposx=0 tileposy=0 tilewidth=256 tileheight=256 ver=1", sess1.ViewID))
	require.Equal(t, 1, d.Queue().Len())

	require.NoError(t, d.OnUnload(context.Background(), "sess1"))
	require.Equal(t, 0, d.Queue().Len(), "departing view's outstanding tile must be cancelled")
}

func TestDocument_PurgeSessionsStopsWhenEmpty(t *testing.T) {
	eng := engine.NewFake()
	d := New("doc1", "file:///doc.odt", zerolog.Nop(), eng, imagecache.DefaultSoftBudget, fakeEncode)
	d.CreateSession("sess1", &fakeSender{})

	sess1, _ := d.SessionByID("sess1")
	sess1.MarkClosing()

	remaining := d.PurgeSessions()
	require.Equal(t, 0, remaining)
}
