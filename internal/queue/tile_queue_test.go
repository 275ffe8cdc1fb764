package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func popNow(t *testing.T, q *TileQueue) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, ok := q.Pop(ctx)
	require.True(t, ok, "expected Pop to return an item")
	return res
}

func TestTileQueue_DedupAtScroll(t *testing.T) {
	q := NewTileQueue()
	for k := 1; k <= 100; k++ {
		q.Put(fmt.Sprintf("tile nviewid=0 part=0 width=256 height=256 tileposx=0 tileposy=0 tilewidth=3840 tileheight=3840 ver=%d", k))
	}
	require.Equal(t, 1, q.Len())

	res := popNow(t, q)
	require.NotNil(t, res.Combined)
	tile, ok := res.Combined.Single()
	require.True(t, ok)
	require.Equal(t, 100, tile.Version)
}

func TestTileQueue_InvalidationContainment(t *testing.T) {
	q := NewTileQueue()
	q.PutCallback(1, "invalidatetiles", "0, 0, 1000, 1000, 0, 0")
	q.PutCallback(1, "invalidatetiles", "0, 0, 2000, 2000, 0, 0")

	require.Equal(t, 1, q.Len())
	res := popNow(t, q)
	require.NotNil(t, res.Other)
	require.Equal(t, "0, 0, 2000, 2000, 0, 0", res.Other.Callback.Payload)
}

func TestTileQueue_InvalidationMerge_ScenarioB(t *testing.T) {
	q := NewTileQueue()
	q.PutCallback(1, "invalidatetiles", "0, 0, 1000, 1000, 0, 0")
	q.PutCallback(1, "invalidatetiles", "500, 500, 1000, 1000, 0, 0")

	require.Equal(t, 1, q.Len())
	res := popNow(t, q)
	require.Equal(t, "0, 0, 1500, 1500, 0, 0", res.Other.Callback.Payload)
}

func TestTileQueue_InvalidationMergeBudgetRefused_ScenarioC(t *testing.T) {
	q := NewTileQueue()
	q.PutCallback(1, "invalidatetiles", "0, 0, 10000, 100, 0, 0")
	q.PutCallback(1, "invalidatetiles", "0, 10000, 100, 100, 0, 0")

	require.Equal(t, 2, q.Len())
}

func TestTileQueue_StateChangeCoalescing_ScenarioD(t *testing.T) {
	q := NewTileQueue()
	q.PutCallback(1, "statechanged", ".uno:Bold=false")
	q.PutCallback(1, "statechanged", ".uno:Bold=true")
	require.Equal(t, 1, q.Len())
	res := popNow(t, q)
	require.Equal(t, ".uno:Bold=true", res.Other.Callback.Payload)

	q2 := NewTileQueue()
	q2.PutCallback(1, "statechanged", ".uno:ModifiedStatus=true")
	q2.PutCallback(1, "statechanged", ".uno:ModifiedStatus=true")
	require.Equal(t, 2, q2.Len())
}

func TestTileQueue_TextInputConcatenation(t *testing.T) {
	q := NewTileQueue()
	q.Put("textinput id=7 text=abc")
	q.Put("textinput id=7 text=de")

	require.Equal(t, 1, q.Len())
	res := popNow(t, q)
	require.Equal(t, "textinput id=7 text=abcde", res.Other.Raw)
}

func TestTileQueue_TextInputNotMergedAcrossKey(t *testing.T) {
	q := NewTileQueue()
	q.Put("textinput id=7 text=abc")
	q.Put("key type=input char=97 key=0")
	q.Put("textinput id=7 text=de")

	require.Equal(t, 3, q.Len())
}

func TestTileQueue_Priority_ScenarioE(t *testing.T) {
	q := NewTileQueue()
	q.UpdateCursor(1, 0, 0, 0, 100, 100)
	q.UpdateCursor(2, 0, 1000, 1000, 100, 100) // newer => higher priority

	q.Put("tile nviewid=0 part=0 width=256 height=256 tileposx=0 tileposy=0 tilewidth=256 tileheight=256 ver=1")
	q.Put("tile nviewid=0 part=0 width=256 height=256 tileposx=1024 tileposy=1024 tilewidth=256 tileheight=256 ver=1")

	// Both tiles are combinable, so Pop batches them; the higher-priority
	// tile leads the batch.
	res := popNow(t, q)
	require.NotNil(t, res.Combined)
	require.Len(t, res.Combined.Positions, 2)
	tile := res.Combined.Positions[0]
	require.Equal(t, 1024, tile.X)
	require.Equal(t, 1024, tile.Y)
}

func TestTileQueue_PreviewRotation_ScenarioF(t *testing.T) {
	q := NewTileQueue()
	q.Put("tile nviewid=0 part=0 width=64 height=64 tileposx=0 tileposy=0 tilewidth=256 tileheight=256 ver=1 id=1")
	q.Put("tile nviewid=0 part=0 width=64 height=64 tileposx=256 tileposy=0 tilewidth=256 tileheight=256 ver=1 id=2")
	q.Put("tile nviewid=0 part=0 width=64 height=64 tileposx=512 tileposy=0 tilewidth=256 tileheight=256 ver=1 id=3")
	q.Put("tile nviewid=0 part=0 width=256 height=256 tileposx=0 tileposy=1024 tilewidth=256 tileheight=256 ver=1")

	foundNonPreview := false
	for i := 0; i < 4; i++ {
		res := popNow(t, q)
		require.NotNil(t, res.Combined)
		tile, ok := res.Combined.Single()
		require.True(t, ok)
		if !tile.IsPreview() {
			foundNonPreview = true
			break
		}
	}
	require.True(t, foundNonPreview, "non-preview tile should be reachable within 4 pops")
}

func TestTileQueue_CancelTilesExemptsPreviews(t *testing.T) {
	q := NewTileQueue()
	q.Put("tile nviewid=0 part=0 width=256 height=256 tileposx=0 tileposy=0 tilewidth=256 tileheight=256 ver=5")
	q.Put("tile nviewid=0 part=0 width=64 height=64 tileposx=256 tileposy=0 tilewidth=256 tileheight=256 ver=5 id=9")
	q.Put("canceltiles 5")

	require.Equal(t, 1, q.Len())
	res := popNow(t, q)
	tile, ok := res.Combined.Single()
	require.True(t, ok)
	require.True(t, tile.IsPreview())
}

func TestTileQueue_CancelTilesForViewExemptsPreviewsAndOtherViews(t *testing.T) {
	q := NewTileQueue()
	q.Put("tile nviewid=1 part=0 width=256 height=256 tileposx=0 tileposy=0 tilewidth=256 tileheight=256 ver=1")
	q.Put("tile nviewid=2 part=0 width=256 height=256 tileposx=256 tileposy=0 tilewidth=256 tileheight=256 ver=1")
	q.Put("tile nviewid=1 part=0 width=64 height=64 tileposx=512 tileposy=0 tilewidth=256 tileheight=256 ver=1 id=9")

	q.CancelTilesForView(1)

	require.Equal(t, 2, q.Len(), "view 2's tile and view 1's preview must survive")
	for i := 0; i < 2; i++ {
		res := popNow(t, q)
		tile, ok := res.Combined.Single()
		require.True(t, ok)
		require.True(t, tile.ViewID == 2 || tile.IsPreview())
	}
}

func TestTileQueue_PopBlocksUntilPut(t *testing.T) {
	q := NewTileQueue()
	done := make(chan Result, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		res, ok := q.Pop(ctx)
		require.True(t, ok)
		done <- res
	}()

	time.Sleep(20 * time.Millisecond)
	q.Put("tile nviewid=0 part=0 width=256 height=256 tileposx=0 tileposy=0 tilewidth=256 tileheight=256 ver=1")

	select {
	case res := <-done:
		require.NotNil(t, res.Combined)
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not return after Put")
	}
}

func TestTileQueue_NonTileMessageReturnedAsHead(t *testing.T) {
	q := NewTileQueue()
	q.Put("tile nviewid=0 part=0 width=256 height=256 tileposx=0 tileposy=0 tilewidth=256 tileheight=256 ver=1")
	q.PutChildCommand("sess-1", "uno .uno:Save")

	res := popNow(t, q)
	require.NotNil(t, res.Combined)

	res2 := popNow(t, q)
	require.NotNil(t, res2.Other)
	require.Equal(t, "sess-1", res2.Other.ChildSessionID)
}
