package queue

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/CollaboraOnline/tilekit/internal/protocol"
	"github.com/CollaboraOnline/tilekit/internal/types"
)

// mergeBudgetW/H bound the invalidation-union step of callback coalescing
// (§4.1.1, §8 property 3): "4x3840 wide and 2x3840 tall".
const (
	mergeBudgetW = 4 * 3840
	mergeBudgetH = 2 * 3840
)

// isInterfering reports whether line is a key, mouse or windowkey
// message, which breaks textinput/removetextcontext merging when it lies
// between two mergeable messages (§4.1.2).
func isInterfering(line string) bool {
	first, _, _ := strings.Cut(line, " ")
	switch first {
	case "key", "mouse", "windowkey":
		return true
	}
	return false
}

// Result is what TileQueue.Pop returns: exactly one of Combined (a tile or
// combined-tile batch, §4.2) or Other (any non-tile message) is set.
type Result struct {
	Combined *types.TileCombined
	Other    *types.Message
}

// TileQueue specializes MessageQueue[types.Message] with the coalescing
// rules of §4.1 and the priority dequeue algorithm of §4.2. Built on
// MessageQueue the way the component table in spec.md §2 describes:
// MessageQueue supplies the mutex/condvar/FIFO plumbing, TileQueue adds
// tile semantics and cursor-driven priority.
type TileQueue struct {
	base    *MessageQueue[types.Message]
	cursors *CursorTracker
}

// NewTileQueue creates an empty queue with its own cursor tracker, which
// is the only priority source the queue uses.
func NewTileQueue() *TileQueue {
	return &TileQueue{base: NewMessageQueue[types.Message](), cursors: NewCursorTracker()}
}

// Prioritizer exposes the queue's cursor-driven priority source, e.g. for
// tests that want to assert on priority directly.
func (q *TileQueue) Prioritizer() Prioritizer { return q.cursors }

// Len reports the number of queued messages (tiles and otherwise).
func (q *TileQueue) Len() int { return q.base.Len() }

// Put enqueues one client or internal message, applying the ingress
// coalescing rule selected by the message's first token (§4.1).
func (q *TileQueue) Put(line string) {
	first, _, _ := strings.Cut(line, " ")
	switch first {
	case "canceltiles":
		q.cancelTiles(protocol.ParseCancelTiles(line))
		return
	case "tilecombine":
		tiles, err := protocol.ParseTileCombine(line)
		if err != nil {
			q.appendRaw(line)
			return
		}
		for _, t := range tiles {
			q.putTile(t)
		}
		return
	case "tile":
		t, err := protocol.ParseTile(line)
		if err != nil {
			q.appendRaw(line)
			return
		}
		q.putTile(t)
		return
	case "textinput":
		q.putTextInput(line)
		return
	case "removetextcontext":
		q.putRemoveTextContext(line)
		return
	default:
		q.appendRaw(line)
	}
}

// PutChildCommand enqueues a command addressed to one session, as if
// received with a "child-<id>" prefix (§4.3).
func (q *TileQueue) PutChildCommand(sessionID, inner string) {
	q.base.Put(func(items []types.Message) []types.Message {
		return append(items, types.NewChildCommandMessage(sessionID, inner))
	})
}

// PutEof enqueues the end-of-stream sentinel that terminates the
// dispatcher loop (§3 Document lifecycle).
func (q *TileQueue) PutEof() {
	q.base.Put(func(items []types.Message) []types.Message {
		return append(items, types.EofMessage)
	})
}

func (q *TileQueue) appendRaw(line string) {
	q.base.Put(func(items []types.Message) []types.Message {
		return append(items, types.NewRawMessage(line))
	})
}

// putTile applies the "tile"/"tilecombine" ingress rule: remove any
// queued tile with the same key (comparing serializations up to ver),
// then enqueue (§4.1, §8 property 1 / Scenario A).
func (q *TileQueue) putTile(t types.TileDesc) {
	q.base.Put(func(items []types.Message) []types.Message {
		key := t.Key()
		out := items[:0:0]
		for _, m := range items {
			if m.Kind == types.MessageTile && !m.Tile.IsPreview() && m.Tile.Key() == key {
				continue
			}
			out = append(out, m)
		}
		return append(out, types.NewTileMessage(t))
	})
}

// cancelTiles drops queued tiles whose serialization contains "ver=vk" for
// any listed version, except previews (§4.1 "canceltiles" rule). The
// cancel token itself is never enqueued.
func (q *TileQueue) cancelTiles(versions []int) {
	if len(versions) == 0 {
		return
	}
	set := make(map[int]bool, len(versions))
	for _, v := range versions {
		set[v] = true
	}
	q.base.Mutate(func(items []types.Message) []types.Message {
		out := items[:0:0]
		for _, m := range items {
			if m.Kind == types.MessageTile && !m.Tile.IsPreview() && set[m.Tile.Version] {
				continue
			}
			out = append(out, m)
		}
		return out
	})
}

// putTextInput implements §4.1.2: merge with a prior textinput of the
// same id if no interfering message lies between them.
func (q *TileQueue) putTextInput(line string) {
	t := protocol.Tokenize(line)
	id := t.Str("id")
	text := t.Str("text")

	q.base.Put(func(items []types.Message) []types.Message {
		for i := len(items) - 1; i >= 0; i-- {
			raw := items[i].Raw
			first, _, _ := strings.Cut(raw, " ")
			if first == "textinput" {
				prior := protocol.Tokenize(raw)
				if prior.Str("id") == id {
					merged := "textinput id=" + id + " text=" + prior.Str("text") + text
					out := append(append([]types.Message{}, items[:i]...), items[i+1:]...)
					return append(out, types.NewRawMessage(merged))
				}
				break // a textinput with a different id also blocks the merge
			}
			if first == "removetextcontext" || isInterfering(raw) {
				break
			}
		}
		return append(items, types.NewRawMessage(line))
	})
}

// putRemoveTextContext implements the symmetric merge rule for
// removetextcontext (§4.1.2): sum before/after counts.
func (q *TileQueue) putRemoveTextContext(line string) {
	t := protocol.Tokenize(line)
	id := t.Str("id")
	before := t.Int("before")
	after := t.Int("after")

	q.base.Put(func(items []types.Message) []types.Message {
		for i := len(items) - 1; i >= 0; i-- {
			raw := items[i].Raw
			first, _, _ := strings.Cut(raw, " ")
			if first == "removetextcontext" {
				prior := protocol.Tokenize(raw)
				if prior.Str("id") == id {
					merged := fmt_removeTextContext(id, prior.Int("before")+before, prior.Int("after")+after)
					out := append(append([]types.Message{}, items[:i]...), items[i+1:]...)
					return append(out, types.NewRawMessage(merged))
				}
				break
			}
			if first == "textinput" || isInterfering(raw) {
				break
			}
		}
		return append(items, types.NewRawMessage(line))
	})
}

func fmt_removeTextContext(id string, before, after int) string {
	return "removetextcontext id=" + id + " before=" + strconv.Itoa(before) + " after=" + strconv.Itoa(after)
}

// CancelTilesForView drops every non-preview tile still queued for
// viewID, the synthesized counterpart to an inbound "canceltiles" line
// (§4.1), used when a session unloads so it can never be handed a stale
// paint for a view that no longer exists (SPEC_FULL.md §C.5).
func (q *TileQueue) CancelTilesForView(viewID int) {
	q.base.Mutate(func(items []types.Message) []types.Message {
		out := items[:0:0]
		for _, m := range items {
			if m.Kind == types.MessageTile && !m.Tile.IsPreview() && m.Tile.ViewID == viewID {
				continue
			}
			out = append(out, m)
		}
		return out
	})
}

// UpdateCursor updates the cursor table and makes viewID the newest in
// the view-order list (§4.1 update_cursor).
func (q *TileQueue) UpdateCursor(viewID, part, x, y, w, h int) {
	q.base.Lock()
	q.cursors.Update(viewID, part, x, y, w, h)
	q.base.Unlock()
}

// RemoveCursor removes viewID from the cursor table and view order
// (§4.1 remove_cursor).
func (q *TileQueue) RemoveCursor(viewID int) {
	q.base.Lock()
	q.cursors.Remove(viewID)
	q.base.Unlock()
}

// Pop blocks until a message is available or ctx is done, and returns it
// per the dispatch priority algorithm of §4.2.
func (q *TileQueue) Pop(ctx context.Context) (Result, bool) {
	stop := q.base.AfterFuncOnDone(ctx)
	defer stop()

	q.base.Lock()
	defer q.base.Unlock()
	for {
		if res, ok := q.extractLocked(); ok {
			return res, true
		}
		if ctx.Err() != nil {
			return Result{}, false
		}
		q.base.WaitLocked()
	}
}

// DumpState writes a one-line-per-message diagnostic snapshot of the
// queue to w, in FIFO order. Intended for a SIGUSR1-triggered diagnostic
// dump rather than machine parsing.
func (q *TileQueue) DumpState(w io.Writer) {
	q.base.Lock()
	items := append([]types.Message{}, q.base.ItemsLocked()...)
	q.base.Unlock()

	fmt.Fprintf(w, "tilequeue: %d message(s)\n", len(items))
	for i, m := range items {
		fmt.Fprintf(w, "  [%d] kind=%d %s\n", i, m.Kind, m.Raw)
	}
}

// extractLocked implements §4.2 steps 1-7. Must be called with the queue
// locked.
func (q *TileQueue) extractLocked() (Result, bool) {
	items := q.base.ItemsLocked()
	if len(items) == 0 {
		return Result{}, false
	}

	head := items[0]
	if head.Kind != types.MessageTile {
		q.base.SetItemsLocked(append([]types.Message{}, items[1:]...))
		m := head
		return Result{Other: &m}, true
	}

	if head.Tile.IsPreview() {
		rest := items[1:]
		nonPreview := make([]types.Message, 0, len(rest))
		previews := make([]types.Message, 0, len(rest))
		for _, m := range rest {
			if m.IsPreview() {
				previews = append(previews, m)
			} else {
				nonPreview = append(nonPreview, m)
			}
		}
		q.base.SetItemsLocked(append(nonPreview, previews...))
		tc := types.NewTileCombined([]types.TileDesc{head.Tile})
		return Result{Combined: &tc}, true
	}

	// Step 3-4: find the highest-priority tile among all queued tiles.
	bestIdx := 0
	bestPriority := -2
	maxAchievable := q.cursors.MaxPriority()
	for i, m := range items {
		if m.Kind != types.MessageTile || m.Tile.IsPreview() {
			continue
		}
		p := q.cursors.Priority(m.Tile)
		if p > bestPriority {
			bestPriority = p
			bestIdx = i
		}
		if bestPriority >= maxAchievable {
			break
		}
	}

	chosen := items[bestIdx].Tile
	remaining := make([]types.Message, 0, len(items)-1)
	remaining = append(remaining, items[:bestIdx]...)
	remaining = append(remaining, items[bestIdx+1:]...)

	// Step 5-6: combine with every other compatible queued tile, then
	// dedup the batch by (tileposx, tileposy).
	batch := []types.TileDesc{chosen}
	seen := map[[2]int]bool{{chosen.TilePosX, chosen.TilePosY}: true}
	out := remaining[:0:0]
	for _, m := range remaining {
		if m.Kind == types.MessageTile && !m.Tile.IsPreview() && m.Tile.Combinable(chosen) {
			pos := [2]int{m.Tile.TilePosX, m.Tile.TilePosY}
			if !seen[pos] {
				seen[pos] = true
				batch = append(batch, m.Tile)
			}
			continue
		}
		out = append(out, m)
	}
	q.base.SetItemsLocked(out)

	tc := types.NewTileCombined(batch)
	return Result{Combined: &tc}, true
}
