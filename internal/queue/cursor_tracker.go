package queue

import "github.com/CollaboraOnline/tilekit/internal/types"

// Prioritizer decides how urgently a tile must be rendered (§4.2),
// mirroring the original KitQueue's TilePrioritizer interface.
// CursorTracker implements it and TileQueue.Prioritizer exposes the
// queue's tracker through it. TileQueue itself calls its own
// *CursorTracker directly (including MaxPriority, which is not part of
// this interface); no other Prioritizer can be plugged into a TileQueue.
type Prioritizer interface {
	// Priority returns max{ i : tile intersects cursor_rect(view_order[i]) }
	// or -1 if the tile intersects no tracked cursor.
	Priority(tile types.TileDesc) int
}

// CursorTracker holds, per view, the last reported cursor rectangle, plus
// a recency-ordered list of view ids (§3 Cursor position). The last
// element of the order is the most recently active view, and therefore
// the highest-priority one in Priority.
type CursorTracker struct {
	cursors map[int]types.CursorRect
	order   []int // oldest first, most-recently-updated last
}

// NewCursorTracker creates an empty tracker.
func NewCursorTracker() *CursorTracker {
	return &CursorTracker{cursors: make(map[int]types.CursorRect)}
}

// Update records view's cursor rectangle and makes it the most recently
// active view.
func (c *CursorTracker) Update(viewID, part, x, y, w, h int) {
	c.cursors[viewID] = types.CursorRect{Part: part, X: x, Y: y, Width: w, Height: h}
	c.bumpRecency(viewID)
}

func (c *CursorTracker) bumpRecency(viewID int) {
	for i, v := range c.order {
		if v == viewID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, viewID)
}

// Remove drops a view from both the cursor table and the recency order,
// e.g. on session disconnect.
func (c *CursorTracker) Remove(viewID int) {
	delete(c.cursors, viewID)
	for i, v := range c.order {
		if v == viewID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Priority implements Prioritizer (§4.2 step 3).
func (c *CursorTracker) Priority(tile types.TileDesc) int {
	best := -1
	for i, viewID := range c.order {
		rect, ok := c.cursors[viewID]
		if !ok {
			continue
		}
		if rect.Intersects(tile.Part, tile.TilePosX, tile.TilePosY, tile.TileWidth, tile.TileHeight) {
			if i > best {
				best = i
			}
		}
	}
	return best
}

// MaxPriority is the highest achievable priority given the current view
// order, used by TileQueue to short-circuit scanning once it is reached
// (§4.2 step 4).
func (c *CursorTracker) MaxPriority() int {
	return len(c.order) - 1
}
