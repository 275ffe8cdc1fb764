package types

// CursorRect is a per-view cursor rectangle in document coordinates
// (§3 Cursor position).
type CursorRect struct {
	Part          int
	X, Y          int
	Width, Height int
}

// Intersects reports whether the cursor rectangle intersects a tile's
// document-space rectangle on the same part.
func (c CursorRect) Intersects(part, x, y, w, h int) bool {
	if c.Part != part {
		return false
	}
	return rectsIntersect(c.X, c.Y, c.Width, c.Height, x, y, w, h)
}
