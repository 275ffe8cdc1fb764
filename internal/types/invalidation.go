package types

import "math"

// WholePartSentinel is the normalized whole-part invalidation extent
// (§3 Invalidation rectangle), used by WholePart. The invalidation
// payload parser does not substitute it for values that fail to parse.
const WholePartSentinel = math.MaxInt32

// InvalidationRect is an invalidation callback's rectangle in document
// coordinates. The sentinel (0, 0, WholePartSentinel, WholePartSentinel)
// invalidates the entire Part.
type InvalidationRect struct {
	X, Y, Width, Height int
	Part                int
	Mode                int
}

// WholePart returns the normalized whole-part invalidation for the given
// part and mode.
func WholePart(part, mode int) InvalidationRect {
	return InvalidationRect{X: 0, Y: 0, Width: WholePartSentinel, Height: WholePartSentinel, Part: part, Mode: mode}
}

// IsWholePart reports whether r is the whole-part sentinel form.
func (r InvalidationRect) IsWholePart() bool {
	return r.X == 0 && r.Y == 0 && r.Width >= WholePartSentinel && r.Height >= WholePartSentinel
}

// Contains reports whether r fully covers other (same part/mode assumed
// checked by the caller).
func (r InvalidationRect) Contains(other InvalidationRect) bool {
	return other.X >= r.X && other.Y >= r.Y &&
		other.X+other.Width <= r.X+r.Width &&
		other.Y+other.Height <= r.Y+r.Height
}

// Intersects reports whether r and other overlap.
func (r InvalidationRect) Intersects(other InvalidationRect) bool {
	return rectsIntersect(r.X, r.Y, r.Width, r.Height, other.X, other.Y, other.Width, other.Height)
}

// Union returns the smallest rectangle containing both r and other.
func (r InvalidationRect) Union(other InvalidationRect) InvalidationRect {
	minX := min(r.X, other.X)
	minY := min(r.Y, other.Y)
	maxX := max(r.X+r.Width, other.X+other.Width)
	maxY := max(r.Y+r.Height, other.Y+other.Height)
	return InvalidationRect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY, Part: r.Part, Mode: r.Mode}
}
