// Package types holds the value types shared across the queue, renderer and
// session layers: tiles, invalidation rectangles, callbacks and cursors.
package types

import "fmt"

// TileDesc identifies a single rendered tile. Two tiles are equal for
// deduplication purposes when their Key matches; Version and ID (the
// preview marker) are deliberately excluded from the key.
type TileDesc struct {
	Part         int
	EditMode     int
	TilePosX     int
	TilePosY     int
	TileWidth    int
	TileHeight   int
	PixelWidth   int
	PixelHeight  int
	Version      int
	ViewID       int
	ID           string // non-empty marks this a preview tile
	NormalizedVP bool
}

// IsPreview reports whether this tile carries a preview (thumbnail) marker.
// Previews are exempt from position-based dedup and priority boosting.
func (t TileDesc) IsPreview() bool {
	return t.ID != ""
}

// TileKey is the subset of fields that define tile identity for dedup
// purposes (§3 Data model).
type TileKey struct {
	Part        int
	EditMode    int
	TilePosX    int
	TilePosY    int
	TileWidth   int
	TileHeight  int
	PixelWidth  int
	PixelHeight int
}

// Key returns the deduplication key of the tile.
func (t TileDesc) Key() TileKey {
	return TileKey{
		Part:        t.Part,
		EditMode:    t.EditMode,
		TilePosX:    t.TilePosX,
		TilePosY:    t.TilePosY,
		TileWidth:   t.TileWidth,
		TileHeight:  t.TileHeight,
		PixelWidth:  t.PixelWidth,
		PixelHeight: t.PixelHeight,
	}
}

// CombineKey is the subset of fields that must match for two tiles to be
// combinable into a TileCombined (§3 Tile combinability).
type CombineKey struct {
	Part        int
	EditMode    int
	TileWidth   int
	TileHeight  int
	PixelWidth  int
	PixelHeight int
}

// CombineKey returns the key used to decide whether this tile can be
// batched with another.
func (t TileDesc) CombineKey() CombineKey {
	return CombineKey{
		Part:        t.Part,
		EditMode:    t.EditMode,
		TileWidth:   t.TileWidth,
		TileHeight:  t.TileHeight,
		PixelWidth:  t.PixelWidth,
		PixelHeight: t.PixelHeight,
	}
}

// Combinable reports whether t and other share a CombineKey.
func (t TileDesc) Combinable(other TileDesc) bool {
	return t.CombineKey() == other.CombineKey()
}

// Intersects reports whether the tile's document-space rectangle
// intersects the given rectangle (x, y, w, h in document coordinates).
func (t TileDesc) Intersects(x, y, w, h int) bool {
	return rectsIntersect(t.TilePosX, t.TilePosY, t.TileWidth, t.TileHeight, x, y, w, h)
}

func rectsIntersect(ax, ay, aw, ah, bx, by, bw, bh int) bool {
	if aw <= 0 || ah <= 0 || bw <= 0 || bh <= 0 {
		return false
	}
	return ax < bx+bw && bx < ax+aw && ay < by+bh && by < ay+ah
}

func (t TileDesc) String() string {
	return fmt.Sprintf("tile part=%d mode=%d x=%d y=%d tw=%d th=%d pw=%d ph=%d ver=%d id=%s",
		t.Part, t.EditMode, t.TilePosX, t.TilePosY, t.TileWidth, t.TileHeight,
		t.PixelWidth, t.PixelHeight, t.Version, t.ID)
}

// TilePosition is one constituent position inside a TileCombined.
type TilePosition struct {
	X       int
	Y       int
	Version int
	ViewID  int
	ID      string // non-empty marks this position's tile a preview
}

// TileCombined is a batched render request for several tiles that share
// part/edit-mode/size (§3 Tile combinability). Invariant: no two Positions
// share the same (X, Y).
type TileCombined struct {
	CombineKey
	Positions []TilePosition
	// UnionX/UnionY/UnionW/UnionH describe the document-space bounding
	// rectangle of all constituent positions.
	UnionX, UnionY, UnionW, UnionH int
}

// NewTileCombined builds a TileCombined from a set of already-deduplicated,
// mutually-combinable tiles. Tiles must be non-empty and share a CombineKey.
func NewTileCombined(tiles []TileDesc) TileCombined {
	tc := TileCombined{CombineKey: tiles[0].CombineKey()}
	minX, minY := tiles[0].TilePosX, tiles[0].TilePosY
	maxX, maxY := tiles[0].TilePosX+tiles[0].TileWidth, tiles[0].TilePosY+tiles[0].TileHeight

	seen := make(map[[2]int]bool, len(tiles))
	for _, t := range tiles {
		pos := [2]int{t.TilePosX, t.TilePosY}
		if seen[pos] {
			continue
		}
		seen[pos] = true
		tc.Positions = append(tc.Positions, TilePosition{X: t.TilePosX, Y: t.TilePosY, Version: t.Version, ViewID: t.ViewID, ID: t.ID})
		if t.TilePosX < minX {
			minX = t.TilePosX
		}
		if t.TilePosY < minY {
			minY = t.TilePosY
		}
		if t.TilePosX+t.TileWidth > maxX {
			maxX = t.TilePosX + t.TileWidth
		}
		if t.TilePosY+t.TileHeight > maxY {
			maxY = t.TilePosY + t.TileHeight
		}
	}
	tc.UnionX, tc.UnionY = minX, minY
	tc.UnionW, tc.UnionH = maxX-minX, maxY-minY
	return tc
}

// Single reports whether the combined batch contains exactly one tile, and
// returns it as a plain TileDesc if so.
func (tc TileCombined) Single() (TileDesc, bool) {
	if len(tc.Positions) != 1 {
		return TileDesc{}, false
	}
	p := tc.Positions[0]
	return TileDesc{
		Part: tc.Part, EditMode: tc.EditMode,
		TilePosX: p.X, TilePosY: p.Y,
		TileWidth: tc.TileWidth, TileHeight: tc.TileHeight,
		PixelWidth: tc.PixelWidth, PixelHeight: tc.PixelHeight,
		Version: p.Version, ViewID: p.ViewID, ID: p.ID,
	}, true
}
