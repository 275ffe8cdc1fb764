package protocol

import (
	"fmt"
	"strings"

	"github.com/CollaboraOnline/tilekit/internal/types"
)

// ParseTile parses an inbound "tile ..." line (§6.1) into a TileDesc.
func ParseTile(line string) (types.TileDesc, error) {
	t := Tokenize(line)
	if t.Name != "tile" {
		return types.TileDesc{}, fmt.Errorf("protocol: not a tile message: %q", line)
	}
	return types.TileDesc{
		Part:        t.Int("part"),
		EditMode:    t.Int("mode"),
		TilePosX:    t.Int("tileposx"),
		TilePosY:    t.Int("tileposy"),
		TileWidth:   t.Int("tilewidth"),
		TileHeight:  t.Int("tileheight"),
		PixelWidth:  t.Int("width"),
		PixelHeight: t.Int("height"),
		Version:     t.Int("ver"),
		ViewID:      t.Int("nviewid"),
		ID:          t.Str("id"),
	}, nil
}

// ParseTileCombine parses an inbound "tilecombine ..." line into its
// constituent tiles (§4.1 "tilecombine" rule splits into "tile" tiles).
func ParseTileCombine(line string) ([]types.TileDesc, error) {
	t := Tokenize(line)
	if t.Name != "tilecombine" {
		return nil, fmt.Errorf("protocol: not a tilecombine message: %q", line)
	}
	xs := t.IntList("tileposx")
	ys := t.IntList("tileposy")
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("protocol: tilecombine tileposx/tileposy length mismatch")
	}
	base := types.TileDesc{
		Part:        t.Int("part"),
		EditMode:    t.Int("mode"),
		TileWidth:   t.Int("tilewidth"),
		TileHeight:  t.Int("tileheight"),
		PixelWidth:  t.Int("width"),
		PixelHeight: t.Int("height"),
		Version:     t.Int("ver"),
		ViewID:      t.Int("nviewid"),
	}
	out := make([]types.TileDesc, 0, len(xs))
	for i := range xs {
		tile := base
		tile.TilePosX = xs[i]
		tile.TilePosY = ys[i]
		out = append(out, tile)
	}
	return out, nil
}

// FormatTile renders a TileDesc as an inbound-style "tile ..." line, used
// when splitting a tilecombine for per-tile coalescing and dedup
// comparisons.
func FormatTile(t types.TileDesc) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tile nviewid=%d part=%d width=%d height=%d tileposx=%d tileposy=%d tilewidth=%d tileheight=%d ver=%d mode=%d",
		t.ViewID, t.Part, t.PixelWidth, t.PixelHeight, t.TilePosX, t.TilePosY, t.TileWidth, t.TileHeight, t.Version, t.EditMode)
	if t.ID != "" {
		fmt.Fprintf(&b, " id=%s", t.ID)
	}
	return b.String()
}

// ParseCancelTiles parses a "canceltiles ver1,ver2,..." line into the
// listed versions.
func ParseCancelTiles(line string) []int {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "canceltiles"))
	if rest == "" {
		return nil
	}
	var out []int
	for _, p := range strings.Split(rest, ",") {
		p = strings.TrimSpace(p)
		var v int
		if _, err := fmt.Sscanf(p, "%d", &v); err == nil {
			out = append(out, v)
		}
	}
	return out
}
