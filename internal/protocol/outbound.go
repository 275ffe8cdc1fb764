package protocol

import (
	"fmt"
	"strings"
)

// Frame is one outbound binary frame: an ASCII header line followed
// immediately by binary image bytes (§6.1 "Outbound tile").
type Frame struct {
	Header []byte
	Body   []byte
}

// Bytes concatenates the header and body into the single binary frame
// sent on the control channel.
func (f Frame) Bytes() []byte {
	out := make([]byte, 0, len(f.Header)+len(f.Body))
	out = append(out, f.Header...)
	out = append(out, f.Body...)
	return out
}

// TileHeaderArgs describes one outbound tile response header.
type TileHeaderArgs struct {
	Part, EditMode                     int
	PixelWidth, PixelHeight            int
	TilePosX, TilePosY                 int
	TileWidth, TileHeight              int
	Version                            int
	ID                                 string
}

// FormatTileFrame renders a single-tile outbound frame: "tile: ...\n"
// followed by the encoded image bytes (§6.1).
func FormatTileFrame(args TileHeaderArgs, png []byte) Frame {
	var b strings.Builder
	fmt.Fprintf(&b, "tile: part=%d mode=%d width=%d height=%d tileposx=%d tileposy=%d tilewidth=%d tileheight=%d ver=%d",
		args.Part, args.EditMode, args.PixelWidth, args.PixelHeight, args.TilePosX, args.TilePosY,
		args.TileWidth, args.TileHeight, args.Version)
	if args.ID != "" {
		fmt.Fprintf(&b, " id=%s", args.ID)
	}
	b.WriteByte('\n')
	return Frame{Header: []byte(b.String()), Body: png}
}

// FormatTileCombinedFrame renders a batched outbound frame:
// "tilecombine: ... imgsize=s1,s2,...\n" followed by the concatenated PNG
// bytes of each constituent (§6.1).
func FormatTileCombinedFrame(part, editMode, pixelWidth, pixelHeight, tileWidth, tileHeight int, posX, posY, versions []int, pngs [][]byte) Frame {
	sizes := make([]string, len(pngs))
	total := 0
	for i, p := range pngs {
		sizes[i] = fmt.Sprintf("%d", len(p))
		total += len(p)
	}
	xs := joinInts(posX)
	ys := joinInts(posY)
	vers := joinInts(versions)

	var b strings.Builder
	fmt.Fprintf(&b, "tilecombine: part=%d mode=%d width=%d height=%d tileposx=%s tileposy=%s tilewidth=%d tileheight=%d ver=%s imgsize=%s\n",
		part, editMode, pixelWidth, pixelHeight, xs, ys, tileWidth, tileHeight, vers, strings.Join(sizes, ","))

	body := make([]byte, 0, total)
	for _, p := range pngs {
		body = append(body, p...)
	}
	return Frame{Header: []byte(b.String()), Body: body}
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ",")
}

// FormatViewInfo renders the outbound "viewinfo: [...]" frame (§6.1,
// §4.6 notify_view_info). entries is a pre-marshaled JSON array.
func FormatViewInfo(entriesJSON string) string {
	return "viewinfo: " + entriesJSON
}

// FormatLoadError renders the password/load error frames of §6.1/§7.
func FormatLoadError(kind string) string {
	return "error: cmd=load kind=" + kind
}

const (
	ErrorKindPasswordRequiredToView   = "passwordrequired:to-view"
	ErrorKindPasswordRequiredToModify = "passwordrequired:to-modify"
	ErrorKindWrongPassword            = "wrongpassword"
	ErrorKindFailedDocLoading         = "faileddocloading"
)
