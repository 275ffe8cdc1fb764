// Package render implements RenderDispatcher (spec.md §4.3): the single
// per-document goroutine that pulls messages off a TileQueue, renders
// tiles through the engine, and routes everything else to sessions.
package render

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/CollaboraOnline/tilekit/internal/engine"
	"github.com/CollaboraOnline/tilekit/internal/imagecache"
	"github.com/CollaboraOnline/tilekit/internal/kiterrors"
	"github.com/CollaboraOnline/tilekit/internal/protocol"
	"github.com/CollaboraOnline/tilekit/internal/queue"
	"github.com/CollaboraOnline/tilekit/internal/types"
)

// SessionRouter is the narrow seam RenderDispatcher needs from the
// session registry: find the session a tile/callback/command belongs to
// and broadcast a callback to every session of the document. Document
// implements this for its own session map.
type SessionRouter interface {
	SessionByID(id string) (Deliverable, bool)
	SessionByView(viewID int) (Deliverable, bool)
	Broadcast(cb types.Callback)
}

// Deliverable is the subset of ChildSession the dispatcher routes
// through; kept as an interface here so render does not import session
// (avoiding an import cycle with the document package that owns both).
type Deliverable interface {
	SendFrame(frame []byte)
	DeliverCallback(cb types.Callback)
	HandleChildCommand(ctx context.Context, eng engine.Engine, inner string) error
}

// RenderDispatcher is the dispatch loop of §4.3: one instance per open
// document, running on its own goroutine.
type RenderDispatcher struct {
	log       zerolog.Logger
	q         *queue.TileQueue
	eng       engine.Engine
	cache     *imagecache.PngCache
	router    SessionRouter
	watermark func() string
}

// New creates a dispatcher wired to one document's queue, engine handle,
// tile cache and session router. watermark is polled before every paint
// and, when non-empty, composited onto the tile before it is cached and
// encoded (§6.2 initialize_for_rendering WatermarkText, SPEC_FULL.md
// §C.4).
func New(log zerolog.Logger, q *queue.TileQueue, eng engine.Engine, cache *imagecache.PngCache, router SessionRouter, watermark func() string) *RenderDispatcher {
	return &RenderDispatcher{log: log, q: q, eng: eng, cache: cache, router: router, watermark: watermark}
}

// Run dequeues and dispatches messages until ctx is cancelled or an "eof"
// sentinel is popped (§3 Document lifecycle). Returns nil on a clean eof
// exit, ctx.Err() on cancellation.
func (d *RenderDispatcher) Run(ctx context.Context) error {
	for {
		res, ok := d.q.Pop(ctx)
		if !ok {
			return ctx.Err()
		}
		if res.Other != nil && res.Other.Kind == types.MessageEof {
			return nil
		}
		if err := d.dispatch(ctx, res); err != nil {
			if kiterrors.Classify(d.log, err) == kiterrors.DispositionFatal {
				return err
			}
		}
	}
}

func (d *RenderDispatcher) dispatch(ctx context.Context, res queue.Result) error {
	if res.Combined != nil {
		return d.renderCombined(ctx, *res.Combined)
	}
	return d.dispatchOther(ctx, *res.Other)
}

// renderCombined paints every constituent tile and sends the single- or
// batched-tile frame to the view that last requested it (§4.2 steps 5-6,
// §6.1). Positions are grouped by ViewID: a combined batch can in
// principle span sessions viewing the same part.
func (d *RenderDispatcher) renderCombined(ctx context.Context, tc types.TileCombined) error {
	if single, ok := tc.Single(); ok {
		return d.renderSingle(ctx, single)
	}

	byView := make(map[int][]types.TilePosition)
	order := make([]int, 0, 4)
	for _, p := range tc.Positions {
		if _, seen := byView[p.ViewID]; !seen {
			order = append(order, p.ViewID)
		}
		byView[p.ViewID] = append(byView[p.ViewID], p)
	}
	for _, viewID := range order {
		if err := d.renderCombinedForView(ctx, tc, byView[viewID]); err != nil {
			return err
		}
	}
	return nil
}

func (d *RenderDispatcher) renderSingle(ctx context.Context, t types.TileDesc) error {
	sess, ok := d.sessionFor(t.ViewID)
	if !ok {
		return kiterrors.Wrap(kiterrors.ErrSessionNotFound, "tile view %d", t.ViewID)
	}
	png, err := d.paintAndEncode(ctx, t)
	if err != nil {
		return err
	}
	frame := protocol.FormatTileFrame(protocol.TileHeaderArgs{
		Part: t.Part, EditMode: t.EditMode,
		PixelWidth: t.PixelWidth, PixelHeight: t.PixelHeight,
		TilePosX: t.TilePosX, TilePosY: t.TilePosY,
		TileWidth: t.TileWidth, TileHeight: t.TileHeight,
		Version: t.Version, ID: t.ID,
	}, png)
	sess.SendFrame(frame.Bytes())
	return nil
}

func (d *RenderDispatcher) renderCombinedForView(ctx context.Context, tc types.TileCombined, positions []types.TilePosition) error {
	viewID := positions[0].ViewID
	sess, ok := d.sessionFor(viewID)
	if !ok {
		return kiterrors.Wrap(kiterrors.ErrSessionNotFound, "tilecombine view %d", viewID)
	}

	pngs := make([][]byte, 0, len(positions))
	xs := make([]int, 0, len(positions))
	ys := make([]int, 0, len(positions))
	vers := make([]int, 0, len(positions))
	for _, p := range positions {
		t := types.TileDesc{
			Part: tc.Part, EditMode: tc.EditMode,
			TilePosX: p.X, TilePosY: p.Y,
			TileWidth: tc.TileWidth, TileHeight: tc.TileHeight,
			PixelWidth: tc.PixelWidth, PixelHeight: tc.PixelHeight,
			Version: p.Version, ViewID: p.ViewID,
		}
		png, err := d.paintAndEncode(ctx, t)
		if err != nil {
			return err
		}
		pngs = append(pngs, png)
		xs = append(xs, p.X)
		ys = append(ys, p.Y)
		vers = append(vers, p.Version)
	}

	frame := protocol.FormatTileCombinedFrame(tc.Part, tc.EditMode, tc.PixelWidth, tc.PixelHeight,
		tc.TileWidth, tc.TileHeight, xs, ys, vers, pngs)
	sess.SendFrame(frame.Bytes())
	return nil
}

// paintAndEncode calls SetView (every engine entry point must, §5),
// paints the tile, then runs it through the cache-aware encoder.
func (d *RenderDispatcher) paintAndEncode(ctx context.Context, t types.TileDesc) ([]byte, error) {
	if err := d.eng.SetView(ctx, t.ViewID); err != nil {
		return nil, kiterrors.Wrap(kiterrors.ErrRenderFailed, "set_view: %v", err)
	}
	pixels, err := d.eng.PaintPartTile(ctx, engine.PaintRequest{
		Part: t.Part, EditMode: t.EditMode,
		PixelWidth: t.PixelWidth, PixelHeight: t.PixelHeight,
		DocX: t.TilePosX, DocY: t.TilePosY, DocWidth: t.TileWidth, DocHeight: t.TileHeight,
	})
	if err != nil {
		return nil, kiterrors.Wrap(kiterrors.ErrRenderFailed, "paint_part_tile: %v", err)
	}
	if d.watermark != nil {
		applyWatermark(pixels, t.PixelWidth, t.PixelHeight, d.watermark())
	}
	png, err := d.cache.Encode(pixels, t.PixelWidth, t.PixelHeight, t.EditMode)
	if err != nil {
		return nil, kiterrors.Wrap(kiterrors.ErrRenderFailed, "encode: %v", err)
	}
	return png, nil
}

// dispatchOther routes every non-tile Message (§4.3 Failure semantics):
// callbacks broadcast-or-single per view, commands to the addressed
// session, raw lines that slipped through unparsed get logged and
// dropped (protocol error, never a disconnect, §7).
func (d *RenderDispatcher) dispatchOther(ctx context.Context, m types.Message) error {
	switch m.Kind {
	case types.MessageCallback:
		return d.dispatchCallback(m.Callback)
	case types.MessageChildCommand:
		return d.dispatchChildCommand(ctx, m)
	case types.MessageRaw:
		d.log.Debug().Str("line", m.Raw).Msg("unrecognized message, dropping")
		return kiterrors.Wrap(kiterrors.ErrProtocol, "unrecognized line %q", m.Raw)
	default:
		return nil
	}
}

func (d *RenderDispatcher) dispatchCallback(cb types.Callback) error {
	if cb.ViewID == types.BroadcastView {
		d.router.Broadcast(cb)
		return nil
	}
	sess, ok := d.sessionFor(cb.ViewID)
	if !ok {
		return kiterrors.Wrap(kiterrors.ErrSessionNotFound, "callback view %d", cb.ViewID)
	}
	sess.DeliverCallback(cb)
	return nil
}

func (d *RenderDispatcher) dispatchChildCommand(ctx context.Context, m types.Message) error {
	sess, ok := d.router.SessionByID(m.ChildSessionID)
	if !ok {
		return kiterrors.Wrap(kiterrors.ErrSessionNotFound, "child command for %s", m.ChildSessionID)
	}
	if err := sess.HandleChildCommand(ctx, d.eng, m.ChildCommand); err != nil {
		return fmt.Errorf("render: child command %q: %w", m.ChildCommand, err)
	}
	return nil
}

func (d *RenderDispatcher) sessionFor(viewID int) (Deliverable, bool) {
	return d.router.SessionByView(viewID)
}
