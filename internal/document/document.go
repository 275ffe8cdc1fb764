// Package document implements Document (spec.md §4.6): the per-document
// glue that owns the engine handle, the TileQueue, the session registry
// and the dispatch loop, and exposes the operations sessions and the
// supervising process call into.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/CollaboraOnline/tilekit/internal/engine"
	"github.com/CollaboraOnline/tilekit/internal/imagecache"
	"github.com/CollaboraOnline/tilekit/internal/kiterrors"
	"github.com/CollaboraOnline/tilekit/internal/logctx"
	"github.com/CollaboraOnline/tilekit/internal/protocol"
	"github.com/CollaboraOnline/tilekit/internal/queue"
	"github.com/CollaboraOnline/tilekit/internal/render"
	"github.com/CollaboraOnline/tilekit/internal/session"
	"github.com/CollaboraOnline/tilekit/internal/types"
)

// viewInfo is one entry of the notify_view_info JSON array (§4.6).
type viewInfo struct {
	ID       int    `json:"id"`
	UserID   string `json:"userid"`
	UserName string `json:"username"`
	Color    string `json:"color"`
}

// tombstone records a departed view's identity so notify_view_info can
// still attribute its trailing edits (§4.6 on_unload "view-id→user
// tombstone map").
type tombstone struct {
	UserID   string
	UserName string
}

// Document is the per-document aggregator: one instance per open
// document, shared by every ChildSession attached to it.
type Document struct {
	ID  string
	URI string

	log zerolog.Logger
	eng engine.Engine

	queue         *queue.TileQueue
	cache         *imagecache.PngCache
	sessions      *xsync.MapOf[string, *session.ChildSession]
	viewToSession *xsync.MapOf[int, string]

	loadOnce  sync.Mutex
	loaded    bool
	loadErr   error
	watermark string

	tombMu     sync.Mutex
	tombstones map[int]tombstone

	cancel context.CancelFunc
}

// New creates a Document ready to accept sessions; the engine and the
// cache's encoder are supplied so tests can inject fakes.
func New(id, uri string, log zerolog.Logger, eng engine.Engine, softBudget int, encode imagecache.Encoder) *Document {
	return &Document{
		ID:            id,
		URI:           uri,
		log:           logctx.ForDocument(&log, id),
		eng:           eng,
		queue:         queue.NewTileQueue(),
		cache:         imagecache.New(encode, softBudget),
		sessions:      xsync.NewMapOf[string, *session.ChildSession](),
		viewToSession: xsync.NewMapOf[int, string](),
		tombstones:    make(map[int]tombstone),
	}
}

// Queue exposes the document's TileQueue for the transport layer to
// enqueue inbound wire lines into.
func (d *Document) Queue() *queue.TileQueue { return d.queue }

// Watermark returns the text the render dispatcher composites onto every
// painted tile (§6.2 initialize_for_rendering WatermarkText, SPEC_FULL.md
// §C.4), set once by whichever caller won the open-once gate. Empty
// means no watermark.
func (d *Document) Watermark() string {
	d.loadOnce.Lock()
	defer d.loadOnce.Unlock()
	return d.watermark
}

// StartDispatcher launches the render dispatch loop on its own goroutine
// (§4.3); ctx cancellation or an enqueued eof stops it.
func (d *Document) StartDispatcher(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	dispatcher := render.New(d.log, d.queue, d.eng, d.cache, (*sessionRouter)(d), d.Watermark)
	go func() {
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			d.log.Error().Err(err).Msg("render dispatcher exited")
		}
	}()
}

// Stop cancels the dispatch loop, e.g. once purge_sessions finds the
// document empty.
func (d *Document) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

// CreateSession implements §4.6 create_session: idempotent, returns true
// whether this call created the session or found it already present.
func (d *Document) CreateSession(id string, sender session.FrameSender) bool {
	d.sessions.LoadOrStore(id, session.New(id, sender))
	return true
}

// SessionByID looks up one session by its id.
func (d *Document) SessionByID(id string) (*session.ChildSession, bool) {
	return d.sessions.Load(id)
}

// OnLoad implements §4.6 on_load: a one-at-a-time gate around opening the
// engine document, retrying a transient busy failure from the engine
// with bounded backoff before giving up (SPEC_FULL.md §B).
func (d *Document) OnLoad(ctx context.Context, sessionID, uri, userName, password string, opts engine.RenderOptions) error {
	sess, ok := d.sessions.Load(sessionID)
	if !ok {
		return kiterrors.Wrap(kiterrors.ErrSessionNotFound, "on_load for %s", sessionID)
	}

	if err := d.openOnce(ctx, uri, password, opts); err != nil {
		d.replyLoadError(sess, err)
		return err
	}

	viewID, err := d.eng.CreateView(ctx)
	if err != nil {
		d.replyLoadError(sess, err)
		return kiterrors.Wrap(kiterrors.ErrLoadFailed, "create_view: %v", err)
	}

	sess.SetViewID(viewID)
	sess.UserName = userName
	sess.Password = password
	d.viewToSession.Store(viewID, sessionID)

	views, _ := d.eng.GetViewIDs(ctx)
	d.notifyViewInfo(ctx, views)
	return nil
}

// openOnce serializes the engine's document open across concurrent
// callers (§4.6 "only the first caller opens the engine document;
// subsequent callers create a new view"). Once an open succeeds, later
// callers skip it; a failed open is attempted again by the next caller.
func (d *Document) openOnce(ctx context.Context, uri, password string, opts engine.RenderOptions) error {
	d.loadOnce.Lock()
	defer d.loadOnce.Unlock()

	if d.loaded {
		return d.loadErr
	}

	d.watermark = opts.WatermarkText

	err := retry.Do(
		func() error {
			loadErr := d.eng.Load(ctx, uri, password, opts)
			if loadErr == nil || errors.Is(loadErr, engine.ErrBusy) {
				return loadErr // nil, or retryable
			}
			return retry.Unrecoverable(loadErr)
		},
		retry.Attempts(5),
		retry.Delay(20*time.Millisecond),
		retry.Context(ctx),
	)

	d.loaded = err == nil
	d.loadErr = err
	return err
}

func (d *Document) replyLoadError(sess *session.ChildSession, err error) {
	kind := protocol.ErrorKindFailedDocLoading
	switch {
	case errors.Is(err, engine.ErrPasswordRequired):
		kind = protocol.ErrorKindPasswordRequiredToView
	case errors.Is(err, engine.ErrPasswordRequiredToModify):
		kind = protocol.ErrorKindPasswordRequiredToModify
	case errors.Is(err, engine.ErrWrongPassword):
		kind = protocol.ErrorKindWrongPassword
	}
	sess.SendFrame([]byte(protocol.FormatLoadError(kind) + "\n"))
}

// OnUnload implements §4.6 on_unload: destroys the view, records a
// tombstone so a trailing notify_view_info can still name the departed
// author, cancels every tile still queued for that view (SPEC_FULL.md
// §C.5) so the torn-down session can never receive a stale paint, and
// broadcasts the remaining view list.
func (d *Document) OnUnload(ctx context.Context, sessionID string) error {
	sess, ok := d.sessions.LoadAndDelete(sessionID)
	if !ok {
		return nil
	}
	sess.MarkClosing()
	d.queue.RemoveCursor(sess.ViewID)
	d.queue.CancelTilesForView(sess.ViewID)
	d.viewToSession.Delete(sess.ViewID)

	d.tombMu.Lock()
	d.tombstones[sess.ViewID] = tombstone{UserID: sess.UserID, UserName: sess.UserName}
	d.tombMu.Unlock()

	if err := d.eng.DestroyView(ctx, sess.ViewID); err != nil {
		d.log.Warn().Err(err).Int("view_id", sess.ViewID).Msg("destroy_view failed")
	}

	views, _ := d.eng.GetViewIDs(ctx)
	d.notifyViewInfo(ctx, views)
	return nil
}

// PurgeSessions implements §4.6 purge_sessions: removes closed sessions
// and returns the number remaining. If none remain it stops the
// document's dispatcher, signaling the caller to shut the process down.
func (d *Document) PurgeSessions() (remaining int) {
	var closing []string
	d.sessions.Range(func(id string, sess *session.ChildSession) bool {
		if sess.IsClosing() {
			closing = append(closing, id)
		}
		return true
	})
	for _, id := range closing {
		d.sessions.Delete(id)
	}
	remaining = d.sessions.Size()
	if remaining == 0 {
		d.Stop()
	}
	return remaining
}

// NotifyViewInfo implements §4.6 notify_view_info: builds the
// [{id,userid,username,color}] array and broadcasts it to every active
// session, resolving colors via the engine's .uno:TrackedChangeAuthors
// command-values call.
func (d *Document) NotifyViewInfo(ctx context.Context, viewIDs []int) {
	d.notifyViewInfo(ctx, viewIDs)
}

func (d *Document) notifyViewInfo(ctx context.Context, viewIDs []int) {
	colors := d.authorColors(ctx)

	entries := make([]viewInfo, 0, len(viewIDs))
	for _, vid := range viewIDs {
		sessID, ok := d.viewToSession.Load(vid)
		if !ok {
			d.tombMu.Lock()
			ts, departed := d.tombstones[vid]
			d.tombMu.Unlock()
			if departed {
				entries = append(entries, viewInfo{ID: vid, UserID: ts.UserID, UserName: ts.UserName, Color: colors[ts.UserName]})
			}
			continue
		}
		sess, ok := d.sessions.Load(sessID)
		if !ok {
			continue
		}
		entries = append(entries, viewInfo{
			ID:       vid,
			UserID:   sess.UserID,
			UserName: sess.UserName,
			Color:    colors[sess.UserName],
		})
	}

	body, err := json.Marshal(entries)
	if err != nil {
		d.log.Error().Err(err).Msg("marshal view info")
		return
	}
	line := protocol.FormatViewInfo(string(body))

	d.sessions.Range(func(_ string, sess *session.ChildSession) bool {
		if sess.IsActive() {
			sess.SendFrame([]byte(line + "\n"))
		}
		return true
	})
}

// authorColors resolves the per-user color map via
// .uno:TrackedChangeAuthors (§4.6). A malformed or missing response
// yields an empty map rather than failing the broadcast.
func (d *Document) authorColors(ctx context.Context) map[string]string {
	raw, err := d.eng.GetCommandValues(ctx, ".uno:TrackedChangeAuthors")
	if err != nil {
		return nil
	}
	var parsed struct {
		CommandValues map[string]string `json:"commandValues"`
	}
	if jsonErr := json.Unmarshal([]byte(raw), &parsed); jsonErr != nil {
		return nil
	}
	return parsed.CommandValues
}

// NewSessionID mints a fresh session identifier the way connection
// handlers are expected to when a client attaches.
func NewSessionID() string {
	return uuid.NewString()
}

// sessionRouter adapts Document to render.SessionRouter without handing
// render a pointer typed *Document (keeping the dependency direction
// document -> render, not the reverse).
type sessionRouter Document

func (r *sessionRouter) SessionByID(id string) (render.Deliverable, bool) {
	s, ok := (*Document)(r).sessions.Load(id)
	return s, ok
}

func (r *sessionRouter) SessionByView(viewID int) (render.Deliverable, bool) {
	sessID, ok := (*Document)(r).viewToSession.Load(viewID)
	if !ok {
		return nil, false
	}
	return (*Document)(r).sessions.Load(sessID)
}

func (r *sessionRouter) Broadcast(cb types.Callback) {
	(*Document)(r).sessions.Range(func(_ string, sess *session.ChildSession) bool {
		sess.DeliverCallback(cb)
		return true
	})
}
