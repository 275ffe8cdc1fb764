// Package engine defines the narrow interface tilekit consumes from the
// document engine (spec.md §6.2). The real engine is a CGo/C-API
// collaborator out of scope for this core; this package only names the
// surface the rest of the module is built against, plus a deterministic
// fake used by tests.
package engine

import (
	"context"
	"errors"
)

// ErrPasswordRequired is returned by Load when the document cannot be
// viewed at all without a password (§3 password flow, §7).
var ErrPasswordRequired = errors.New("engine: password required")

// ErrPasswordRequiredToModify is returned by Load when the document can
// be viewed without a password but a password is required to edit it
// (§6.1 "error: cmd=load kind=passwordrequired:to-modify").
var ErrPasswordRequiredToModify = errors.New("engine: password required to modify")

// ErrWrongPassword is returned by Load when a supplied password is wrong.
var ErrWrongPassword = errors.New("engine: wrong password")

// ErrLoadFailed is returned by Load for any other load failure (§7
// "faileddocloading").
var ErrLoadFailed = errors.New("engine: document load failed")

// ErrBusy is a transient failure a caller may retry with backoff (used by
// Document.OnLoad's one-at-a-time open gate, see SPEC_FULL.md §B).
var ErrBusy = errors.New("engine: busy, retry")

// RenderOptions carries per-load rendering configuration (locale and
// watermark text) (§6.2 initialize_for_rendering).
type RenderOptions struct {
	Locale        string
	WatermarkText string
}

// PaintRequest is one paint_part_tile call's arguments (§6.2).
type PaintRequest struct {
	Part                            int
	PixelWidth, PixelHeight         int
	DocX, DocY, DocWidth, DocHeight int
	EditMode                        int
}

// KeyEvent carries the arguments of a post_key_event call (§6.2).
type KeyEvent struct {
	Type     string // "input" or "up"
	CharCode int
	KeyCode  int
}

// MouseEvent carries the arguments of a post_mouse_event call (§6.2).
type MouseEvent struct {
	Type     string // "buttondown", "buttonup", "move"
	X, Y     int
	Count    int
	Buttons  int
	Modifier int
}

// WindowKeyEvent carries the arguments of a post_window_key_event call,
// the dialog/notebookbar-window variant of KeyEvent (§6.2).
type WindowKeyEvent struct {
	WinID    int
	Type     string
	CharCode int
	KeyCode  int
}

// Engine is the subset of the document engine's C API tilekit calls
// through (§6.2). All methods operate on the currently-set view; callers
// must call SetView before any other call that is view-scoped (§5 "every
// entry point into the engine must call set_view").
type Engine interface {
	// Load opens the document at uri, or attaches a new view if it is
	// already open in this process. Returns ErrPasswordRequired /
	// ErrWrongPassword / ErrLoadFailed as appropriate.
	Load(ctx context.Context, uri, password string, opts RenderOptions) error

	CreateView(ctx context.Context) (viewID int, err error)
	DestroyView(ctx context.Context, viewID int) error
	SetView(ctx context.Context, viewID int) error
	GetViewIDs(ctx context.Context) ([]int, error)

	// PaintPartTile renders the requested tile synchronously into an RGBA
	// buffer of PixelWidth*PixelHeight*4 bytes.
	PaintPartTile(ctx context.Context, req PaintRequest) ([]byte, error)

	GetCommandValues(ctx context.Context, command string) (string, error)
	PostUnoCommand(ctx context.Context, name, args string, notify bool) error

	// PostKeyEvent, PostMouseEvent and PostWindowKeyEvent forward raw
	// input to the view set by the prior SetView call (§6.2, §2 "routes
	// dequeued non-tile messages to the engine").
	PostKeyEvent(ctx context.Context, ev KeyEvent) error
	PostMouseEvent(ctx context.Context, ev MouseEvent) error
	PostWindowKeyEvent(ctx context.Context, ev WindowKeyEvent) error
}

// CallbackFunc is the shape the engine invokes from its own callback
// thread (§6.2 "Callback delivery contract"). Handlers must be fast and
// non-blocking; the kit satisfies this by immediately forwarding into the
// TileQueue.
type CallbackFunc func(viewID int, callbackType int, payload string)
