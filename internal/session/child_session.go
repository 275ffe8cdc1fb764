// Package session implements ChildSession (spec.md §3 Session, §4.4): the
// per-client state machine inside the kit that routes dequeued messages
// to the engine and forwards (or records) engine callbacks.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/CollaboraOnline/tilekit/internal/engine"
	"github.com/CollaboraOnline/tilekit/internal/kiterrors"
	"github.com/CollaboraOnline/tilekit/internal/protocol"
	"github.com/CollaboraOnline/tilekit/internal/staterecorder"
	"github.com/CollaboraOnline/tilekit/internal/types"
)

// FrameSender delivers an outbound wire frame to the client transport.
// Transport framing itself (websocket, TLS) is out of scope (spec.md §1);
// this is the narrow seam tilekit calls through.
type FrameSender interface {
	Send(frame []byte) error
}

// ChildSession is one connected client's state inside the kit (§3
// Session). It is created before ViewID is known (-1 until the engine
// allocates a view).
type ChildSession struct {
	mu sync.Mutex

	ID       string
	ViewID   int
	UserID   string
	UserName string
	Locale   string
	Password string

	active   bool
	closing  bool
	recorder *staterecorder.Recorder

	sender FrameSender
}

// New creates a session with ViewID unset (-1), matching §3's lifecycle
// note that a session exists before the engine allocates a view.
func New(id string, sender FrameSender) *ChildSession {
	return &ChildSession{
		ID:       id,
		ViewID:   -1,
		active:   true,
		recorder: staterecorder.New(),
		sender:   sender,
	}
}

// IsActive reports whether the session currently forwards callbacks live.
func (s *ChildSession) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// IsClosing reports whether the session has begun disconnecting.
func (s *ChildSession) IsClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// MarkClosing flags the session as tearing down; it still accepts a
// final flush but new inbound messages should be refused by the caller.
func (s *ChildSession) MarkClosing() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
}

// SetViewID records the view id the engine allocated for this session.
func (s *ChildSession) SetViewID(viewID int) {
	s.mu.Lock()
	s.ViewID = viewID
	s.mu.Unlock()
}

// Deactivate puts the session into inactive/recording mode (a
// "userinactive" message arrived, §4.4).
func (s *ChildSession) Deactivate() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}

// Activate replays the recorder's accumulated state (in the order
// prescribed by §4.4: invalidation, per-view events, self events, states,
// event sequence), clears it, and marks the session active again.
func (s *ChildSession) Activate(part int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cb := range s.recorder.Replay(part) {
		s.sendLocked(protocol.FormatCallback(cb))
	}
	s.recorder.Reset()
	s.active = true
}

// DeliverCallback applies §4.4's inactive-session policy: forward live if
// active, otherwise record — except unocommandresult mentioning
// ".uno:Save", which is always forwarded regardless of activity.
func (s *ChildSession) DeliverCallback(cb types.Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.alwaysForward(cb) || s.active {
		s.sendLocked(protocol.FormatCallback(cb))
		return
	}
	s.recorder.Record(cb)
}

func (s *ChildSession) alwaysForward(cb types.Callback) bool {
	return cb.Kind == types.CallbackUnoCommandResult && strings.Contains(cb.Payload, ".uno:Save")
}

func (s *ChildSession) sendLocked(line string) {
	if s.sender == nil {
		return
	}
	_ = s.sender.Send([]byte(line + "\n"))
}

// SendFrame delivers a pre-built binary frame (e.g. a rendered tile)
// straight to the transport, bypassing the callback replay policy —
// tiles have no lifetime beyond their render (§3 Lifecycles).
func (s *ChildSession) SendFrame(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sender == nil {
		return
	}
	_ = s.sender.Send(frame)
}

// HandleChildCommand routes one dequeued "child-<id>" command to the
// engine (§4.3). Recognized first tokens: "uno", "key", "mouse",
// "windowkey"; anything else is logged and dropped by the caller.
func (s *ChildSession) HandleChildCommand(ctx context.Context, eng engine.Engine, inner string) error {
	s.mu.Lock()
	viewID := s.ViewID
	s.mu.Unlock()

	if viewID >= 0 {
		if err := eng.SetView(ctx, viewID); err != nil {
			return err
		}
	}

	first, rest, _ := strings.Cut(inner, " ")
	switch first {
	case "uno":
		name, args, _ := strings.Cut(rest, " ")
		return eng.PostUnoCommand(ctx, name, args, true)
	case "key":
		t := protocol.Tokenize(inner)
		return eng.PostKeyEvent(ctx, engine.KeyEvent{
			Type:     t.Str("type"),
			CharCode: t.Int("char"),
			KeyCode:  t.Int("key"),
		})
	case "mouse":
		t := protocol.Tokenize(inner)
		return eng.PostMouseEvent(ctx, engine.MouseEvent{
			Type:     t.Str("type"),
			X:        t.Int("x"),
			Y:        t.Int("y"),
			Count:    t.Int("count"),
			Buttons:  t.Int("buttons"),
			Modifier: t.Int("modifier"),
		})
	case "windowkey":
		t := protocol.Tokenize(inner)
		return eng.PostWindowKeyEvent(ctx, engine.WindowKeyEvent{
			WinID:    t.Int("winid"),
			Type:     t.Str("type"),
			CharCode: t.Int("char"),
			KeyCode:  t.Int("key"),
		})
	default:
		return kiterrors.Wrap(kiterrors.ErrProtocol, "unknown child command %q", first)
	}
}
