package engine

import (
	"context"
	"fmt"
	"sync"
)

// Fake is a deterministic, in-memory Engine used by tests across the
// render/session/document packages. It never touches real rendering; a
// painted tile is filled with a byte derived from its coordinates so
// tests can assert on content without an image codec.
type Fake struct {
	mu             sync.Mutex
	loaded         bool
	password       string
	modifyPassword string
	nextView       int
	views          map[int]bool
	Commands       []string // recorded Post*/PostUnoCommand calls, for assertions
}

// NewFake creates an unloaded fake engine.
func NewFake() *Fake {
	return &Fake{views: make(map[int]bool)}
}

func (f *Fake) Load(_ context.Context, _ string, password string, _ RenderOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loaded {
		return nil // subsequent loads just attach a new view (§4.6 on_load)
	}
	if f.password != "" {
		if password == "" {
			return ErrPasswordRequired
		}
		if password != f.password {
			return ErrWrongPassword
		}
	} else if f.modifyPassword != "" && password != f.modifyPassword {
		return ErrPasswordRequiredToModify
	}
	f.loaded = true
	return nil
}

// SetRequiredPassword configures the fake to require a password before
// Load succeeds at all, for view-password-flow tests.
func (f *Fake) SetRequiredPassword(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.password = p
}

// SetModifyPassword configures the fake so Load succeeds (view-only)
// without a password, but returns ErrPasswordRequiredToModify unless the
// caller also supplies this password, for edit-restriction tests.
func (f *Fake) SetModifyPassword(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modifyPassword = p
}

func (f *Fake) CreateView(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextView++
	f.views[f.nextView] = true
	return f.nextView, nil
}

func (f *Fake) DestroyView(_ context.Context, viewID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.views, viewID)
	return nil
}

func (f *Fake) SetView(_ context.Context, viewID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.views[viewID] {
		return fmt.Errorf("engine: unknown view %d", viewID)
	}
	return nil
}

func (f *Fake) GetViewIDs(_ context.Context) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int, 0, len(f.views))
	for id := range f.views {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *Fake) PaintPartTile(_ context.Context, req PaintRequest) ([]byte, error) {
	buf := make([]byte, req.PixelWidth*req.PixelHeight*4)
	fill := byte((req.DocX + req.DocY + req.Part) % 251)
	for i := range buf {
		buf[i] = fill
	}
	return buf, nil
}

func (f *Fake) GetCommandValues(_ context.Context, command string) (string, error) {
	return fmt.Sprintf(`{"commandName":%q,"commandValues":{}}`, command), nil
}

func (f *Fake) PostUnoCommand(_ context.Context, name, args string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = append(f.Commands, name+" "+args)
	return nil
}

func (f *Fake) PostKeyEvent(_ context.Context, ev KeyEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = append(f.Commands, fmt.Sprintf("key type=%s char=%d key=%d", ev.Type, ev.CharCode, ev.KeyCode))
	return nil
}

func (f *Fake) PostMouseEvent(_ context.Context, ev MouseEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = append(f.Commands, fmt.Sprintf("mouse type=%s x=%d y=%d count=%d buttons=%d modifier=%d",
		ev.Type, ev.X, ev.Y, ev.Count, ev.Buttons, ev.Modifier))
	return nil
}

func (f *Fake) PostWindowKeyEvent(_ context.Context, ev WindowKeyEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = append(f.Commands, fmt.Sprintf("windowkey winid=%d type=%s char=%d key=%d", ev.WinID, ev.Type, ev.CharCode, ev.KeyCode))
	return nil
}

var _ Engine = (*Fake)(nil)
