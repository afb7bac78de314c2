package desktop

import (
	"math/rand/v2"
	"sort"

	"github.com/google/uuid"
)

// Window geometry defaults. New windows open at the base origin shifted by a
// random offset so they never stack exactly on top of each other.
const (
	DefaultWindowWidth  = 800
	DefaultWindowHeight = 600

	windowBaseX      = 80
	windowBaseY      = 60
	windowOffsetSpan = 200
)

// Rect is a window's position and size
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Window is one open app instance on the desktop.
type Window struct {
	Rect

	ID        string `json:"id"`
	AppID     string `json:"appId"`
	ZIndex    int    `json:"zIndex"`
	Minimized bool   `json:"minimized"`
	Maximized bool   `json:"maximized"`
	Restore   *Rect  `json:"restore,omitempty"`
}

// WindowsState is the full window set plus the z-index counter. The counter
// only grows; closing windows never compacts it.
type WindowsState struct {
	Windows map[string]Window
	MaxZ    int
}

func (s WindowsState) clone() WindowsState {
	windows := make(map[string]Window, len(s.Windows))
	for id, w := range s.Windows {
		windows[id] = w
	}
	return WindowsState{Windows: windows, MaxZ: s.MaxZ}
}

// WindowManager is the window lifecycle state machine. Operations on a
// window id that no longer exists are silent no-ops.
type WindowManager struct {
	store *Store[WindowsState]
	intn  func(n int) int
	newID func() string
}

func NewWindowManager() *WindowManager {
	return &WindowManager{
		store: NewStore(WindowsState{Windows: map[string]Window{}}),
		intn:  rand.IntN,
		newID: uuid.NewString,
	}
}

// Subscribe registers fn for every window state change
func (m *WindowManager) Subscribe(fn func(WindowsState)) func() {
	return m.store.Subscribe(fn)
}

// OpenWindow opens a new window bound to appID and returns its id. Several
// windows may be bound to the same app.
func (m *WindowManager) OpenWindow(appID string) string {
	id := m.newID()
	x := windowBaseX + m.intn(windowOffsetSpan)
	y := windowBaseY + m.intn(windowOffsetSpan)

	m.store.Dispatch(func(s WindowsState) WindowsState {
		next := s.clone()
		next.MaxZ++
		next.Windows[id] = Window{
			ID:     id,
			AppID:  appID,
			Rect:   Rect{X: x, Y: y, Width: DefaultWindowWidth, Height: DefaultWindowHeight},
			ZIndex: next.MaxZ,
		}
		return next
	})
	return id
}

func (m *WindowManager) CloseWindow(id string) {
	m.store.Dispatch(func(s WindowsState) WindowsState {
		if _, ok := s.Windows[id]; !ok {
			return s
		}
		next := s.clone()
		delete(next.Windows, id)
		return next
	})
}

// CloseWindowsByAppID closes every window bound to appID.
func (m *WindowManager) CloseWindowsByAppID(appID string) {
	m.store.Dispatch(func(s WindowsState) WindowsState {
		next := s.clone()
		for id, w := range next.Windows {
			if w.AppID == appID {
				delete(next.Windows, id)
			}
		}
		return next
	})
}

// update applies fn to one window. fn reports whether it changed anything.
func (m *WindowManager) update(id string, fn func(w *Window) bool) {
	m.store.Dispatch(func(s WindowsState) WindowsState {
		w, ok := s.Windows[id]
		if !ok {
			return s
		}
		if !fn(&w) {
			return s
		}
		next := s.clone()
		next.Windows[id] = w
		return next
	})
}

// UpdatePosition moves a window. Maximized windows keep their geometry.
func (m *WindowManager) UpdatePosition(id string, x, y int) {
	m.update(id, func(w *Window) bool {
		if w.Maximized {
			return false
		}
		w.X, w.Y = x, y
		return true
	})
}

// UpdateSize resizes a window. Maximized windows keep their geometry.
func (m *WindowManager) UpdateSize(id string, width, height int) {
	m.update(id, func(w *Window) bool {
		if w.Maximized {
			return false
		}
		w.Width, w.Height = width, height
		return true
	})
}

// BringToFront gives the window a z-index above every other window.
func (m *WindowManager) BringToFront(id string) {
	m.store.Dispatch(func(s WindowsState) WindowsState {
		w, ok := s.Windows[id]
		if !ok {
			return s
		}
		next := s.clone()
		next.MaxZ++
		w.ZIndex = next.MaxZ
		next.Windows[id] = w
		return next
	})
}

// Minimize toggles the minimized flag
func (m *WindowManager) Minimize(id string) {
	m.update(id, func(w *Window) bool {
		w.Minimized = !w.Minimized
		return true
	})
}

// ToggleMaximize maximizes a window, remembering its rect, or restores
// exactly the remembered rect.
func (m *WindowManager) ToggleMaximize(id string) {
	m.update(id, func(w *Window) bool {
		if w.Maximized {
			if w.Restore != nil {
				w.Rect = *w.Restore
			}
			w.Restore = nil
			w.Maximized = false
			return true
		}
		restore := w.Rect
		w.Restore = &restore
		w.Maximized = true
		return true
	})
}

// Get returns one window
func (m *WindowManager) Get(id string) (Window, bool) {
	w, ok := m.store.Get().Windows[id]
	return w, ok
}

// List returns all windows ordered back to front.
func (m *WindowManager) List() []Window {
	state := m.store.Get()
	windows := make([]Window, 0, len(state.Windows))
	for _, w := range state.Windows {
		windows = append(windows, w)
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].ZIndex < windows[j].ZIndex })
	return windows
}

// ByApp returns the windows bound to appID, back to front.
func (m *WindowManager) ByApp(appID string) []Window {
	var out []Window
	for _, w := range m.List() {
		if w.AppID == appID {
			out = append(out, w)
		}
	}
	return out
}

// Front returns the front-most window, if any.
func (m *WindowManager) Front() (Window, bool) {
	windows := m.List()
	if len(windows) == 0 {
		return Window{}, false
	}
	return windows[len(windows)-1], true
}
