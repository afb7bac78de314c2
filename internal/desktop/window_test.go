package desktop

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWindowManager() *WindowManager {
	m := NewWindowManager()
	n := 0
	m.newID = func() string {
		n++
		return fmt.Sprintf("win-%d", n)
	}
	m.intn = func(int) int { return 10 }
	return m
}

func TestOpenWindow(t *testing.T) {
	m := newTestWindowManager()

	id := m.OpenWindow("app-1")
	w, ok := m.Get(id)
	require.True(t, ok)

	assert.Equal(t, "app-1", w.AppID)
	assert.Equal(t, Rect{X: windowBaseX + 10, Y: windowBaseY + 10, Width: DefaultWindowWidth, Height: DefaultWindowHeight}, w.Rect)
	assert.Equal(t, 1, w.ZIndex)
	assert.False(t, w.Minimized)
	assert.False(t, w.Maximized)
}

func TestOpenWindowRandomOffsetIsBounded(t *testing.T) {
	m := NewWindowManager()

	for i := 0; i < 50; i++ {
		w, _ := m.Get(m.OpenWindow("app"))
		assert.GreaterOrEqual(t, w.X, windowBaseX)
		assert.Less(t, w.X, windowBaseX+windowOffsetSpan)
		assert.GreaterOrEqual(t, w.Y, windowBaseY)
		assert.Less(t, w.Y, windowBaseY+windowOffsetSpan)
	}
}

func TestZIndexStrictlyIncreases(t *testing.T) {
	m := NewWindowManager()

	ids := map[string]bool{}
	maxSeen := 0
	var opened []string

	for i := 0; i < 20; i++ {
		id := m.OpenWindow(fmt.Sprintf("app-%d", i%3))
		require.False(t, ids[id], "window ids must be unique")
		ids[id] = true
		opened = append(opened, id)

		w, _ := m.Get(id)
		assert.Greater(t, w.ZIndex, maxSeen)
		maxSeen = w.ZIndex

		if i%4 == 3 {
			target := opened[i/2]
			m.BringToFront(target)
			w, _ := m.Get(target)
			assert.Greater(t, w.ZIndex, maxSeen)
			maxSeen = w.ZIndex

			front, ok := m.Front()
			require.True(t, ok)
			assert.Equal(t, target, front.ID)
		}
	}
}

func TestCloseDoesNotCompactCounter(t *testing.T) {
	m := newTestWindowManager()

	a := m.OpenWindow("app")
	b := m.OpenWindow("app")
	m.CloseWindow(b)
	m.CloseWindow(a)

	c := m.OpenWindow("app")
	w, _ := m.Get(c)
	assert.Equal(t, 3, w.ZIndex)
}

func TestToggleMaximizeRestoresExactRect(t *testing.T) {
	m := newTestWindowManager()
	id := m.OpenWindow("app")
	m.UpdatePosition(id, 33, 44)
	m.UpdateSize(id, 640, 480)
	before, _ := m.Get(id)

	m.ToggleMaximize(id)
	w, _ := m.Get(id)
	require.True(t, w.Maximized)
	require.NotNil(t, w.Restore)
	assert.Equal(t, before.Rect, *w.Restore)

	// geometry changes are ignored while maximized
	m.UpdatePosition(id, 1, 1)
	m.UpdateSize(id, 10, 10)

	m.ToggleMaximize(id)
	after, _ := m.Get(id)
	assert.False(t, after.Maximized)
	assert.Nil(t, after.Restore)
	assert.Equal(t, Rect{X: 33, Y: 44, Width: 640, Height: 480}, after.Rect)
}

func TestMinimizeToggles(t *testing.T) {
	m := newTestWindowManager()
	id := m.OpenWindow("app")

	m.Minimize(id)
	w, _ := m.Get(id)
	assert.True(t, w.Minimized)

	// minimize and maximize are independent flags
	m.ToggleMaximize(id)
	w, _ = m.Get(id)
	assert.True(t, w.Minimized)
	assert.True(t, w.Maximized)

	m.Minimize(id)
	w, _ = m.Get(id)
	assert.False(t, w.Minimized)
	assert.True(t, w.Maximized)
}

func TestMutatorsAfterCloseAreNoOps(t *testing.T) {
	m := newTestWindowManager()
	id := m.OpenWindow("app")
	m.CloseWindow(id)

	var notified int
	m.Subscribe(func(WindowsState) { notified++ })

	assert.NotPanics(t, func() {
		m.CloseWindow(id)
		m.UpdatePosition(id, 1, 2)
		m.UpdateSize(id, 3, 4)
		m.BringToFront(id)
		m.Minimize(id)
		m.ToggleMaximize(id)
	})

	_, ok := m.Get(id)
	assert.False(t, ok)
	assert.Empty(t, m.List())
	assert.Equal(t, 6, notified)
	assert.Equal(t, 1, m.store.Get().MaxZ)
}

func TestDuplicateWindowsForSameApp(t *testing.T) {
	m := newTestWindowManager()

	first := m.OpenWindow("app-1")
	second := m.OpenWindow("app-1")
	require.NotEqual(t, first, second)

	windows := m.ByApp("app-1")
	require.Len(t, windows, 2)
	assert.Equal(t, first, windows[0].ID)
	assert.Equal(t, second, windows[1].ID)

	m.CloseWindow(first)
	_, ok := m.Get(second)
	assert.True(t, ok)
	assert.Len(t, m.ByApp("app-1"), 1)

	m.CloseWindow(second)
	assert.Empty(t, m.ByApp("app-1"))
}

func TestCloseWindowsByAppID(t *testing.T) {
	m := newTestWindowManager()
	m.OpenWindow("app-1")
	m.OpenWindow("app-1")
	keep := m.OpenWindow("app-2")

	m.CloseWindowsByAppID("app-1")

	windows := m.List()
	require.Len(t, windows, 1)
	assert.Equal(t, keep, windows[0].ID)
}

func TestWindowStateSnapshotsAreImmutable(t *testing.T) {
	m := newTestWindowManager()
	id := m.OpenWindow("app")

	var states []WindowsState
	m.Subscribe(func(s WindowsState) { states = append(states, s) })

	m.UpdatePosition(id, 1, 1)
	m.UpdatePosition(id, 2, 2)

	require.Len(t, states, 2)
	assert.Equal(t, 1, states[0].Windows[id].X)
	assert.Equal(t, 2, states[1].Windows[id].X)
}
