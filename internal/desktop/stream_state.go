package desktop

import (
	"slices"
	"time"

	"github.com/sorenmh/gendesk/internal/deskd/models"
)

// Progress is one progress delta of a generation
type Progress struct {
	Percent int       `json:"percent"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// StreamSession is the transient state of the generation in flight. It is
// reset at the start of every generation.
type StreamSession struct {
	Progress  []Progress
	Thinking  []string
	HTML      []string
	HTMLAppID string
	Tool      *models.ToolCall
	Error     string
}

// StreamState holds the StreamSession. Appends clip the previous slice so
// earlier states handed to listeners never change underneath them.
type StreamState struct {
	store *Store[StreamSession]
	now   func() time.Time
}

func NewStreamState() *StreamState {
	return &StreamState{store: NewStore(StreamSession{}), now: time.Now}
}

func (s *StreamState) Get() StreamSession {
	return s.store.Get()
}

func (s *StreamState) Subscribe(fn func(StreamSession)) func() {
	return s.store.Subscribe(fn)
}

func (s *StreamState) Reset() {
	s.store.Dispatch(func(StreamSession) StreamSession { return StreamSession{} })
}

func (s *StreamState) AddProgress(percent int, message string) {
	p := Progress{Percent: percent, Message: message, At: s.now()}
	s.store.Dispatch(func(st StreamSession) StreamSession {
		st.Progress = append(slices.Clip(st.Progress), p)
		return st
	})
}

func (s *StreamState) AddThinking(text string) {
	s.store.Dispatch(func(st StreamSession) StreamSession {
		st.Thinking = append(slices.Clip(st.Thinking), text)
		return st
	})
}

// AddHTML appends a document chunk. A chunk for a different app starts a new
// document.
func (s *StreamState) AddHTML(appID, chunk string) {
	s.store.Dispatch(func(st StreamSession) StreamSession {
		if st.HTMLAppID != appID {
			st.HTML = nil
			st.HTMLAppID = appID
		}
		st.HTML = append(slices.Clip(st.HTML), chunk)
		return st
	})
}

// SetTool records the tool currently executing; nil clears it.
func (s *StreamState) SetTool(tool *models.ToolCall) {
	s.store.Dispatch(func(st StreamSession) StreamSession {
		st.Tool = tool
		return st
	})
}

func (s *StreamState) SetError(message string) {
	s.store.Dispatch(func(st StreamSession) StreamSession {
		st.Error = message
		st.Tool = nil
		return st
	})
}
