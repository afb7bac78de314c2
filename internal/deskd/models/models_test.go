package models

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestMarkCurrent(t *testing.T) {
	versions := []Version{
		{VersionNumber: 3, HTMLStoragePath: "apps/a/index-3.html"},
		{VersionNumber: 2, HTMLStoragePath: "apps/a/index-2.html"},
		{VersionNumber: 1, HTMLStoragePath: "apps/a/index-1.html"},
	}

	marked := MarkCurrent(versions, strPtr("apps/a/index-2.html"))
	require.Len(t, marked, 3)
	assert.False(t, marked[0].IsCurrent)
	assert.True(t, marked[1].IsCurrent)
	assert.False(t, marked[2].IsCurrent)

	for _, v := range MarkCurrent(versions, nil) {
		assert.False(t, v.IsCurrent)
	}
}

func TestSnapshotEqual(t *testing.T) {
	a := Snapshot{ID: "1", Name: "n", Icon: "i", Status: StatusGenerating}
	b := a
	assert.True(t, a.Equal(b))

	b.ErrorMessage = strPtr("boom")
	assert.False(t, a.Equal(b))

	a.ErrorMessage = strPtr("boom")
	assert.True(t, a.Equal(b))

	ms := int64(10)
	a.GenerationTimeMs = &ms
	assert.False(t, a.Equal(b))
}

func TestStreamEventTerminal(t *testing.T) {
	assert.True(t, StreamEvent{Type: EventError}.Terminal())
	assert.True(t, StreamEvent{Type: EventSnapshot, Snapshot: &Snapshot{Status: StatusReady}}.Terminal())
	assert.True(t, StreamEvent{Type: EventSnapshot, Snapshot: &Snapshot{Status: StatusError}}.Terminal())
	assert.False(t, StreamEvent{Type: EventSnapshot, Snapshot: &Snapshot{Status: StatusGenerating}}.Terminal())
	assert.False(t, StreamEvent{Type: EventThinking, Text: "hm"}.Terminal())
}

func TestStreamEventSSEName(t *testing.T) {
	assert.Equal(t, SSEFailure, StreamEvent{Type: EventError}.SSEName())
	assert.Equal(t, EventSnapshot, StreamEvent{Type: EventSnapshot}.SSEName())
	assert.Equal(t, EventThinking, StreamEvent{Type: EventThinking}.SSEName())
}

func TestIsGlyph(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"🎯", true},
		{"A", true},
		{"👩‍💻", true},
		{"", false},
		{"a b", false},
		{"toolongvalue", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsGlyph(tt.in), "IsGlyph(%q)", tt.in)
	}
}

func TestValidatePrompt(t *testing.T) {
	assert.NoError(t, ValidatePrompt("a tic-tac-toe game", 100))

	err := ValidatePrompt("   ", 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	err = ValidatePrompt(strings.Repeat("x", 101), 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRequest))
	assert.Contains(t, err.Error(), "exceeds 100")
}

func TestValidatorGlyphRule(t *testing.T) {
	v := NewValidator()

	type payload struct {
		Icon *string `validate:"omitempty,glyph"`
	}

	assert.NoError(t, v.Struct(payload{}))
	assert.NoError(t, v.Struct(payload{Icon: strPtr("🚀")}))

	err := v.Struct(payload{Icon: strPtr("not an icon")})
	require.Error(t, err)

	converted := ConvertValidatorErrors(err)
	var ves ValidationErrors
	require.True(t, errors.As(converted, &ves))
	require.Len(t, ves, 1)
	assert.Equal(t, "Icon", ves[0].Field)
	assert.Equal(t, "must be a single emoji or character", ves[0].Message)
}

func TestCodeFor(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeFor(fmt.Errorf("app x: %w", ErrNotFound)))
	assert.Equal(t, CodeInvalidRequest, CodeFor(fmt.Errorf("%w: bad", ErrInvalidRequest)))
	assert.Equal(t, CodeStorageError, CodeFor(fmt.Errorf("%w: s3 down", ErrStorage)))
	assert.Equal(t, CodeInternal, CodeFor(errors.New("boom")))
}
