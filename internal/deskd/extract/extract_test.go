package extract

import (
	"testing"

	"github.com/sorenmh/gendesk/internal/deskd/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare object",
			input: `{"name":"Foo"}`,
			want:  `{"name":"Foo"}`,
		},
		{
			name:  "json fence",
			input: "```json\n{\"name\":\"Foo\"}\n```",
			want:  `{"name":"Foo"}`,
		},
		{
			name:  "prose around object",
			input: "Sure! Here is the metadata: {\"name\":\"Foo\"} Hope that helps.",
			want:  `{"name":"Foo"}`,
		},
		{
			name:  "double fence",
			input: "```\n```json\n{\"a\":{\"b\":1}}\n```\n```",
			want:  `{"a":{"b":1}}`,
		},
		{
			name:    "no braces",
			input:   "I cannot help with that",
			wantErr: true,
		},
		{
			name:    "closing before opening",
			input:   "} oops {",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoJSON)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMetadataFenced(t *testing.T) {
	meta, err := ParseMetadata("```json\n{\"name\":\"Foo\",\"icon\":\"🎯\",\"description\":\"d\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, models.Metadata{Name: "Foo", Icon: "🎯", Description: "d"}, meta)
}

func TestParseMetadataRepairsIcon(t *testing.T) {
	meta, err := ParseMetadata(`{"name":"Foo","icon":"a whole sentence","description":""}`)
	require.NoError(t, err)
	assert.Equal(t, FallbackIcon, meta.Icon)
}

func TestParseMetadataErrors(t *testing.T) {
	_, err := ParseMetadata(`{"name": }`)
	assert.Error(t, err)

	_, err = ParseMetadata(`{"icon":"🎯"}`)
	assert.Error(t, err)

	_, err = ParseMetadata("no json here")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestFallbackMetadata(t *testing.T) {
	meta := FallbackMetadata("a tic-tac-toe game with a scoreboard and dark mode")
	assert.Equal(t, "A tic-tac-toe game with a", meta.Name)
	assert.Equal(t, FallbackIcon, meta.Icon)
	assert.Equal(t, "a tic-tac-toe game with a scoreboard and dark mode", meta.Description)

	assert.Equal(t, "Untitled App", FallbackMetadata("   ").Name)
}

func TestExtractHTML(t *testing.T) {
	doc := "<!DOCTYPE html>\n<html><body><p>hi</p></body></html>"

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "clean document",
			input: doc,
			want:  doc,
		},
		{
			name:  "prose before and after",
			input: "Here is your app:\n\n" + doc + "\n\nLet me know if you want changes.",
			want:  doc,
		},
		{
			name:  "html fence",
			input: "```html\n" + doc + "\n```",
			want:  doc,
		},
		{
			name:  "fence inside prose",
			input: "Sure thing.\n```html\n" + doc + "\n```\nEnjoy!",
			want:  doc,
		},
		{
			name:  "lowercase doctype",
			input: "x <!doctype html><html></html> y",
			want:  "<!doctype html><html></html>",
		},
		{
			name:  "missing closing tag keeps the tail",
			input: "intro <!DOCTYPE html><html><body>truncated",
			want:  "<!DOCTYPE html><html><body>truncated",
		},
		{
			name:  "no doctype cuts only the tail",
			input: "<html><body></body></html> trailing",
			want:  "<html><body></body></html>",
		},
		{
			name:  "uppercase closing tag",
			input: "<!DOCTYPE HTML><HTML></HTML>\nbye",
			want:  "<!DOCTYPE HTML><HTML></HTML>",
		},
		{
			name:  "non-ascii before doctype",
			input: "İstanbul app: <!DOCTYPE html><html></html>",
			want:  "<!DOCTYPE html><html></html>",
		},
		{
			name:    "empty",
			input:   "```html\n```",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractHTML(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoHTML)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
