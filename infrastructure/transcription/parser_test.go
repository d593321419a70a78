package transcription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "canvas-backend/pkg/errors"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:04,500
Welcome back to the channel.

2
00:00:04,500 --> 00:00:09,000
Today we are building a canvas backend
from scratch.
`

const sampleVTT = `WEBVTT

NOTE This file was exported by the editor.

00:01.000 --> 00:04.500
Welcome back to the channel.

cue-2
00:00:04.500 --> 00:00:09.000 align:start
Today we are building a canvas backend from scratch.
`

func TestParseSRT(t *testing.T) {
	parser := NewParser()

	parsed, err := parser.Parse("episode.srt", []byte(sampleSRT))
	require.NoError(t, err)

	assert.Equal(t, FormatSRT, parsed.Format)
	require.Len(t, parsed.Segments, 2)
	assert.Equal(t, 1.0, parsed.Segments[0].Start)
	assert.Equal(t, 4.5, parsed.Segments[0].End)
	assert.Equal(t, "Welcome back to the channel.", parsed.Segments[0].Text)
	assert.Equal(t, "Today we are building a canvas backend from scratch.", parsed.Segments[1].Text)
	assert.Equal(t, 9.0, parsed.Duration)
	assert.Equal(t, 14, parsed.WordCount)
}

func TestParseVTT(t *testing.T) {
	parser := NewParser()

	parsed, err := parser.Parse("episode.vtt", []byte(sampleVTT))
	require.NoError(t, err)

	assert.Equal(t, FormatVTT, parsed.Format)
	require.Len(t, parsed.Segments, 2)
	assert.Equal(t, 1.0, parsed.Segments[0].Start)
	assert.Equal(t, 4.5, parsed.Segments[0].End)
	assert.Equal(t, 9.0, parsed.Segments[1].End)
	assert.Equal(t, 9.0, parsed.Duration)
}

func TestParseDetectsFormatFromContent(t *testing.T) {
	parser := NewParser()

	// A .txt upload carrying VTT content still parses as VTT.
	parsed, err := parser.Parse("notes.txt", []byte(sampleVTT))
	require.NoError(t, err)
	assert.Equal(t, FormatVTT, parsed.Format)
	assert.Len(t, parsed.Segments, 2)

	// Extensionless SRT detected by timing arrows.
	parsed, err = parser.Parse("upload", []byte(sampleSRT))
	require.NoError(t, err)
	assert.Equal(t, FormatSRT, parsed.Format)
}

func TestParsePlainText(t *testing.T) {
	parser := NewParser()

	parsed, err := parser.Parse("notes.txt", []byte("  just some loose notes about the video  "))
	require.NoError(t, err)

	assert.Equal(t, FormatPlain, parsed.Format)
	assert.Equal(t, "just some loose notes about the video", parsed.FullText)
	assert.Equal(t, 7, parsed.WordCount)
	assert.Empty(t, parsed.Segments)
	assert.Zero(t, parsed.Duration)
}

func TestParseCRLFAndBOM(t *testing.T) {
	parser := NewParser()

	crlf := "\uFEFF1\r\n00:00:00,000 --> 00:00:02,000\r\nHello there.\r\n"
	parsed, err := parser.Parse("win.srt", []byte(crlf))
	require.NoError(t, err)
	require.Len(t, parsed.Segments, 1)
	assert.Equal(t, "Hello there.", parsed.Segments[0].Text)
}

func TestParseSRTWithoutCues(t *testing.T) {
	parser := NewParser()

	_, err := parser.Parse("broken.srt", []byte("1\ngarbage timing line\ntext\n"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestParseSkipsMalformedBlocks(t *testing.T) {
	parser := NewParser()

	mixed := "1\nnot a timing line\noops\n\n2\n00:00:01,000 --> 00:00:02,000\nStill works.\n"
	parsed, err := parser.Parse("mixed.srt", []byte(mixed))
	require.NoError(t, err)
	require.Len(t, parsed.Segments, 1)
	assert.Equal(t, "Still works.", parsed.Segments[0].Text)
}

func TestParseTimestampForms(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"00:00:01,000", 1},
		{"00:00:01.500", 1.5},
		{"01:02:03.000", 3723},
		{"02:30.250", 150.25},
	}
	for _, tc := range cases {
		got, err := parseTimestamp(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := parseTimestamp("1")
	assert.Error(t, err)
	_, err = parseTimestamp("aa:bb")
	assert.Error(t, err)
}
