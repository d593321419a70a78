package ports

import "canvas-backend/domain/core/entities"

// ParsedTranscript is the normalized result of parsing an uploaded
// transcription file.
type ParsedTranscript struct {
	Format    string
	FullText  string
	Segments  []entities.Segment
	WordCount int
	Duration  float64
}

// TranscriptParser parses uploaded transcription files (SRT, VTT, plain text).
type TranscriptParser interface {
	// Parse detects the format from the file name and content and extracts
	// the timed segments
	Parse(fileName string, data []byte) (ParsedTranscript, error)
}
