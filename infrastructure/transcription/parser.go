// Package transcription parses uploaded transcript files into normalized
// timed segments.
package transcription

import (
	"strconv"
	"strings"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/entities"
	pkgerrors "canvas-backend/pkg/errors"
)

// Supported formats.
const (
	FormatSRT   = "srt"
	FormatVTT   = "vtt"
	FormatPlain = "txt"
)

// Parser implements ports.TranscriptParser for SRT, WebVTT and plain text.
type Parser struct{}

var _ ports.TranscriptParser = (*Parser)(nil)

// NewParser creates a parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse detects the format and extracts timed segments. Detection prefers
// content over extension: a .txt upload that is actually SRT still parses.
func (p *Parser) Parse(fileName string, data []byte) (ports.ParsedTranscript, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimPrefix(text, "\uFEFF")

	format := detectFormat(fileName, text)

	var (
		segments []entities.Segment
		err      error
	)
	switch format {
	case FormatVTT:
		segments, err = parseVTT(text)
	case FormatSRT:
		segments, err = parseSRT(text)
	default:
		return plainTranscript(text), nil
	}
	if err != nil {
		return ports.ParsedTranscript{}, err
	}
	if len(segments) == 0 {
		return ports.ParsedTranscript{}, pkgerrors.NewValidation("no cues found in " + format + " file")
	}

	var full strings.Builder
	duration := 0.0
	for _, seg := range segments {
		if full.Len() > 0 {
			full.WriteString(" ")
		}
		full.WriteString(seg.Text)
		if seg.End > duration {
			duration = seg.End
		}
	}
	fullText := full.String()

	return ports.ParsedTranscript{
		Format:    format,
		FullText:  fullText,
		Segments:  segments,
		WordCount: len(strings.Fields(fullText)),
		Duration:  duration,
	}, nil
}

func detectFormat(fileName, text string) string {
	if strings.HasPrefix(strings.TrimSpace(text), "WEBVTT") {
		return FormatVTT
	}

	lower := strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(lower, ".vtt"):
		return FormatVTT
	case strings.HasSuffix(lower, ".srt"):
		return FormatSRT
	}

	if strings.Contains(text, "-->") {
		return FormatSRT
	}
	return FormatPlain
}

func plainTranscript(text string) ports.ParsedTranscript {
	text = strings.TrimSpace(text)
	return ports.ParsedTranscript{
		Format:    FormatPlain,
		FullText:  text,
		WordCount: len(strings.Fields(text)),
	}
}

// parseSRT parses SubRip blocks: numeric index, timing line with comma
// millisecond separators, then text lines until a blank line.
func parseSRT(text string) ([]entities.Segment, error) {
	var segments []entities.Segment

	for _, block := range strings.Split(text, "\n\n") {
		lines := nonEmptyLines(block)
		if len(lines) < 2 {
			continue
		}

		// The index line is optional in practice; the timing line is not.
		timingIdx := 0
		if _, err := strconv.Atoi(strings.TrimSpace(lines[0])); err == nil {
			timingIdx = 1
		}
		if timingIdx >= len(lines) {
			continue
		}

		start, end, err := parseTimingLine(lines[timingIdx])
		if err != nil {
			continue
		}

		body := strings.Join(lines[timingIdx+1:], " ")
		if body == "" {
			continue
		}
		segments = append(segments, entities.Segment{Start: start, End: end, Text: body})
	}
	return segments, nil
}

// parseVTT parses WebVTT cues, skipping the header, NOTE and STYLE blocks.
func parseVTT(text string) ([]entities.Segment, error) {
	var segments []entities.Segment

	blocks := strings.Split(text, "\n\n")
	for i, block := range blocks {
		lines := nonEmptyLines(block)
		if len(lines) == 0 {
			continue
		}
		if i == 0 && strings.HasPrefix(lines[0], "WEBVTT") {
			continue
		}
		if strings.HasPrefix(lines[0], "NOTE") || strings.HasPrefix(lines[0], "STYLE") {
			continue
		}

		timingIdx := -1
		for idx, line := range lines {
			if strings.Contains(line, "-->") {
				timingIdx = idx
				break
			}
		}
		if timingIdx < 0 || timingIdx == len(lines)-1 {
			continue
		}

		start, end, err := parseTimingLine(lines[timingIdx])
		if err != nil {
			continue
		}

		body := strings.Join(lines[timingIdx+1:], " ")
		segments = append(segments, entities.Segment{Start: start, End: end, Text: body})
	}
	return segments, nil
}

func parseTimingLine(line string) (float64, float64, error) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, pkgerrors.NewValidation("malformed timing line")
	}

	start, err := parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	// VTT cue settings may trail the end timestamp.
	endField := strings.Fields(strings.TrimSpace(parts[1]))
	if len(endField) == 0 {
		return 0, 0, pkgerrors.NewValidation("malformed timing line")
	}
	end, err := parseTimestamp(endField[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseTimestamp accepts "HH:MM:SS,mmm", "HH:MM:SS.mmm" and "MM:SS.mmm".
func parseTimestamp(ts string) (float64, error) {
	ts = strings.ReplaceAll(ts, ",", ".")
	parts := strings.Split(ts, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, pkgerrors.NewValidation("malformed timestamp: " + ts)
	}

	total := 0.0
	for _, part := range parts {
		value, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, pkgerrors.NewValidation("malformed timestamp: " + ts)
		}
		total = total*60 + value
	}
	return total, nil
}

func nonEmptyLines(block string) []string {
	var lines []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
