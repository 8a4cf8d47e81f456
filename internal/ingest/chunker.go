// Package ingest turns uploaded documents into embedded index records:
// extract text, split into overlapping chunks, embed, upsert.
package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidChunkSize indicates a non-positive chunk size.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")

	// ErrInvalidOverlap indicates a negative overlap or one that is not
	// smaller than the chunk size.
	ErrInvalidOverlap = errors.New("overlap must be non-negative and smaller than chunk size")
)

// Segment is one chunk of a document's text.
type Segment struct {
	Index int
	Text  string
}

// Chunk splits text into segments of at most size runes, where each segment
// after the first starts size-overlap runes after the previous one. The
// split is deterministic: the same input always yields the same segments.
// Empty input yields an empty slice.
//
// Rune-based indexing keeps multi-byte characters intact at chunk
// boundaries.
func Chunk(text string, size, overlap int) ([]Segment, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidOverlap, size, overlap)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return []Segment{}, nil
	}

	step := size - overlap
	var segments []Segment
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		segments = append(segments, Segment{
			Index: len(segments),
			Text:  string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}
	return segments, nil
}
