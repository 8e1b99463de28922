// Package chunker splits document text into overlapping pieces sized for
// independent embedding. Splitting is recursive: it tries the coarsest
// separator first and only falls back to finer ones for pieces that are
// still too large, so paragraph and sentence boundaries survive where they
// can.
package chunker

import "strings"

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 100
)

// DefaultSeparators orders split points from coarsest to finest. The empty
// string means split between individual characters.
func DefaultSeparators() []string {
	return []string{"\n\n", "\n", ". ", " ", ""}
}

// Splitter is a pure, deterministic text splitter. The zero value is not
// usable; construct with New.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// New returns a Splitter producing chunks of roughly chunkSize characters
// with roughly overlap characters repeated between adjacent chunks.
// Non-positive arguments fall back to the defaults.
func New(chunkSize, overlap int) *Splitter {
	return NewWithSeparators(chunkSize, overlap, DefaultSeparators())
}

// NewWithSeparators returns a Splitter with a custom separator order,
// coarsest first. An empty list falls back to the defaults. Without a
// final "" separator, a token with none of the separators in it is kept
// whole even when it exceeds the chunk size.
func NewWithSeparators(chunkSize, overlap int, separators []string) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultOverlap
	}
	if len(separators) == 0 {
		separators = DefaultSeparators()
	}
	return &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: separators,
	}
}

// Split breaks text into an ordered sequence of chunks covering the whole
// input. Empty input yields no chunks. A single token longer than the chunk
// size becomes its own oversized chunk rather than being dropped.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	// Pick the coarsest separator present in the text; remember the finer
	// ones for re-splitting oversized pieces.
	separator := separators[len(separators)-1]
	var next []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			next = separators[i+1:]
			break
		}
	}

	splits := splitOn(text, separator)

	var out []string
	var good []string
	for _, piece := range splits {
		if len(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good, separator)...)
			good = nil
		}
		if len(next) == 0 {
			// Unsplittable oversized token: keep it whole.
			out = append(out, piece)
		} else {
			out = append(out, s.split(piece, next)...)
		}
	}
	if len(good) > 0 {
		out = append(out, s.merge(good, separator)...)
	}
	return out
}

// merge joins small pieces back together up to the chunk size, carrying the
// trailing pieces of each chunk into the head of the next to form the
// overlap.
func (s *Splitter) merge(splits []string, separator string) []string {
	sepLen := len(separator)

	var chunks []string
	var window []string
	total := 0
	for _, piece := range splits {
		n := len(piece)
		if total+n+joinLen(sepLen, len(window) > 0) > s.chunkSize && len(window) > 0 {
			if chunk := joinPieces(window, separator); chunk != "" {
				chunks = append(chunks, chunk)
			}
			// Shrink the window until it fits inside the overlap and
			// leaves room for the incoming piece.
			for total > s.overlap || (total+n+joinLen(sepLen, len(window) > 0) > s.chunkSize && total > 0) {
				total -= len(window[0]) + joinLen(sepLen, len(window) > 1)
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += n + joinLen(sepLen, len(window) > 1)
	}
	if chunk := joinPieces(window, separator); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func joinPieces(pieces []string, separator string) string {
	return strings.TrimSpace(strings.Join(pieces, separator))
}

func joinLen(sepLen int, joined bool) int {
	if joined {
		return sepLen
	}
	return 0
}

// splitOn splits text on separator, dropping empty pieces. An empty
// separator splits between characters.
func splitOn(text, separator string) []string {
	var raw []string
	if separator == "" {
		raw = strings.Split(text, "")
	} else {
		raw = strings.Split(text, separator)
	}
	pieces := raw[:0]
	for _, p := range raw {
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}
