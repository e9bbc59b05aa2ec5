// Package snippet cuts clinical text into bounded windows that end on a
// sentence boundary.
package snippet

import (
	"strings"
	"unicode"
)

// DefaultSize is the default number of runes per window.
const DefaultSize = 2000

// DefaultOverlap is the default number of overlapping runes.
const DefaultOverlap = 200

// minCut is the smallest share of a window kept when searching backwards
// for a sentence boundary.
const minCut = 2

// Windower splits text into windows.
type Windower struct {
	size    int
	overlap int
}

// Option configures the windower.
type Option func(*Windower)

// WithSize sets the window size in runes.
func WithSize(size int) Option {
	return func(w *Windower) {
		if size > 0 {
			w.size = size
		}
	}
}

// WithOverlap sets the overlap between windows in runes.
func WithOverlap(overlap int) Option {
	return func(w *Windower) {
		if overlap >= 0 {
			w.overlap = overlap
		}
	}
}

// New creates a windower with the given options.
func New(opts ...Option) *Windower {
	w := &Windower{
		size:    DefaultSize,
		overlap: DefaultOverlap,
	}
	for _, opt := range opts {
		opt(w)
	}
	// Ensure overlap doesn't exceed window size
	if w.overlap >= w.size {
		w.overlap = w.size / 4
	}
	return w
}

// First returns the first window of text.
func (w *Windower) First(text string) string {
	rs := []rune(strings.TrimSpace(text))
	if len(rs) <= w.size {
		return string(rs)
	}
	return strings.TrimSpace(string(rs[:w.cut(rs, 0)]))
}

// Windows splits text into overlapping windows.
func (w *Windower) Windows(text string) []string {
	rs := []rune(strings.TrimSpace(text))
	if len(rs) == 0 {
		return nil
	}
	var out []string
	start := 0
	for start < len(rs) {
		end := len(rs)
		if end-start > w.size {
			end = w.cut(rs, start)
		}
		if s := strings.TrimSpace(string(rs[start:end])); s != "" {
			out = append(out, s)
		}
		if end >= len(rs) {
			break
		}
		next := end - w.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// cut returns the end of the window starting at start. It backs up to the
// last sentence end or line break in the second half of the window, then
// to whitespace, and cuts hard when neither exists.
func (w *Windower) cut(rs []rune, start int) int {
	limit := start + w.size
	floor := start + w.size/minCut
	for i := limit; i > floor; i-- {
		if r := rs[i-1]; r == '.' || r == '\n' || r == '!' || r == '?' {
			return i
		}
	}
	for i := limit; i > floor; i-- {
		if unicode.IsSpace(rs[i-1]) {
			return i
		}
	}
	return limit
}
