// Package sourcemap tracks generated-to-source positions while a source file
// is rewritten with header, footer and indentation padding, and reads and
// writes the resulting Source Map v3 documents.
package sourcemap

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"git.home.luguber.info/inful/bundlekit/internal/vlq"
)

const partialDiscardWarning = "partial line discard UNSUPPORTED; source map generated will not match at the column level"

// Writer forwards text to an underlying stream and records one mapping
// segment for every fragment of original source written through Write.
//
// Only whole-line discards are tracked. Discarding part of a line leaves
// the source column where it was, so subsequent segments on that line are
// off by the discarded width.
type Writer struct {
	stream io.Writer
	logger *slog.Logger
	index  int

	mappings vlq.Mappings

	genCol     int // absolute column in the current generated line
	lastGenCol int // column of the previous segment on this generated line

	srcRow, srcCol         int // current position in the original source
	prevSrcRow, prevSrcCol int // position recorded by the previous segment
	prevIndex              int

	warned bool
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithLogger sets the logger used for the partial discard warning.
func WithLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithSourceIndex sets the index into the sources list recorded in each
// segment. Defaults to 0.
func WithSourceIndex(i int) WriterOption {
	return func(w *Writer) { w.index = i }
}

// NewWriter creates a Writer over stream.
func NewWriter(stream io.Writer, opts ...WriterOption) *Writer {
	w := &Writer{
		stream:   stream,
		logger:   slog.Default(),
		mappings: vlq.Mappings{vlq.Line{}},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// splitLines splits s after each \n, \r\n or \r, keeping the terminators.
func splitLines(s string) []string {
	var out []string
	for len(s) > 0 {
		i := strings.IndexAny(s, "\r\n")
		if i < 0 {
			out = append(out, s)
			break
		}
		end := i + 1
		if s[i] == '\r' && end < len(s) && s[end] == '\n' {
			end++
		}
		out = append(out, s[:end])
		s = s[end:]
	}
	return out
}

func endsLine(line string) bool {
	last := line[len(line)-1]
	return last == '\n' || last == '\r'
}

func (w *Writer) newline() {
	w.mappings = append(w.mappings, vlq.Line{})
	w.genCol = 0
	w.lastGenCol = 0
}

func (w *Writer) emit() {
	seg := vlq.Segment{
		w.genCol - w.lastGenCol,
		w.index - w.prevIndex,
		w.srcRow - w.prevSrcRow,
		w.srcCol - w.prevSrcCol,
	}
	last := len(w.mappings) - 1
	w.mappings[last] = append(w.mappings[last], seg)
	w.lastGenCol = w.genCol
	w.prevIndex = w.index
	w.prevSrcRow, w.prevSrcCol = w.srcRow, w.srcCol
}

// WriteString writes text taken from the original source. Every line
// fragment produces one segment.
func (w *Writer) WriteString(s string) (int, error) {
	written := 0
	for _, line := range splitLines(s) {
		w.emit()
		n, err := io.WriteString(w.stream, line)
		written += n
		if err != nil {
			return written, fmt.Errorf("write source line: %w", err)
		}
		if endsLine(line) {
			w.newline()
			w.srcRow++
			w.srcCol = 0
			continue
		}
		width := utf8.RuneCountInString(line)
		w.genCol += width
		w.srcCol += width
	}
	return written, nil
}

// Write implements io.Writer by treating p as original source text.
func (w *Writer) Write(p []byte) (int, error) {
	return w.WriteString(string(p))
}

// WritePadding writes text that is not part of the original source, such as
// a module header, footer or indentation. No segments are recorded.
func (w *Writer) WritePadding(s string) error {
	for _, line := range splitLines(s) {
		if _, err := io.WriteString(w.stream, line); err != nil {
			return fmt.Errorf("write padding: %w", err)
		}
		if endsLine(line) {
			w.newline()
			continue
		}
		w.genCol += utf8.RuneCountInString(line)
	}
	return nil
}

// Discard skips text of the original source without writing it. Each
// complete line advances the source row; a partial line is not tracked and
// triggers a single warning per writer.
func (w *Writer) Discard(s string) {
	for _, line := range splitLines(s) {
		if endsLine(line) {
			w.srcRow++
			continue
		}
		if !w.warned {
			w.logger.Warn(partialDiscardWarning)
			w.warned = true
		}
	}
}

// Mappings returns a copy of the segments recorded so far. There is always
// one more line than the number of generated line terminators.
func (w *Writer) Mappings() vlq.Mappings {
	out := make(vlq.Mappings, len(w.mappings))
	for i, line := range w.mappings {
		cp := make(vlq.Line, len(line))
		copy(cp, line)
		out[i] = cp
	}
	return out
}

// Value returns the accumulated output when the underlying stream can
// report it.
func (w *Writer) Value() (string, bool) {
	if s, ok := w.stream.(fmt.Stringer); ok {
		return s.String(), true
	}
	return "", false
}

// String returns the accumulated output, or "" when the stream cannot
// report it.
func (w *Writer) String() string {
	s, _ := w.Value()
	return s
}
