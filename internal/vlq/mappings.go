package vlq

import (
	"errors"
	"strings"
)

// Segment is one mapping entry. Source-map segments carry 1, 4 or 5
// fields; this module writes the 4-field form
// (generated column, source index, source line, source column), each a
// delta from the previous segment on the same axis.
type Segment []int

// Valid reports whether s has one of the field counts the source map format
// allows: 1, 4 or 5.
func (s Segment) Valid() bool {
	switch len(s) {
	case 1, 4, 5:
		return true
	}
	return false
}

// Line holds the segments of one generated line; an empty Line means the
// generated line has no mapped positions.
type Line []Segment

// Mappings is the per-generated-line list of segments.
type Mappings []Line

// EncodeMappings renders mappings in the textual source map format. Only
// segments for which Valid reports true decode back; callers holding
// untrusted segments check them first.
func EncodeMappings(m Mappings) string {
	var sb strings.Builder
	for i, line := range m {
		if i > 0 {
			sb.WriteByte(';')
		}
		for j, seg := range line {
			if j > 0 {
				sb.WriteByte(',')
			}
			for _, v := range seg {
				appendVLQ(&sb, v)
			}
		}
	}
	return sb.String()
}

// DecodeMappings parses mappings text. Empty lines are preserved as empty
// Line values, so the result always has one more line than the number of
// semicolons in s.
func DecodeMappings(s string) (Mappings, error) {
	rawLines := strings.Split(s, ";")
	out := make(Mappings, 0, len(rawLines))
	for li, rawLine := range rawLines {
		if rawLine == "" {
			out = append(out, Line{})
			continue
		}
		rawSegs := strings.Split(rawLine, ",")
		line := make(Line, 0, len(rawSegs))
		for si, rawSeg := range rawSegs {
			seg, err := decodeSegment(rawSeg)
			if err != nil {
				err.Line, err.Segment, err.Text = li, si, rawSeg
				return nil, err
			}
			line = append(line, seg)
		}
		out = append(out, line)
	}
	return out, nil
}

func decodeSegment(raw string) (Segment, *DecodeError) {
	if raw == "" {
		return nil, newDecodeError(raw, 0, ErrEmpty)
	}
	values, err := DecodeVLQs(raw)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			return nil, de
		}
		return nil, newDecodeError(raw, 0, err)
	}
	if seg := Segment(values); seg.Valid() {
		return seg, nil
	}
	return nil, newDecodeError(raw, len(raw), ErrFieldCount)
}
