// Package vlq implements the base64 variable-length quantity codec used by
// source maps, and the semicolon/comma delimited mappings text built on it.
package vlq

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

	shift        = 5
	continuation = 1 << shift // bit 5 of each 6-bit group
	mask         = continuation - 1
	maxShift     = 60 // offset of the 13th group, which may carry only 4 bits

	// negativeZero is the sign bit alone. It never comes out of a real
	// negation, so it stands for math.MinInt, whose magnitude does not fit
	// next to a sign bit in 64 bits.
	negativeZero = 1
)

// Sentinel causes carried by DecodeError.
var (
	ErrInvalidChar = errors.New("invalid base64 vlq character")
	ErrTruncated   = errors.New("truncated vlq sequence")
	ErrOverflow    = errors.New("vlq value overflows int")
	ErrEmpty       = errors.New("empty vlq sequence")
	ErrFieldCount  = errors.New("invalid segment field count")
)

var decodeTable = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		t[alphabet[i]] = int8(i)
	}
	return t
}()

// DecodeError reports malformed VLQ or mappings text. Line and Segment are
// -1 when the error is not tied to a mappings position.
type DecodeError struct {
	Line    int
	Segment int
	Text    string
	Offset  int
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Line >= 0 {
		return fmt.Sprintf("decode mappings line %d segment %d %q at offset %d: %v", e.Line, e.Segment, e.Text, e.Offset, e.Err)
	}
	return fmt.Sprintf("decode vlq %q at offset %d: %v", e.Text, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func newDecodeError(text string, offset int, err error) *DecodeError {
	return &DecodeError{Line: -1, Segment: -1, Text: text, Offset: offset, Err: err}
}

// EncodeVLQ encodes a single signed integer.
func EncodeVLQ(i int) string {
	var sb strings.Builder
	appendVLQ(&sb, i)
	return sb.String()
}

func appendVLQ(sb *strings.Builder, i int) {
	var raw uint64
	switch {
	case i == math.MinInt:
		raw = negativeZero
	case i < 0:
		raw = uint64(-i)<<1 | 1
	default:
		raw = uint64(i) << 1
	}
	if raw < continuation {
		sb.WriteByte(alphabet[raw])
		return
	}
	for {
		digit := raw & mask
		raw >>= shift
		if raw > 0 {
			digit |= continuation
		}
		sb.WriteByte(alphabet[digit])
		if raw == 0 {
			return
		}
	}
}

// EncodeVLQs encodes a sequence of integers without separators.
func EncodeVLQs(values []int) string {
	var sb strings.Builder
	for _, v := range values {
		appendVLQ(&sb, v)
	}
	return sb.String()
}

// decodeOne reads one value starting at offset and returns it together with
// the offset just past its final group.
func decodeOne(s string, offset int) (int, int, error) {
	var raw uint64
	var bits uint
	pos := offset
	for {
		if pos >= len(s) {
			if pos == offset {
				return 0, pos, newDecodeError(s, offset, ErrEmpty)
			}
			return 0, pos, newDecodeError(s, offset, ErrTruncated)
		}
		digit := decodeTable[s[pos]]
		if digit < 0 {
			return 0, pos, newDecodeError(s, pos, ErrInvalidChar)
		}
		if bits == maxShift && (digit&continuation != 0 || digit&mask > 0xF) {
			return 0, pos, newDecodeError(s, offset, ErrOverflow)
		}
		raw |= uint64(digit&mask) << bits
		bits += shift
		pos++
		if digit&continuation == 0 {
			break
		}
	}
	if raw == negativeZero {
		return math.MinInt, pos, nil
	}
	if raw>>1 > math.MaxInt {
		return 0, pos, newDecodeError(s, offset, ErrOverflow)
	}
	value := int(raw >> 1)
	if raw&1 == 1 {
		value = -value
	}
	return value, pos, nil
}

// DecodeVLQ decodes exactly one value. Trailing characters are an error.
func DecodeVLQ(s string) (int, error) {
	v, next, err := decodeOne(s, 0)
	if err != nil {
		return 0, err
	}
	if next != len(s) {
		return 0, newDecodeError(s, next, fmt.Errorf("%d trailing characters", len(s)-next))
	}
	return v, nil
}

// DecodeVLQs decodes a self-delimiting run of values. The empty string
// decodes to an empty slice.
func DecodeVLQs(s string) ([]int, error) {
	out := make([]int, 0, len(s)/2+1)
	for pos := 0; pos < len(s); {
		v, next, err := decodeOne(s, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		pos = next
	}
	return out, nil
}
