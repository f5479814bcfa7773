// Package normalization maps free-form configuration strings onto typed
// enumerations.
package normalization

import (
	"fmt"
	"slices"
	"strings"
)

// Normalizer provides type-safe string-to-enum normalization.
type Normalizer[T comparable] struct {
	name         string
	values       map[string]T
	defaultValue T
	keys         []string
}

// NewNormalizer creates a normalizer for the enumeration called name. Keys of
// values are matched case-insensitively after trimming; several keys may map
// to the same value to accept aliases.
func NewNormalizer[T comparable](name string, values map[string]T, defaultValue T) *Normalizer[T] {
	n := &Normalizer[T]{
		name:         name,
		values:       make(map[string]T, len(values)),
		defaultValue: defaultValue,
	}
	for k, v := range values {
		key := clean(k)
		n.values[key] = v
		n.keys = append(n.keys, key)
	}
	slices.Sort(n.keys)
	return n
}

// Normalize converts raw to the enum value, returning the default when raw
// is not recognized.
func (n *Normalizer[T]) Normalize(raw string) T {
	if v, ok := n.values[clean(raw)]; ok {
		return v
	}
	return n.defaultValue
}

// Parse converts raw to the enum value. An empty raw yields the default.
func (n *Normalizer[T]) Parse(raw string) (T, error) {
	if clean(raw) == "" {
		return n.defaultValue, nil
	}
	if v, ok := n.values[clean(raw)]; ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q, valid options: %s", n.name, raw, strings.Join(n.keys, ", "))
}

// Result is the outcome of NormalizeWithWarning.
type Result[T comparable] struct {
	Value   T
	Warning string
}

// NormalizeWithWarning normalizes raw and describes any coercion that took
// place, so callers can report it.
func (n *Normalizer[T]) NormalizeWithWarning(field, raw string) Result[T] {
	v, err := n.Parse(raw)
	if err != nil {
		return Result[T]{
			Value:   n.defaultValue,
			Warning: fmt.Sprintf("%s: %v; using %v", field, err, n.defaultValue),
		}
	}
	res := Result[T]{Value: v}
	if raw != "" && fmt.Sprint(v) != raw {
		res.Warning = fmt.Sprintf("normalized %s from %q to %q", field, raw, fmt.Sprint(v))
	}
	return res
}

// ValidKeys returns all accepted spellings, sorted.
func (n *Normalizer[T]) ValidKeys() []string {
	return slices.Clone(n.keys)
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
