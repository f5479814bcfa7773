// Package spec holds the shared, insertion-ordered build state threaded
// through one toolchain run, together with its named advice queues.
package spec

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Alias rewrites a deprecated key to its current name.
type Alias struct {
	Match   func(key string) bool
	Rewrite func(key string) string
}

// DefaultAliases redirects the retired "*_source_map" and "*_targets" key
// names. Keys starting with "generate" keep their "_source_map" suffix.
func DefaultAliases() []Alias {
	return []Alias{
		{
			Match: func(k string) bool {
				return strings.HasSuffix(k, "_source_map") && !strings.HasPrefix(k, "generate")
			},
			Rewrite: func(k string) string {
				return strings.TrimSuffix(k, "_source_map") + SuffixSourcepath
			},
		},
		{
			Match: func(k string) bool { return strings.HasSuffix(k, "_targets") },
			Rewrite: func(k string) string {
				return strings.TrimSuffix(k, "_targets") + SuffixTargetpaths
			},
		},
	}
}

// Getter is satisfied by anything values can be selectively copied from.
type Getter interface {
	Get(key string) (any, bool)
}

// Spec is the mutable state of a single build. It is not safe for
// concurrent use.
type Spec struct {
	logger  *slog.Logger
	aliases []Alias

	keys   []string
	values map[string]any

	advices  map[Event][]advice
	handled  map[Event]struct{}
	handling int
}

// Option configures a Spec.
type Option func(*Spec)

// WithLogger sets the logger used for alias and advice diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Spec) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAliases replaces the default alias table.
func WithAliases(aliases ...Alias) Option {
	return func(s *Spec) { s.aliases = aliases }
}

// New creates an empty Spec.
func New(opts ...Option) *Spec {
	s := &Spec{
		logger:  slog.Default(),
		aliases: DefaultAliases(),
		values:  map[string]any{},
		advices: map[Event][]advice{},
		handled: map[Event]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Logger returns the logger the Spec was created with.
func (s *Spec) Logger() *slog.Logger { return s.logger }

// FromMap creates a Spec seeded from m. Keys are inserted in sorted order.
func FromMap(m map[string]any, opts ...Option) *Spec {
	s := New(opts...)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.Set(k, m[k])
	}
	return s
}

func (s *Spec) resolve(key string) string {
	for _, a := range s.aliases {
		if a.Match == nil || a.Rewrite == nil || !a.Match(key) {
			continue
		}
		newKey := a.Rewrite(key)
		if newKey != key {
			s.logger.Warn("spec key has been remapped; update callers to the new name",
				slog.String("old_key", key), slog.String("new_key", newKey))
		}
		return newKey
	}
	return key
}

// Get returns the value stored under key.
func (s *Spec) Get(key string) (any, bool) {
	v, ok := s.values[s.resolve(key)]
	return v, ok
}

// GetOr returns the value stored under key, or def when absent.
func (s *Spec) GetOr(key string, def any) any {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

// Has reports whether key is present.
func (s *Spec) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Set stores v under key. New keys are appended to the insertion order.
func (s *Spec) Set(key string, v any) {
	s.store(s.resolve(key), v)
}

// store writes under an already resolved key.
func (s *Spec) store(key string, v any) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = v
}

// SetDefault stores v under key unless key is present, and returns the
// value now stored.
func (s *Spec) SetDefault(key string, v any) any {
	key = s.resolve(key)
	if cur, ok := s.values[key]; ok {
		return cur
	}
	s.store(key, v)
	return v
}

// Delete removes key.
func (s *Spec) Delete(key string) {
	key = s.resolve(key)
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (s *Spec) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of keys.
func (s *Spec) Len() int { return len(s.keys) }

// Map returns a shallow copy of the stored values.
func (s *Spec) Map() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// UpdateSelected copies only the listed keys from other. Keys missing from
// other are ignored.
func (s *Spec) UpdateSelected(other Getter, keys ...string) {
	for _, k := range keys {
		if v, ok := other.Get(k); ok {
			s.Set(k, v)
		}
	}
}

// GetString returns the string under key, or "" when absent or not a string.
func (s *Spec) GetString(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

// GetBool returns the bool under key.
func (s *Spec) GetBool(key string) bool {
	v, _ := s.Get(key)
	b, _ := v.(bool)
	return b
}

// GetInt returns the integer under key. Values decoded from YAML or JSON
// arrive as int, int64 or float64 and are all accepted.
func (s *Spec) GetInt(key string) int {
	v, _ := s.Get(key)
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// GetStrings returns the string list under key. []any values are accepted
// when every element is a string.
func (s *Spec) GetStrings(key string) []string {
	v, _ := s.Get(key)
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			str, ok := e.(string)
			if !ok {
				return nil
			}
			out = append(out, str)
		}
		return out
	default:
		return nil
	}
}

// GetStringMap returns the string map under key. map[string]any values are
// converted when every value is a string. The second result is false when
// the key is absent or holds something else.
func (s *Spec) GetStringMap(key string) (map[string]string, bool) {
	v, ok := s.Get(key)
	if !ok {
		return nil, false
	}
	return toStringMap(v)
}

func toStringMap(v any) (map[string]string, bool) {
	switch m := v.(type) {
	case map[string]string:
		return m, true
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, e := range m {
			str, ok := e.(string)
			if !ok {
				return nil, false
			}
			out[k] = str
		}
		return out, true
	default:
		return nil, false
	}
}

// EnsureStringMap returns the map stored under key, creating and storing an
// empty one when the key is absent or holds another type.
func (s *Spec) EnsureStringMap(key string) map[string]string {
	key = s.resolve(key)
	v := s.values[key]
	if m, ok := v.(map[string]string); ok {
		return m
	}
	m, ok := toStringMap(v)
	if !ok {
		m = map[string]string{}
	}
	s.store(key, m)
	return m
}

// Debug returns the debug level recorded under KeyDebug.
func (s *Spec) Debug() int { return s.GetInt(KeyDebug) }

// String hides the contents unless the debug level is at least 2.
func (s *Spec) String() string {
	if s.Debug() < 2 {
		return fmt.Sprintf("<Spec %p>", s)
	}
	var sb strings.Builder
	sb.WriteString("Spec{")
	for i, k := range s.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q: %v", k, s.values[k])
	}
	sb.WriteString("}")
	return sb.String()
}
