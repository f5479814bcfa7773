package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type level string

const (
	levelDebug level = "debug"
	levelInfo  level = "info"
	levelWarn  level = "warn"
)

func newLevels() *Normalizer[level] {
	return NewNormalizer("log level", map[string]level{
		"debug":   levelDebug,
		"info":    levelInfo,
		"warn":    levelWarn,
		"warning": levelWarn,
	}, levelInfo)
}

func TestNormalize(t *testing.T) {
	n := newLevels()
	tests := []struct {
		input    string
		expected level
	}{
		{"debug", levelDebug},
		{"DEBUG", levelDebug},
		{"  warn  ", levelWarn},
		{"Warning", levelWarn},
		{"invalid", levelInfo},
		{"", levelInfo},
	}
	for _, tt := range tests {
		if got := n.Normalize(tt.input); got != tt.expected {
			t.Errorf("Normalize(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestParse(t *testing.T) {
	n := newLevels()

	v, err := n.Parse("")
	require.NoError(t, err)
	assert.Equal(t, levelInfo, v)

	_, err = n.Parse("loud")
	require.Error(t, err)
	assert.Equal(t, `invalid log level "loud", valid options: debug, info, warn, warning`, err.Error())
}

func TestNormalizeWithWarning(t *testing.T) {
	n := newLevels()

	res := n.NormalizeWithWarning("logging.level", "debug")
	assert.Equal(t, levelDebug, res.Value)
	assert.Empty(t, res.Warning)

	res = n.NormalizeWithWarning("logging.level", "WARNING")
	assert.Equal(t, levelWarn, res.Value)
	assert.Equal(t, `normalized logging.level from "WARNING" to "warn"`, res.Warning)

	res = n.NormalizeWithWarning("logging.level", "loud")
	assert.Equal(t, levelInfo, res.Value)
	assert.Contains(t, res.Warning, "using info")
}

func TestValidKeysIsACopy(t *testing.T) {
	n := newLevels()
	keys := n.ValidKeys()
	keys[0] = "mutated"
	assert.Equal(t, "debug", n.ValidKeys()[0])
}
