package vlq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mappingCases = []struct {
	text     string
	mappings Mappings
}{
	{
		text:     "AAAA,MAAM;",
		mappings: Mappings{{{0, 0, 0, 0}, {6, 0, 0, 6}}, {}},
	},
	{
		text:     "AAAA,MAAM,MAAM;",
		mappings: Mappings{{{0, 0, 0, 0}, {6, 0, 0, 6}, {6, 0, 0, 6}}, {}},
	},
	{
		text:     "AAAA;AACA;AACA;",
		mappings: Mappings{{{0, 0, 0, 0}}, {{0, 0, 1, 0}}, {{0, 0, 1, 0}}, {}},
	},
	{
		text: ";;QAAA;;QAEA;QACA;QACA;;",
		mappings: Mappings{
			{},
			{},
			{{8, 0, 0, 0}},
			{},
			{{8, 0, 2, 0}},
			{{8, 0, 1, 0}},
			{{8, 0, 1, 0}},
			{},
			{},
		},
	},
	{
		text:     "",
		mappings: Mappings{{}},
	},
	{
		text:     "A,CAAC,gBAAhBC",
		mappings: Mappings{{{0}, {1, 0, 0, 1}, {16, 0, 0, -16, 1}}},
	},
}

func TestEncodeMappings(t *testing.T) {
	for _, tc := range mappingCases {
		assert.Equal(t, tc.text, EncodeMappings(tc.mappings))
	}
}

func TestDecodeMappings(t *testing.T) {
	for _, tc := range mappingCases {
		got, err := DecodeMappings(tc.text)
		require.NoError(t, err, tc.text)
		assert.Equal(t, tc.mappings, got, tc.text)
	}
}

func TestMappingsRoundTrip(t *testing.T) {
	inputs := []Mappings{
		{{}},
		{{}, {}, {}},
		{{{0, 0, 0, 0}}, {}, {{4, 0, 3, -2}, {100, 1, -7, 512}}, {}, {}},
		{{{-1, 0, -600, 33}}},
	}
	for _, m := range inputs {
		got, err := DecodeMappings(EncodeMappings(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
}

func TestDecodeMappingsErrors(t *testing.T) {
	t.Run("empty segment", func(t *testing.T) {
		_, err := DecodeMappings("AAAA,,AAAA")
		var de *DecodeError
		require.ErrorAs(t, err, &de)
		assert.ErrorIs(t, err, ErrEmpty)
		assert.Equal(t, 0, de.Line)
		assert.Equal(t, 1, de.Segment)
	})

	t.Run("field count", func(t *testing.T) {
		_, err := DecodeMappings("AAAA;AA")
		var de *DecodeError
		require.ErrorAs(t, err, &de)
		assert.ErrorIs(t, err, ErrFieldCount)
		assert.Equal(t, 1, de.Line)
		assert.Equal(t, "AA", de.Text)
	})

	t.Run("bad character", func(t *testing.T) {
		_, err := DecodeMappings("AAAA;AA!A")
		assert.ErrorIs(t, err, ErrInvalidChar)
		assert.Contains(t, err.Error(), "line 1 segment 0")
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := DecodeMappings("AAAg")
		assert.ErrorIs(t, err, ErrTruncated)
	})
}

func TestSegmentValid(t *testing.T) {
	for _, seg := range []Segment{{0}, {0, 0, 0, 0}, {0, 0, 0, 0, 1}} {
		assert.True(t, seg.Valid(), "%v", seg)
	}
	for _, seg := range []Segment{nil, {0, 0}, {0, 0, 0}, {0, 0, 0, 0, 0, 0}} {
		assert.False(t, seg.Valid(), "%v", seg)
		_, err := DecodeMappings(EncodeMappings(Mappings{{seg}}))
		assert.Error(t, err, "%v", seg)
	}
}
