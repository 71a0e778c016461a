package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"empty array", []any{}, "[]"},
		{"string slice", []string{"b", "a"}, `["b","a"]`},
		{"empty object", map[string]any{}, "{}"},
		{"string map", map[string]string{"b": "2", "a": "1"}, `{"a":"1","b":"2"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalNestedSortedKeys(t *testing.T) {
	obj := map[string]any{
		"z": map[string]any{"b": 1, "a": 2},
		"a": []any{"x", 3, true},
	}

	result, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x",3,true],"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalRejectsNullAndFloats(t *testing.T) {
	_, err := Marshal(nil)
	assert.Error(t, err)

	_, err = Marshal(map[string]any{"x": 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `value for key "x"`)

	_, err = Marshal([]any{struct{}{}})
	assert.Error(t, err)
}

func TestMarshalStringEscaping(t *testing.T) {
	result, err := Marshal("a<b>&\"c\\\n \x01")
	require.NoError(t, err)
	assert.Equal(t, "\"a<b>&\\\"c\\\\\\n \\u0001\"", string(result))
}

func TestMarshalNFC(t *testing.T) {
	decomposed := "e\u0301"
	composed := "\u00e9"

	a, err := Marshal(decomposed)
	require.NoError(t, err)
	b, err := Marshal(composed)
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

type point struct{ x, y int }

func (p point) CanonicalValue() any {
	return map[string]any{"x": p.x, "y": p.y}
}

func TestMarshalValuer(t *testing.T) {
	result, err := Marshal([]any{point{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, `[{"x":1,"y":2}]`, string(result))
}

func TestSortedKeysUTF16Order(t *testing.T) {
	// U+FF61 sorts before U+1F600 in UTF-16 (surrogates start at 0xD800).
	keys := SortedKeys(map[string]int{"\U0001F600": 1, "｡": 2, "a": 3})
	assert.Equal(t, []string{"a", "\U0001F600", "｡"}, keys)
}
