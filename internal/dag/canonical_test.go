package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type canonicalItems struct {
	Items []string `json:"items"`
}

func TestCanonicalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{"keys sorted", map[string]interface{}{"b": 1, "a": 2}, `{"a":2,"b":1}`},
		{"nested maps sorted", map[string]interface{}{
			"z":   map[string]interface{}{"y": true, "x": nil},
			"a":   "first",
			"arr": []interface{}{3, "two", 1},
		}, `{"a":"first","arr":[3,"two",1],"z":{"x":null,"y":true}}`},
		{"struct fields", struct {
			Name string `json:"name"`
			Age  int    `json:"age"`
		}{"ada", 36}, `{"age":36,"name":"ada"}`},
		{"nil slice", canonicalItems{}, `{"items":null}`},
		{"empty slice", canonicalItems{Items: []string{}}, `{"items":[]}`},
		{"large integers keep their digits", map[string]interface{}{"big": uint64(9007199254740993), "f": 1.5},
			`{"big":9007199254740993,"f":1.5}`},
		{"html escaped", map[string]interface{}{"<k>": "a&b"}, `{"\u003ck\u003e":"a\u0026b"}`},
		{"top level string", "plain", `"plain"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalJSON(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestCanonicalJSONKeepsStringBytes(t *testing.T) {
	// decomposed and precomposed forms of "é" are distinct keys and values
	input := map[string]interface{}{
		"e\u0301": "decomposed",
		"\u00e9":  "composed",
		"name":    "cafe\u0301",
	}
	got, err := CanonicalJSON(input)
	require.NoError(t, err)

	var back map[string]string
	require.NoError(t, json.Unmarshal(got, &back))
	assert.Equal(t, map[string]string{
		"e\u0301": "decomposed",
		"\u00e9":  "composed",
		"name":    "cafe\u0301",
	}, back)

	composed, err := CanonicalJSON(map[string]interface{}{"name": "caf\u00e9"})
	require.NoError(t, err)
	assert.NotEqual(t, string(composed), string(got))
}

func TestCanonicalJSONStable(t *testing.T) {
	input := map[string]interface{}{
		"c": 3, "a": 1, "b": 2,
		"nested": map[string]interface{}{"z": true, "a": false},
	}
	first, err := CanonicalJSON(input)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		got, err := CanonicalJSON(input)
		require.NoError(t, err)
		require.Equal(t, first, got)
	}
}

func TestCanonicalJSONRoundTrips(t *testing.T) {
	msg := "hello \"world\"\nnewline\ttab"
	got, err := CanonicalJSON(map[string]interface{}{"msg": msg})
	require.NoError(t, err)

	var back map[string]string
	require.NoError(t, json.Unmarshal(got, &back))
	assert.Equal(t, msg, back["msg"])
}

func TestCanonicalJSONRejectsUnencodable(t *testing.T) {
	_, err := CanonicalJSON(map[string]interface{}{"ch": make(chan int)})
	assert.Error(t, err)
}
