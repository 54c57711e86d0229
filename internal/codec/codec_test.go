package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRoundTrip checks that for every registered codec and every one
// of the five allowed value kinds, decode(encode(v)) == v.
func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		v    any
	}{
		{"string", "hello"},
		{"integer", 42},
		{"float", 3.5},
		{"string-slice", []string{"a", "b", "c"}},
		{"float-slice", []float64{1.5, 2.5, 3.5}},
	}

	codecs := []Codec{Msgpack, JSON}

	for _, c := range codecs {
		c := c
		t.Run(c.Format(), func(t *testing.T) {
			for _, tc := range cases {
				tc := tc
				t.Run(tc.name, func(t *testing.T) {
					data, err := c.Marshal(tc.v)
					require.NoError(t, err)

					switch want := tc.v.(type) {
					case string:
						var got string
						require.NoError(t, c.Unmarshal(data, &got))
						assert.Equal(t, want, got)
					case int:
						var got int
						require.NoError(t, c.Unmarshal(data, &got))
						assert.Equal(t, want, got)
					case float64:
						var got float64
						require.NoError(t, c.Unmarshal(data, &got))
						assert.Equal(t, want, got)
					case []string:
						var got []string
						require.NoError(t, c.Unmarshal(data, &got))
						assert.Equal(t, want, got)
					case []float64:
						var got []float64
						require.NoError(t, c.Unmarshal(data, &got))
						assert.Equal(t, want, got)
					}
				})
			}
		})
	}
}

func TestValidateValueRejectsUnsupportedKind(t *testing.T) {
	type notAllowed struct{ X int }

	_, err := Msgpack.Marshal(notAllowed{X: 1})
	assert.Error(t, err)

	_, err = JSON.Marshal(map[string]int{"a": 1})
	assert.Error(t, err)
}

func TestByFormat(t *testing.T) {
	c, ok := ByFormat(FormatMsgpack)
	require.True(t, ok)
	assert.Equal(t, FormatMsgpack, c.Format())

	c, ok = ByFormat(FormatJSON)
	require.True(t, ok)
	assert.Equal(t, FormatJSON, c.Format())

	_, ok = ByFormat(FormatBinary)
	assert.False(t, ok, "binary format must not have a registered codec")

	_, ok = ByFormat("application/unknown")
	assert.False(t, ok)
}
