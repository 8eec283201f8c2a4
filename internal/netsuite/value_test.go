package netsuite

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextUnmarshalAcceptsScalarsAndRefs(t *testing.T) {
	cases := map[string]string{
		`"abc"`:                    "abc",
		`12.50`:                    "12.50",
		`true`:                     "true",
		`null`:                     "",
		`{"id":"7","refName":"X"}`: "7",
		`{"id":9}`:                 "9",
		`{"refName":"Only name"}`:  "Only name",
	}
	for raw, want := range cases {
		var got Text
		require.NoError(t, json.Unmarshal([]byte(raw), &got), raw)
		assert.Equal(t, want, got.String(), raw)
	}
}

func TestTextRejectsArrays(t *testing.T) {
	var got Text
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &got))
}

func TestOrderLabelFallsBackToID(t *testing.T) {
	assert.Equal(t, "555", (&SalesOrder{ID: "555"}).Label())
	assert.Equal(t, "SO100", (&SalesOrder{ID: "555", TranID: " SO100 "}).Label())
	assert.Equal(t, "", (*SalesOrder)(nil).Label())
}
