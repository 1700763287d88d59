package pizza

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_ClampsSlices(t *testing.T) {
	r := RawRequest{Name: "Alice", Slices: 40}.Normalize(DefaultLimits())
	require.Equal(t, DefaultMaxSlices, r.Slices)

	r = RawRequest{Name: "Alice", Slices: 40}.Normalize(Limits{MaxRequests: 16, MaxSlices: 16, ClampSlices: false})
	require.Equal(t, 40, r.Slices)
}

func TestNormalize_DropsColorAndUnknownToppings(t *testing.T) {
	r := RawRequest{
		Name:     "Alice",
		Slices:   3,
		Toppings: []string{"Mushrooms", "Durian", "Onions", "Mushrooms"},
		Color:    "#ff0000",
	}.Normalize(DefaultLimits())
	require.Equal(t, Request{Name: "Alice", Slices: 3, Toppings: []string{"Mushrooms", "Onions"}}, r)
}

func TestNormalize_NilToppingsBecomeEmpty(t *testing.T) {
	r := RawRequest{Name: "Bob", Slices: 1}.Normalize(DefaultLimits())
	require.NotNil(t, r.Toppings)
	require.Empty(t, r.Toppings)
}

func TestIsDeletion(t *testing.T) {
	require.True(t, RawRequest{Slices: 0}.IsDeletion())
	require.True(t, RawRequest{Slices: -2}.IsDeletion())
	require.False(t, RawRequest{Slices: 1}.IsDeletion())
}

func TestToppings_ReturnsCopy(t *testing.T) {
	a := Toppings()
	require.Len(t, a, 14)
	a[0] = "Durian"
	require.Equal(t, "Green Olives", Toppings()[0])
	require.False(t, IsTopping("Durian"))
}

func TestCompose(t *testing.T) {
	c := Compose([]Request{
		{Name: "Alice", Slices: 3, Toppings: []string{"Mushrooms", "Onions"}},
		{Name: "Bob", Slices: 2, Approx: true, Toppings: []string{"Mushrooms"}},
	})
	require.Equal(t, 2, c.Requests)
	require.Equal(t, 5, c.TotalSlices)
	require.Equal(t, 1, c.Approx)
	require.Equal(t, map[string]int{"Mushrooms": 5, "Onions": 3}, c.Toppings)
}

func TestRawRequest_SlicesFromAnyNumber(t *testing.T) {
	for in, want := range map[string]int{
		`{"name":"Alice","slices":2}`:    2,
		`{"name":"Alice","slices":2.0}`:  2,
		`{"name":"Alice","slices":2.7}`:  2,
		`{"name":"Alice","slices":-0.5}`: 0,
		`{"name":"Alice","slices":1e30}`: math.MaxInt32,
		`{"name":"Alice"}`:               0,
	} {
		var raw RawRequest
		require.NoError(t, json.Unmarshal([]byte(in), &raw), in)
		require.Equal(t, "Alice", raw.Name, in)
		require.Equal(t, want, raw.Slices, in)
	}

	var raw RawRequest
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Bob","slices":3.5,"approx":true,"toppings":["Corn"],"color":"red"}`), &raw))
	require.Equal(t, RawRequest{Name: "Bob", Slices: 3, Approx: true, Toppings: []string{"Corn"}, Color: "red"}, raw)

	require.Error(t, json.Unmarshal([]byte(`{"name":"Bob","slices":true}`), &raw))
}
