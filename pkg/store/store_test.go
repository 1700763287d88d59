package store

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/astromechza/pizza-relay/pkg/pizza"
)

func TestUpsert_Alice(t *testing.T) {
	s := New(pizza.DefaultLimits())

	out := s.Upsert(pizza.RawRequest{Name: "Alice", Slices: 3, Toppings: []string{"Mushrooms", "Onions"}, Color: "#abc"})
	require.Equal(t, Applied, out.Kind)
	want := pizza.Request{Name: "Alice", Slices: 3, Approx: false, Toppings: []string{"Mushrooms", "Onions"}}
	require.Equal(t, want, out.Request)
	require.Equal(t, []pizza.Request{want}, s.Snapshot())

	out = s.Upsert(pizza.RawRequest{Name: "Alice", Slices: 0})
	require.Equal(t, Deleted, out.Kind)
	require.Equal(t, "Alice", out.Name)
	require.Empty(t, s.Snapshot())
}

func TestUpsert_EmptyNameIgnored(t *testing.T) {
	s := New(pizza.DefaultLimits())
	out := s.Upsert(pizza.RawRequest{Slices: 3})
	require.Equal(t, Rejected, out.Kind)
	require.Equal(t, ReasonEmptyName, out.Reason)
	require.Zero(t, s.Len())
}

func TestUpsert_LongNameRefused(t *testing.T) {
	s := New(pizza.DefaultLimits())
	s.Upsert(pizza.RawRequest{Name: "Alice", Slices: 2})

	out := s.Upsert(pizza.RawRequest{Name: strings.Repeat("x", pizza.MaxNameLength+1), Slices: 2})
	require.Equal(t, Rejected, out.Kind)
	require.Equal(t, ReasonNameTooLong, out.Reason)
	require.Len(t, out.Name, pizza.MaxNameLength)
	require.Equal(t, 1, s.Len())

	out = s.Upsert(pizza.RawRequest{Name: strings.Repeat("x", pizza.MaxNameLength), Slices: 2})
	require.Equal(t, Applied, out.Kind)
	require.Equal(t, 2, s.Len())
}

func TestUpsert_ZeroSlicesOnMissingNameIsNoop(t *testing.T) {
	s := New(pizza.DefaultLimits())
	s.Upsert(pizza.RawRequest{Name: "Bob", Slices: 2})

	out := s.Upsert(pizza.RawRequest{Name: "Alice", Slices: 0})
	require.Equal(t, Rejected, out.Kind)
	require.Equal(t, ReasonNothingToDelete, out.Reason)
	require.Equal(t, 1, s.Len())

	out = s.Upsert(pizza.RawRequest{Name: "Alice", Slices: -4})
	require.Equal(t, Rejected, out.Kind)
	require.Equal(t, 1, s.Len())
}

func TestUpsert_OverwritesInPlace(t *testing.T) {
	s := New(pizza.DefaultLimits())
	s.Upsert(pizza.RawRequest{Name: "Alice", Slices: 3})
	s.Upsert(pizza.RawRequest{Name: "Bob", Slices: 1})

	out := s.Upsert(pizza.RawRequest{Name: "Alice", Slices: 5, Approx: true})
	require.Equal(t, Applied, out.Kind)
	require.Equal(t, 2, s.Len())

	r, ok := s.Get("Alice")
	require.True(t, ok)
	require.Equal(t, 5, r.Slices)
	require.True(t, r.Approx)
}

func TestUpsert_Capacity(t *testing.T) {
	s := New(pizza.DefaultLimits())
	for i := 0; i < pizza.DefaultMaxRequests; i++ {
		out := s.Upsert(pizza.RawRequest{Name: fmt.Sprintf("p%02d", i), Slices: 1})
		require.Equal(t, Applied, out.Kind)
	}
	before := s.Snapshot()

	out := s.Upsert(pizza.RawRequest{Name: "late", Slices: 2})
	require.Equal(t, Rejected, out.Kind)
	require.Equal(t, ReasonCapacity, out.Reason)
	require.Equal(t, before, s.Snapshot())

	out = s.Upsert(pizza.RawRequest{Name: "p03", Slices: 7})
	require.Equal(t, Applied, out.Kind)
	require.Equal(t, pizza.DefaultMaxRequests, s.Len())

	// a deletion at capacity frees a slot
	require.Equal(t, Deleted, s.Upsert(pizza.RawRequest{Name: "p00"}).Kind)
	require.Equal(t, Applied, s.Upsert(pizza.RawRequest{Name: "late", Slices: 2}).Kind)
}

func TestUpsert_FiltersToppingsAndClamps(t *testing.T) {
	s := New(pizza.DefaultLimits())
	out := s.Upsert(pizza.RawRequest{Name: "Carol", Slices: 99, Toppings: []string{"Durian", "Bacon", "Bacon"}})
	require.Equal(t, Applied, out.Kind)
	require.Equal(t, pizza.DefaultMaxSlices, out.Request.Slices)
	require.Equal(t, []string{"Bacon"}, out.Request.Toppings)
}

func TestSnapshot_Invariants(t *testing.T) {
	s := New(pizza.DefaultLimits())
	for i := 0; i < 40; i++ {
		s.Upsert(pizza.RawRequest{
			Name:     fmt.Sprintf("n%d", i%23),
			Slices:   (i * 7) % 30,
			Toppings: []string{"Corn", "Durian", pizza.Toppings()[i%14]},
		})
	}
	snap := s.Snapshot()
	require.LessOrEqual(t, len(snap), pizza.DefaultMaxRequests)
	for _, r := range snap {
		require.GreaterOrEqual(t, r.Slices, 1)
		require.LessOrEqual(t, r.Slices, pizza.DefaultMaxSlices)
		for _, tp := range r.Toppings {
			require.True(t, pizza.IsTopping(tp), tp)
		}
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := New(pizza.DefaultLimits())
	s.Upsert(pizza.RawRequest{Name: "Alice", Slices: 3, Toppings: []string{"Corn"}})
	snap := s.Snapshot()
	snap[0].Toppings[0] = "Bacon"
	r, _ := s.Get("Alice")
	require.Equal(t, []string{"Corn"}, r.Toppings)
}

func TestDelete(t *testing.T) {
	s := New(pizza.DefaultLimits())
	s.Upsert(pizza.RawRequest{Name: "Alice", Slices: 3})

	require.Equal(t, ReasonNotFound, s.Delete("Bob").Reason)
	require.Equal(t, Deleted, s.Delete("Alice").Kind)
	require.Zero(t, s.Len())
}

func TestReset(t *testing.T) {
	s := New(pizza.DefaultLimits())
	s.Upsert(pizza.RawRequest{Name: "Alice", Slices: 3})
	s.Upsert(pizza.RawRequest{Name: "Bob", Slices: 3})
	require.Equal(t, 2, s.Reset())
	require.Empty(t, s.Snapshot())
}
