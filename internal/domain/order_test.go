package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func sumLines(o Order) float64 {
	total := 0.0
	for _, l := range o.Lines {
		total += float64(l.Quantity) * l.UnitPrice
	}
	return total
}

func TestOrder_AddLine_MergesSameFlavor(t *testing.T) {
	var o Order
	o.AddLine("Chocolate Chip", 2, 18)
	o.AddLine("chocolate chip", 3, 20)

	want := []OrderLine{{Flavor: "Chocolate Chip", Quantity: 5, UnitPrice: 18}}
	if diff := cmp.Diff(want, o.Lines); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
	require.InDelta(t, 90.0, o.Total, 1e-9)
}

func TestOrder_AddLine_IgnoresNonPositive(t *testing.T) {
	var o Order
	o.AddLine("Sugar", 0, 15)
	o.AddLine("Sugar", -2, 15)
	o.AddLine(" ", 2, 15)
	require.True(t, o.IsEmpty())
	require.Zero(t, o.Total)
}

func TestOrder_TotalTracksEveryMutation(t *testing.T) {
	var o Order
	steps := []func(){
		func() { o.AddLine("Chocolate Chip", 2, 18) },
		func() { o.AddLine("Oatmeal Raisin", 1, 16.5) },
		func() { o.AddLine("Snickerdoodle", 4, 17.25) },
		func() { o.RemoveLine("Oatmeal Raisin") },
		func() { o.AddLine("Chocolate Chip", 1, 18) },
		func() { o.RemoveLine("missing") },
	}
	for _, step := range steps {
		step()
		require.InDelta(t, sumLines(o), o.Total, 1e-9)
	}
	require.Equal(t, 7, o.ItemCount())
}

func TestOrder_RemoveLine(t *testing.T) {
	var o Order
	o.AddLine("A", 1, 1)
	o.AddLine("B", 2, 2)
	o.AddLine("C", 3, 3)

	require.True(t, o.RemoveLine("b"))
	require.False(t, o.RemoveLine("b"))
	require.Equal(t, []string{"A", "C"}, []string{o.Lines[0].Flavor, o.Lines[1].Flavor})
	require.InDelta(t, 10.0, o.Total, 1e-9)
}

func TestOrder_ClearResetsIdentity(t *testing.T) {
	o := Order{CustomerName: "Ada", CustomerEmail: "ada@example.com"}
	o.AddLine("A", 1, 1)
	o.Clear()
	require.Equal(t, Order{}, o)
}

func TestOrder_CloneIsIndependent(t *testing.T) {
	var o Order
	o.AddLine("A", 1, 1)
	c := o.Clone()
	c.AddLine("A", 1, 1)
	require.Equal(t, 1, o.Lines[0].Quantity)
	require.Equal(t, 2, c.Lines[0].Quantity)
}

func TestSession_Normalize(t *testing.T) {
	s := &Session{ID: "s-1", Order: Order{Lines: []OrderLine{{Flavor: "A", Quantity: 2, UnitPrice: 3}}, Total: 999}}
	require.NoError(t, s.Normalize())
	require.Equal(t, StateIdle, s.State)
	require.InDelta(t, 6.0, s.Order.Total, 1e-9)

	require.Error(t, (&Session{ID: "s-1", State: "NOPE"}).Normalize())
	require.Error(t, (&Session{State: StateIdle}).Normalize())
	require.Error(t, (&Session{ID: "s-1", Order: Order{Lines: []OrderLine{{Flavor: "A", Quantity: 0}}}}).Normalize())
}

func TestSession_CloneIsIndependent(t *testing.T) {
	s := NewSession("s-1")
	s.Append(RoleUser, "hi")
	s.Order.AddLine("A", 1, 1)

	c := s.Clone()
	c.Append(RoleAssistant, "hello")
	c.Order.AddLine("B", 1, 1)
	c.State = StateCollectingOrder

	require.Len(t, s.History, 1)
	require.Len(t, s.Order.Lines, 1)
	require.Equal(t, StateIdle, s.State)
}
