package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagview/internal/board"
	"diagview/internal/catalog"
	"diagview/internal/layout"
)

func TestRenderListHidesUnreachableCells(t *testing.T) {
	b := board.New(nil)
	reg, err := layout.Layout(layout.List{}, []string{"FL", "FR"}, catalog.All(), b)
	require.NoError(t, err)

	h, err := reg.Lookup("FR", catalog.Faults)
	require.NoError(t, err)
	require.NoError(t, h.Write(catalog.TextValue("Stall")))

	out := Render(b.Snapshot(), b.Active())

	assert.Contains(t, out, layout.ListSurface+" *")
	assert.Contains(t, out, "FL")
	assert.Contains(t, out, "Stall")
	assert.Contains(t, out, "(2 hidden)")
	assert.NotContains(t, out, "Velocity:", "fifth and sixth attributes are out of view")
	assert.Contains(t, out, "List Fault Indicator:")
}

func TestRenderHealth(t *testing.T) {
	b := board.New(nil)
	reg, err := layout.Layout(layout.Grid{}, []string{"A"}, []catalog.AttributeKind{catalog.Faults}, b)
	require.NoError(t, err)

	surface, err := b.Surface(layout.SummarySurface)
	require.NoError(t, err)
	assert.Contains(t, RenderSurface(surface, false), "FAULT")

	require.NoError(t, reg.Health().Write(catalog.BoolValue(true)))
	surface, err = b.Surface(layout.SummarySurface)
	require.NoError(t, err)
	assert.Contains(t, RenderSurface(surface, false), "OK")
}

func TestRenderEmpty(t *testing.T) {
	assert.Empty(t, Render(nil, ""))
}
