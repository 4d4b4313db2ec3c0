package power

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagview/internal/catalog"
	"diagview/internal/layout"
	"diagview/internal/sink"
)

type memProvisioner struct {
	values map[string]catalog.Value
}

func newMemProvisioner() *memProvisioner {
	return &memProvisioner{values: make(map[string]catalog.Value)}
}

func (p *memProvisioner) CreateSink(cell layout.Cell) (sink.Handle, error) {
	p.values[cell.Title] = cell.Descriptor.Default
	return sink.HandleFunc(func(v catalog.Value) error {
		p.values[cell.Title] = v
		return nil
	}), nil
}

func (p *memProvisioner) SelectActiveSurface(string) error { return nil }

type fakeSource struct {
	scalars  map[Metric]float64
	channels []float64
	failing  map[int]bool
}

func (s *fakeSource) ReadScalar(m Metric) (float64, error) {
	return s.scalars[m], nil
}

func (s *fakeSource) ReadChannel(index int) (float64, error) {
	if s.failing[index] {
		return 0, errors.New("CAN timeout")
	}
	if index < 0 || index >= len(s.channels) {
		return 0, fmt.Errorf("channel %d out of range", index)
	}
	return s.channels[index], nil
}

func TestPanelSync(t *testing.T) {
	prov := newMemProvisioner()
	panel, err := Provision(prov, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, panel.Channels())

	src := &fakeSource{
		scalars:  map[Metric]float64{Voltage: 12.4, Temperature: 31, TotalCurrent: 18.5, TotalEnergy: 1200},
		channels: []float64{1, 2, 3, 4, 5, 6},
	}

	errs := panel.Sync(src)
	assert.Empty(t, errs)

	assert.Equal(t, catalog.NumberValue(12.4), prov.values["Voltage"])
	assert.Equal(t, catalog.NumberValue(1200), prov.values["Total Energy"])
	assert.Equal(t, catalog.NumberValue(4), prov.values["Current 3"])
	_, extra := prov.values["Current 4"]
	assert.False(t, extra, "only N channels are provisioned")
}

func TestPanelChannelOutOfRange(t *testing.T) {
	prov := newMemProvisioner()
	panel, err := Provision(prov, 3)
	require.NoError(t, err)

	src := &fakeSource{channels: []float64{5, 6, 7, 8}}
	require.Empty(t, panel.Sync(src))
	before := prov.values["Current 2"]

	err = panel.SyncChannel(src, 3)
	assert.ErrorIs(t, err, ErrChannelOutOfRange)
	assert.ErrorIs(t, panel.WriteChannel(-1, 1), ErrChannelOutOfRange)
	assert.ErrorIs(t, panel.WriteChannel(3, 1), ErrChannelOutOfRange)
	assert.Equal(t, before, prov.values["Current 2"])
}

func TestPanelSyncIsolatesReadFailures(t *testing.T) {
	prov := newMemProvisioner()
	panel, err := Provision(prov, 3)
	require.NoError(t, err)

	src := &fakeSource{channels: []float64{5, 6, 7}, failing: map[int]bool{1: true}}
	errs := panel.Sync(src)

	require.Len(t, errs, 1)
	assert.Equal(t, catalog.NumberValue(5), prov.values["Current 0"])
	assert.Equal(t, catalog.NumberValue(0), prov.values["Current 1"])
	assert.Equal(t, catalog.NumberValue(7), prov.values["Current 2"])
}

func TestProvisionRejectsZeroChannels(t *testing.T) {
	_, err := Provision(newMemProvisioner(), 0)
	assert.ErrorIs(t, err, ErrInvalidChannels)
}
