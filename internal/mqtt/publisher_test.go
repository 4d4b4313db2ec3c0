package mqtt

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishStatePayloads(t *testing.T) {
	tr := &fakeTransport{connected: true}
	p := NewPublisher(tr, nil)

	require.NoError(t, p.PublishState("fault", true))
	require.NoError(t, p.PublishState("label", "Overheat"))
	require.NoError(t, p.PublishState("temp", 41.25))

	m, ok := tr.find(StateTopic("fault"))
	require.True(t, ok)
	assert.Equal(t, "ON", m.payload)
	m, _ = tr.find(StateTopic("label"))
	assert.Equal(t, "Overheat", m.payload)
	m, _ = tr.find(StateTopic("temp"))
	assert.Equal(t, "41.25", m.payload)
	assert.False(t, m.retained)
}

func TestPublishStateDisconnected(t *testing.T) {
	p := NewPublisher(&fakeTransport{}, nil)
	assert.ErrorIs(t, p.PublishState("temp", 1), ErrNotConnected)
}

func TestPublisherConcurrency(t *testing.T) {
	tr := &fakeTransport{connected: true}
	p := NewPublisher(tr, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				entity := p.EntityID(fmt.Sprintf("Motor %d Temp", id))
				_ = p.PublishState(entity, float64(j))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1000, tr.count("sensor/"))
	assert.Equal(t, "motor_3_temp", p.EntityID("Motor 3 Temp"))
}
