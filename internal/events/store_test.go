package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRingBuffer(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 5; i++ {
		s.Add(EventFaultRaised, "Climber", "FAULTS", "Stall")
	}

	assert.Equal(t, 3, s.Count())
	assert.Equal(t, int64(5), s.LastID())

	all := s.GetAll()
	require.Len(t, all, 3)
	assert.Equal(t, int64(5), all[0].ID, "newest first")
	assert.Equal(t, int64(3), all[2].ID)
}

func TestStoreGetLast(t *testing.T) {
	s := NewStore(10)
	s.Add(EventFaultRaised, "A", "FAULTS", "Stall")
	s.Add(EventFaultCleared, "A", "FAULTS", "")
	s.Add(EventReadError, "B", "TEMPERATURE", "timeout")

	last := s.GetLast(2)
	require.Len(t, last, 2)
	assert.Equal(t, EventReadError, last[0].Type)
	assert.Equal(t, EventFaultCleared, last[1].Type)

	assert.Len(t, s.GetLast(50), 3)
	assert.Empty(t, s.GetLast(-1))
}

func TestStoreGetSince(t *testing.T) {
	s := NewStore(10)
	first := s.Add(EventLogin, "admin", "", "")
	s.Add(EventFaultRaised, "A", "FAULTS", "Stall")
	s.Add(EventFaultCleared, "A", "FAULTS", "")

	since := s.GetSince(first)
	require.Len(t, since, 2)
	assert.Equal(t, EventFaultCleared, since[0].Type)

	assert.Empty(t, s.GetSince(s.LastID()))
}
