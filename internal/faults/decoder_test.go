package faults

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	flags := []Flag{{0, "BROWNOUT"}, {1, "STALLED"}, {2, "OVERHEAT"}}

	tests := []struct {
		name string
		mask uint32
		want string
	}{
		{"zero", 0, NoFault},
		{"single bit", 0b010, "STALLED"},
		{"two bits", 0b101, "BROWNOUT,OVERHEAT"},
		{"all bits", 0b111, "BROWNOUT,STALLED,OVERHEAT"},
		{"unnamed bit only", 0b1000, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.mask, flags))
		})
	}
}

func TestDecodeFollowsFlagOrder(t *testing.T) {
	// enumeration order differs from bit order
	flags := []Flag{{3, "D"}, {0, "A"}, {2, "C"}}
	assert.Equal(t, "D,A,C", Decode(0b1101, flags))
}

func TestDecodeEveryMask(t *testing.T) {
	flags := SparkMaxFlags[:8]
	for mask := uint32(1); mask < 256; mask++ {
		names := strings.Split(Decode(mask, flags), ",")

		var want []string
		for _, f := range flags {
			if mask&(1<<f.Bit) != 0 {
				want = append(want, f.Name)
			}
		}
		assert.Equal(t, want, names, "mask %08b", mask)
	}
}

func TestActive(t *testing.T) {
	assert.Nil(t, Active(0, SparkMaxFlags))
	assert.Equal(t, []string{"Overcurrent", "Stall"}, Active(1<<1|1<<5, SparkMaxFlags))
}

func TestMask(t *testing.T) {
	mask, err := Mask([]string{"stall", " Brownout"}, SparkMaxFlags)
	require.NoError(t, err)
	assert.Equal(t, uint32(1<<5|1), mask)
	assert.Equal(t, "Brownout,Stall", Decode(mask, SparkMaxFlags))

	mask, err = Mask(nil, SparkMaxFlags)
	require.NoError(t, err)
	assert.Zero(t, mask)

	_, err = Mask([]string{"Meltdown"}, SparkMaxFlags)
	assert.ErrorIs(t, err, ErrUnknownFlag)
}
