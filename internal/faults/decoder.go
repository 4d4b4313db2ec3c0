// Package faults decodes motor controller fault bitmasks into named flags
package faults

import (
	"errors"
	"fmt"
	"strings"
)

// NoFault is reported for a zero bitmask
const NoFault = "No fault"

// ErrUnknownFlag is returned by Mask for a name outside the flag set
var ErrUnknownFlag = errors.New("unknown fault flag")

// Flag names one bit of a fault bitmask
type Flag struct {
	Bit  uint
	Name string
}

// SparkMaxFlags is the fault enumeration of a SPARK MAX controller, in reporting order
var SparkMaxFlags = []Flag{
	{0, "Brownout"},
	{1, "Overcurrent"},
	{2, "IWDTReset"},
	{3, "MotorFault"},
	{4, "SensorFault"},
	{5, "Stall"},
	{6, "EEPROMCRC"},
	{7, "CANTX"},
	{8, "CANRX"},
	{9, "HasReset"},
	{10, "DRVFault"},
	{11, "OtherFault"},
	{12, "SoftLimitFwd"},
	{13, "SoftLimitRev"},
	{14, "HardLimitFwd"},
	{15, "HardLimitRev"},
}

// Active returns the names of the flags set in mask, in flag order
func Active(mask uint32, flags []Flag) []string {
	if mask == 0 {
		return nil
	}
	var names []string
	for _, f := range flags {
		if f.Bit < 32 && mask&(1<<f.Bit) != 0 {
			names = append(names, f.Name)
		}
	}
	return names
}

// Decode formats mask as a comma separated list of active flag names.
// Bits with no flag are ignored; a zero mask yields NoFault.
func Decode(mask uint32, flags []Flag) string {
	if mask == 0 {
		return NoFault
	}
	return strings.Join(Active(mask, flags), ",")
}

// Mask is the inverse of Active: it sets the bit of every named flag.
// Names match case-insensitively.
func Mask(names []string, flags []Flag) (uint32, error) {
	var mask uint32
	for _, name := range names {
		found := false
		for _, f := range flags {
			if f.Bit < 32 && strings.EqualFold(f.Name, strings.TrimSpace(name)) {
				mask |= 1 << f.Bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: %q", ErrUnknownFlag, name)
		}
	}
	return mask, nil
}
