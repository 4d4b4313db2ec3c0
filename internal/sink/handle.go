package sink

import (
	"errors"
	"fmt"

	"diagview/internal/catalog"
)

// bound rejects values that do not match the descriptor's value kind
type bound struct {
	raw  Handle
	desc catalog.Descriptor
}

// Bind wraps raw so that only values of desc.ValueKind reach it
func Bind(raw Handle, desc catalog.Descriptor) Handle {
	return &bound{raw: raw, desc: desc}
}

func (b *bound) Write(v catalog.Value) error {
	if v.Kind != b.desc.ValueKind {
		return fmt.Errorf("%w: %s expects %s, got %s", ErrValueKind, b.desc.Label, b.desc.ValueKind, v.Kind)
	}
	return b.raw.Write(v)
}

type multi []Handle

// Multi returns a handle that writes to every non-nil handle.
// All handles are written even if one fails; the errors are joined.
func Multi(handles ...Handle) Handle {
	var m multi
	for _, h := range handles {
		if h != nil {
			m = append(m, h)
		}
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}

func (m multi) Write(v catalog.Value) error {
	var errs []error
	for _, h := range m {
		if err := h.Write(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
