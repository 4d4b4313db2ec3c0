package layout

import (
	"errors"

	"diagview/internal/sink"
)

type fanout []Provisioner

// Fanout returns a provisioner that places every cell on all of ps.
// Writes reach every surface; a failure on one does not stop the others.
func Fanout(ps ...Provisioner) Provisioner {
	var f fanout
	for _, p := range ps {
		if p != nil {
			f = append(f, p)
		}
	}
	if len(f) == 1 {
		return f[0]
	}
	return f
}

func (f fanout) CreateSink(cell Cell) (sink.Handle, error) {
	handles := make([]sink.Handle, 0, len(f))
	for _, p := range f {
		h, err := p.CreateSink(cell)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return sink.Multi(handles...), nil
}

func (f fanout) SelectActiveSurface(id string) error {
	var errs []error
	for _, p := range f {
		if err := p.SelectActiveSurface(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
