package audit

import (
	"context"
	"errors"
)

type multiSink []Sink

// Multi returns a Sink that emits to every sink in order. A failing sink
// does not stop the others; their errors are joined.
func Multi(sinks ...Sink) Sink {
	flat := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			flat = append(flat, s)
		}
	}
	return flat
}

func (m multiSink) Emit(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
