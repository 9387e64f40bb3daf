package engine

import "fmt"

// Stream serializes the device-side phases of one call and latches the first
// failure: once an operation errors, later operations on the stream are
// skipped until Synchronize drains the error. This mirrors how a device
// queue aborts the remainder of a submission after a fault.
//
// A stream belongs to exactly one instance and is therefore touched by only
// one goroutine at a time; it needs no lock.
type Stream struct {
	err error
}

// Do runs op unless the stream already holds an error. A failing op latches
// its error tagged with the phase name.
func (s *Stream) Do(phase string, op func() error) {
	if s.err != nil {
		return
	}
	if err := op(); err != nil {
		s.err = fmt.Errorf("%s: %w", phase, err)
	}
}

// Synchronize waits for the stream to drain and returns the latched error,
// if any, resetting the stream for the next owner.
func (s *Stream) Synchronize() error {
	err := s.err
	s.err = nil
	return err
}
