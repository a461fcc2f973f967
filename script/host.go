// Package script is the boundary to a script runtime. No runtime ships with
// the engine; Stub records what it was handed.
package script

import (
	"errors"
	"fmt"

	"github.com/ByLCY/tessera/dom"
)

// ErrUnsupported reports that the host cannot execute scripts.
var ErrUnsupported = errors.New("script: execution unsupported")

// Host executes the scripts of a freshly loaded document.
type Host interface {
	Execute(scripts []dom.Script) error
}

// Stub accepts scripts without running them.
type Stub struct {
	Seen []dom.Script
}

var _ Host = (*Stub)(nil)

// Execute records scripts and returns ErrUnsupported for a non-empty list.
func (s *Stub) Execute(scripts []dom.Script) error {
	if len(scripts) == 0 {
		return nil
	}
	s.Seen = append(s.Seen, scripts...)
	return fmt.Errorf("%d script(s) not executed: %w", len(scripts), ErrUnsupported)
}
