// Package expand implements the expansion controller: on hover of a trigger
// it copies the matching hidden callout fragment into the page's single
// expansion slot.
package expand

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var expandLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	expandLogger = l
}

var (
	ErrNotFound = errors.New("fragment not found")
	ErrNoSlot   = errors.New("expansion slot missing")
)

// Node is a fragment in the page tree.
type Node interface {
	ID() string
	Hidden() bool
	SetHidden(hidden bool)
	// Clone returns a deep, detached copy.
	Clone() Node
}

// Source finds fragments by identifier. When several fragments share an
// identifier the first one in document order is returned.
type Source interface {
	Lookup(id string) (Node, bool)
}

// Slot is the single region that shows the expanded fragment.
type Slot interface {
	// ReplaceChildren wraps n and makes the wrapper the only child.
	ReplaceChildren(n Node)
	Clear()
	Len() int
}

// Trigger requests expansion of the fragment named by Target.
// Implementations must be comparable.
type Trigger interface {
	Target() string
}

type Root interface {
	Triggers() []Trigger
}

// State is Idle when ID is empty and Expanded(ID) otherwise.
type State struct {
	ID string
}

func (s State) Idle() bool {
	return s.ID == ""
}

func (s State) String() string {
	if s.Idle() {
		return "idle"
	}
	return "expanded(" + s.ID + ")"
}

// Transition computes the state that follows a hover on a trigger targeting
// id. On error the slot is not touched and cur is returned.
func Transition(cur State, id string, src Source, slot Slot) (State, error) {
	if slot == nil {
		return cur, ErrNoSlot
	}
	if src == nil {
		return cur, fmt.Errorf("%w: %q (no source region)", ErrNotFound, id)
	}

	node, ok := src.Lookup(id)
	if !ok {
		return cur, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	clone := node.Clone()
	clone.SetHidden(false)
	slot.ReplaceChildren(clone)

	return State{ID: id}, nil
}
