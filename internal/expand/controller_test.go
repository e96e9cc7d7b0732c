package expand

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In-memory tree with the same capabilities as a page: lookup by id,
// deep clone and replace-children.

type memNode struct {
	id       string
	text     string
	hidden   bool
	children []*memNode
}

func (n *memNode) ID() string            { return n.id }
func (n *memNode) Hidden() bool          { return n.hidden }
func (n *memNode) SetHidden(hidden bool) { n.hidden = hidden }

func (n *memNode) Clone() Node {
	return n.clone()
}

func (n *memNode) clone() *memNode {
	c := &memNode{id: n.id, text: n.text, hidden: n.hidden}
	for _, child := range n.children {
		c.children = append(c.children, child.clone())
	}
	return c
}

type memSource []*memNode

func (s memSource) Lookup(id string) (Node, bool) {
	for _, n := range s {
		if n.id == id {
			return n, true
		}
	}
	return nil, false
}

type memWrapper struct {
	child Node
}

type memSlot struct {
	children []memWrapper
}

func (s *memSlot) ReplaceChildren(n Node) { s.children = []memWrapper{{child: n}} }
func (s *memSlot) Clear()                 { s.children = nil }
func (s *memSlot) Len() int               { return len(s.children) }

func (s *memSlot) shown() *memNode {
	if len(s.children) == 0 {
		return nil
	}
	return s.children[0].child.(*memNode)
}

type memTrigger struct {
	target string
}

func (t *memTrigger) Target() string { return t.target }

type memRoot []Trigger

func (r memRoot) Triggers() []Trigger { return r }

func fragment(id, text string) *memNode {
	return &memNode{id: id, text: text, hidden: true, children: []*memNode{{text: text + " child"}}}
}

func TestState(t *testing.T) {
	assert.True(t, State{}.Idle())
	assert.Equal(t, "idle", State{}.String())
	assert.False(t, State{ID: "a"}.Idle())
	assert.Equal(t, "expanded(a)", State{ID: "a"}.String())
}

func TestTransition(t *testing.T) {
	alpha := fragment("alpha", "A")
	beta := fragment("beta", "B")
	src := memSource{alpha, beta}

	t.Run("idle to expanded", func(t *testing.T) {
		slot := &memSlot{}
		next, err := Transition(State{}, "alpha", src, slot)
		require.NoError(t, err)
		assert.Equal(t, State{ID: "alpha"}, next)

		require.Equal(t, 1, slot.Len())
		shown := slot.shown()
		assert.Equal(t, "alpha", shown.ID())
		assert.False(t, shown.Hidden(), "clone must be visible")
		assert.True(t, alpha.Hidden(), "source fragment stays hidden")
		assert.NotSame(t, alpha, shown)
		assert.NotSame(t, alpha.children[0], shown.children[0], "clone must be deep")
	})

	t.Run("expanded to expanded replaces", func(t *testing.T) {
		slot := &memSlot{}
		state, err := Transition(State{}, "alpha", src, slot)
		require.NoError(t, err)
		state, err = Transition(state, "beta", src, slot)
		require.NoError(t, err)

		assert.Equal(t, State{ID: "beta"}, state)
		require.Equal(t, 1, slot.Len())
		assert.Equal(t, "beta", slot.shown().ID())
	})

	t.Run("unknown id keeps state and slot", func(t *testing.T) {
		slot := &memSlot{}
		state, err := Transition(State{}, "alpha", src, slot)
		require.NoError(t, err)
		before := slot.shown()

		next, err := Transition(state, "missing", src, slot)
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.Equal(t, state, next)
		assert.Same(t, before, slot.shown())
	})

	t.Run("missing slot", func(t *testing.T) {
		next, err := Transition(State{ID: "x"}, "alpha", src, nil)
		assert.ErrorIs(t, err, ErrNoSlot)
		assert.Equal(t, State{ID: "x"}, next)
	})

	t.Run("missing source", func(t *testing.T) {
		slot := &memSlot{}
		next, err := Transition(State{}, "alpha", nil, slot)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.True(t, next.Idle())
		assert.Equal(t, 0, slot.Len())
	})
}

func TestControllerHover(t *testing.T) {
	src := memSource{fragment("alpha", "A"), fragment("beta", "B")}
	slot := &memSlot{}
	toAlpha := &memTrigger{target: "alpha"}
	toBeta := &memTrigger{target: "beta"}
	toNowhere := &memTrigger{target: "nowhere"}

	c := New(src, slot)
	assert.Equal(t, 3, c.Attach(memRoot{toAlpha, toBeta, toNowhere}))
	assert.True(t, c.State().Idle())

	assert.True(t, c.HoverEnter(toAlpha))
	assert.Equal(t, State{ID: "alpha"}, c.State())

	assert.True(t, c.HoverEnter(toBeta))
	assert.Equal(t, State{ID: "beta"}, c.State())
	require.Equal(t, 1, slot.Len())
	assert.Equal(t, "beta", slot.shown().ID())

	assert.True(t, c.HoverEnter(toNowhere))
	assert.Equal(t, State{ID: "beta"}, c.State())
	assert.Equal(t, "beta", slot.shown().ID())
}

func TestControllerClear(t *testing.T) {
	src := memSource{fragment("alpha", "A")}
	slot := &memSlot{}
	c := New(src, slot)

	c.Clear()
	assert.True(t, c.State().Idle())
	assert.Equal(t, 0, slot.Len())

	require.NoError(t, c.Expand("alpha"))
	require.Equal(t, 1, slot.Len())

	c.Clear()
	assert.True(t, c.State().Idle())
	assert.Equal(t, 0, slot.Len())

	c.Clear()
	assert.True(t, c.State().Idle())
	assert.Equal(t, 0, slot.Len())
}

func TestControllerAttachIsIdempotent(t *testing.T) {
	trig := &memTrigger{target: "alpha"}
	root := memRoot{trig}
	c := New(memSource{fragment("alpha", "A")}, &memSlot{})

	assert.Equal(t, 1, c.Attach(root))
	assert.Equal(t, 0, c.Attach(root))
	assert.Equal(t, 1, c.Listeners())
	assert.Equal(t, 0, c.Attach(nil))
}

func TestControllerDetach(t *testing.T) {
	trig := &memTrigger{target: "alpha"}
	slot := &memSlot{}
	c := New(memSource{fragment("alpha", "A")}, slot)
	c.Attach(memRoot{trig})

	c.Detach()
	assert.Equal(t, 0, c.Listeners())
	assert.False(t, c.HoverEnter(trig))
	assert.True(t, c.State().Idle())
	assert.Equal(t, 0, slot.Len())
}

func TestControllerIgnoresUnattachedTriggers(t *testing.T) {
	slot := &memSlot{}
	c := New(memSource{fragment("alpha", "A")}, slot)

	assert.False(t, c.HoverEnter(&memTrigger{target: "alpha"}))
	assert.Equal(t, 0, slot.Len())
}

func TestControllerWithoutSlot(t *testing.T) {
	trig := &memTrigger{target: "alpha"}
	c := New(memSource{fragment("alpha", "A")}, nil)
	c.Attach(memRoot{trig})

	assert.NotPanics(t, func() {
		c.HoverEnter(trig)
		c.Clear()
	})
	assert.True(t, c.State().Idle())
	assert.ErrorIs(t, c.Expand("alpha"), ErrNoSlot)
}

func TestDuplicateIDsResolveToFirst(t *testing.T) {
	first := fragment("dup", "first")
	second := fragment("dup", "second")
	slot := &memSlot{}
	trig := &memTrigger{target: "dup"}
	other := &memTrigger{target: "other"}

	c := New(memSource{first, second, fragment("other", "O")}, slot)
	c.Attach(memRoot{trig, other})

	for i := 0; i < 3; i++ {
		c.HoverEnter(trig)
		require.Equal(t, 1, slot.Len())
		assert.Equal(t, "first", slot.shown().text, "cycle %d", i)

		c.HoverEnter(other)
		c.Clear()
	}
}
