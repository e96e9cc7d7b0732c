package expand

import (
	"github.com/rs/zerolog"
)

// Controller owns the expansion state of one page.
type Controller struct {
	src  Source
	slot Slot

	state     State
	listeners map[Trigger]struct{}

	log zerolog.Logger
}

type Option func(*Controller)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

// New returns an idle controller. slot may be nil when the page has no
// expansion region; hover and clear are then no-ops.
func New(src Source, slot Slot, opts ...Option) *Controller {
	c := &Controller{
		src:       src,
		slot:      slot,
		listeners: make(map[Trigger]struct{}),
		log:       expandLogger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach registers a hover listener on every trigger of root and returns how
// many were newly registered. Triggers already registered are skipped.
func (c *Controller) Attach(root Root) int {
	if root == nil {
		return 0
	}

	added := 0
	for _, t := range root.Triggers() {
		if _, ok := c.listeners[t]; ok {
			continue
		}
		c.listeners[t] = struct{}{}
		added++
	}

	c.log.Debug().Int("added", added).Int("listeners", len(c.listeners)).Msg("Triggers attached")
	return added
}

func (c *Controller) Detach() {
	c.listeners = make(map[Trigger]struct{})
}

func (c *Controller) Listeners() int {
	return len(c.listeners)
}

// HoverEnter dispatches a hover event. Only attached triggers react.
func (c *Controller) HoverEnter(t Trigger) bool {
	if _, ok := c.listeners[t]; !ok {
		return false
	}
	c.OnHoverEnter(t)
	return true
}

func (c *Controller) OnHoverEnter(t Trigger) {
	if err := c.Expand(t.Target()); err != nil {
		c.log.Warn().Err(err).Str("target", t.Target()).Str("state", c.state.String()).Msg("Expansion skipped")
	}
}

// Expand shows the fragment with the given id in the slot. On error the
// current state is kept.
func (c *Controller) Expand(id string) error {
	next, err := Transition(c.state, id, c.src, c.slot)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// Clear empties the slot. Clearing an idle controller is a no-op.
func (c *Controller) Clear() {
	if c.slot == nil {
		c.log.Warn().Err(ErrNoSlot).Msg("Clear skipped")
		return
	}
	c.slot.Clear()
	c.state = State{}
}

func (c *Controller) State() State {
	return c.state
}
