package carousel

import "time"

const (
	// ScrollCooldown is the minimum gap between two accepted scroll rotations
	ScrollCooldown = 220 * time.Millisecond
	// ScrollDeadZone filters trackpad noise; smaller deltas are ignored
	ScrollDeadZone = 10.0
	// SwipeThreshold is the lateral excursion a drag needs per rotation
	SwipeThreshold = 40.0
)

// EventKind identifies the input channel and phase of an Event
type EventKind string

const (
	EventScroll       EventKind = "scroll"
	EventPointerDown  EventKind = "pointer_down"
	EventPointerMove  EventKind = "pointer_move"
	EventPointerUp    EventKind = "pointer_up"
	EventPointerLeave EventKind = "pointer_leave"
	EventKey          EventKind = "key"
)

// Keys accepted by the discrete-key channel
const (
	KeyRight = "ArrowRight"
	KeyLeft  = "ArrowLeft"
)

// Event is a raw input event as reported by the browser
type Event struct {
	Kind EventKind `json:"kind"`

	// scroll
	DeltaX float64 `json:"delta_x,omitempty"`
	DeltaY float64 `json:"delta_y,omitempty"`

	// pointer
	PointerID int     `json:"pointer_id,omitempty"`
	X         float64 `json:"x,omitempty"`

	// key
	Key         string `json:"key,omitempty"`
	InTextInput bool   `json:"in_text_input,omitempty"`
}

// Intent is the normalized form of any input that asks for a rotation
type Intent struct {
	Direction int `json:"direction"`
}

type dragState struct {
	active    bool
	startX    float64
	pointerID int
}

// intentLocked maps an event onto a rotation intent, updating the debounce
// and drag state as a side effect. c.mu must be held.
func (c *Controller) intentLocked(ev Event, now time.Time) (Intent, bool) {
	switch ev.Kind {
	case EventScroll:
		return c.scrollIntent(ev, now)
	case EventPointerDown:
		if c.drag.active && c.drag.pointerID != ev.PointerID {
			return Intent{}, false
		}
		c.drag = dragState{active: true, startX: ev.X, pointerID: ev.PointerID}
		return Intent{}, false
	case EventPointerMove:
		return c.dragIntent(ev)
	case EventPointerUp, EventPointerLeave:
		if c.drag.active && c.drag.pointerID == ev.PointerID {
			c.drag = dragState{}
		}
		return Intent{}, false
	case EventKey:
		return keyIntent(ev)
	default:
		return Intent{}, false
	}
}

func (c *Controller) scrollIntent(ev Event, now time.Time) (Intent, bool) {
	if !c.lastScroll.IsZero() && now.Sub(c.lastScroll) < ScrollCooldown {
		return Intent{}, false
	}
	delta := ev.DeltaY
	if abs(ev.DeltaX) > abs(ev.DeltaY) {
		delta = ev.DeltaX
	}
	if abs(delta) < ScrollDeadZone {
		return Intent{}, false
	}
	c.lastScroll = now
	if delta > 0 {
		return Intent{Direction: 1}, true
	}
	return Intent{Direction: -1}, true
}

// dragIntent fires once per SwipeThreshold of travel. Dragging left moves
// forward, the opposite sign of the scroll channel.
func (c *Controller) dragIntent(ev Event) (Intent, bool) {
	if !c.drag.active || c.drag.pointerID != ev.PointerID {
		return Intent{}, false
	}
	delta := ev.X - c.drag.startX
	if abs(delta) <= SwipeThreshold {
		return Intent{}, false
	}
	c.drag.startX = ev.X
	if delta < 0 {
		return Intent{Direction: 1}, true
	}
	return Intent{Direction: -1}, true
}

func keyIntent(ev Event) (Intent, bool) {
	if ev.InTextInput {
		return Intent{}, false
	}
	switch ev.Key {
	case KeyRight:
		return Intent{Direction: 1}, true
	case KeyLeft:
		return Intent{Direction: -1}, true
	}
	return Intent{}, false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
