package carousel

import (
	"sync"
	"time"

	"github.com/artinstitute/galleryroom/internal/ring"
)

// State is a snapshot of the controller published to subscribers
type State struct {
	Focus   int    `json:"focus"`
	Count   int    `json:"count"`
	Version uint64 `json:"version"`
}

// Controller owns the focus index of a carousel and turns raw input from the
// scroll, drag and key channels into rotations.
type Controller struct {
	mu         sync.Mutex
	count      int
	focus      int
	version    uint64
	lastScroll time.Time
	drag       dragState
	now        func() time.Time

	subscribers map[int]chan State
	nextSubID   int
}

// Option configures a Controller
type Option func(*Controller)

// WithClock replaces the wall clock used by the scroll cooldown
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController creates an empty controller
func NewController(opts ...Option) *Controller {
	c := &Controller{
		now:         time.Now,
		subscribers: make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reset installs a new item sequence length and forces the focus to start.
// The previous focus is discarded, not clamped.
func (c *Controller) Reset(count, start int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if count < 0 {
		count = 0
	}
	c.count = count
	c.focus = ring.Normalize(start, count)
	c.drag = dragState{}
	c.publishLocked()
}

// Handle feeds one raw input event through the controller and reports
// whether the focus moved.
func (c *Controller) Handle(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	intent, ok := c.intentLocked(ev, c.now())
	if !ok {
		return false
	}
	return c.rotateLocked(intent.Direction)
}

// Rotate moves the focus by one step in direction
func (c *Controller) Rotate(direction int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rotateLocked(direction)
}

func (c *Controller) rotateLocked(direction int) bool {
	if c.count == 0 || direction == 0 {
		return false
	}
	if direction > 0 {
		direction = 1
	} else {
		direction = -1
	}
	c.focus = ring.Rotate(c.focus, direction, c.count)
	c.publishLocked()
	return true
}

// State returns the current focus and item count
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	return State{Focus: c.focus, Count: c.count, Version: c.version}
}

// Subscribe returns a channel that receives the latest State after every
// change. Slow readers only ever see the newest snapshot. The returned
// function unsubscribes and closes the channel.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	ch := make(chan State, 1)
	c.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subscribers, id)
			close(ch)
		})
	}
}

func (c *Controller) publishLocked() {
	c.version++
	state := c.stateLocked()
	for _, ch := range c.subscribers {
		select {
		case ch <- state:
		default:
			// replace the stale snapshot
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- state:
			default:
			}
		}
	}
}
