package overlay

import (
	"context"
	"sync"
)

// DragState is the state of a Drag.
type DragState int

const (
	Idle DragState = iota
	Dragging
)

func (s DragState) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Rect is an area relative to a widget's position.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Contains reports whether p, relative to the widget origin, is inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// DefaultGrips are the grip areas of each widget, in the widget's units.
var DefaultGrips = map[Widget]Rect{
	WidgetCrosshair: {X: -3, Y: -3, W: 6, H: 6},
	WidgetPanel:     {X: 0, Y: 0, W: 24, H: 40},
	WidgetFPS:       {X: 0, Y: 0, W: 90, H: 24},
	WidgetPing:      {X: 0, Y: 0, W: 90, H: 24},
}

// Drag repositions one widget by direct manipulation. Pointer coordinates
// are in the widget's units. Every move while dragging is persisted, so an
// interrupted drag keeps its last position.
type Drag struct {
	ctrl   *Controller
	widget Widget
	grip   Rect

	mu     sync.Mutex
	state  DragState
	offset Point
}

// NewDrag creates an idle Drag for w with its grip area.
func (c *Controller) NewDrag(w Widget, grip Rect) *Drag {
	return &Drag{ctrl: c, widget: w, grip: grip}
}

// State returns the current state.
func (d *Drag) State() DragState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// PointerDown starts dragging if pointer is over the grip. It reports
// whether a drag started.
func (d *Drag) PointerDown(ctx context.Context, pointer Point) (bool, error) {
	pos, err := d.ctrl.Position(ctx, d.widget)
	if err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	rel := Point{X: pointer.X - pos.X, Y: pointer.Y - pos.Y}
	if !d.grip.Contains(rel) {
		return false, nil
	}
	d.state = Dragging
	d.offset = rel
	return true, nil
}

// PointerMove moves the widget with the pointer while dragging and returns
// the stored position. It is a no-op when idle.
func (d *Drag) PointerMove(ctx context.Context, pointer Point) (Point, bool, error) {
	d.mu.Lock()
	if d.state != Dragging {
		d.mu.Unlock()
		return Point{}, false, nil
	}
	target := Point{X: pointer.X - d.offset.X, Y: pointer.Y - d.offset.Y}
	d.mu.Unlock()

	stored, err := d.ctrl.SetPosition(ctx, d.widget, target)
	if err != nil {
		return Point{}, false, err
	}
	return stored, true, nil
}

// PointerUp ends the drag wherever the pointer is.
func (d *Drag) PointerUp() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = Idle
	d.offset = Point{}
}
