package overlay

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/hydroforge/hydroforge/internal/settings"
)

// Point is a widget position: percent of the viewport for the crosshair,
// pixels for everything else.
type Point = settings.Point

// Widget names a movable overlay.
type Widget string

const (
	WidgetCrosshair Widget = "crosshair"
	WidgetPanel     Widget = "panel"
	WidgetFPS       Widget = "fps"
	WidgetPing      Widget = "ping"
)

// Widgets lists every overlay.
var Widgets = []Widget{WidgetCrosshair, WidgetPanel, WidgetFPS, WidgetPing}

// Style is the crosshair shape.
type Style string

const (
	StyleDefault Style = "default"
	StyleDot     Style = "dot"
	StyleCross   Style = "cross"
	StyleCircle  Style = "circle"
	StyleSquare  Style = "square"
)

// NudgeStep is how far one nudge moves a widget, in its own units.
const NudgeStep = 1

var (
	ErrUnknownWidget = errors.New("unknown widget")
	// ErrNotToggleable is returned when enabling or disabling the control
	// panel, which is always shown.
	ErrNotToggleable = errors.New("widget cannot be toggled")
)

type widgetKeys struct {
	position string
	enabled  string
}

var keys = map[Widget]widgetKeys{
	WidgetCrosshair: {position: settings.KeyCrosshairPosition, enabled: settings.KeyCrosshairEnabled},
	WidgetPanel:     {position: settings.KeyPanelPosition},
	WidgetFPS:       {position: settings.KeyFPSPosition, enabled: settings.KeyFPSEnabled},
	WidgetPing:      {position: settings.KeyPingPosition, enabled: settings.KeyPingEnabled},
}

// overlayKeys are the persisted keys a reset clears. App preferences
// (title, icon, theme) are left alone.
var overlayKeys = []string{
	settings.KeyCrosshairEnabled,
	settings.KeyCrosshairPosition,
	settings.KeyCrosshairStyle,
	settings.KeyCrosshairRotation,
	settings.KeyPanelPosition,
	settings.KeyFPSEnabled,
	settings.KeyPingEnabled,
	settings.KeyFPSPosition,
	settings.KeyPingPosition,
}

// Settings is the aggregate overlay configuration.
type Settings struct {
	CrosshairEnabled  bool  `json:"crosshair_enabled"`
	CrosshairPosition Point `json:"crosshair_position"`
	CrosshairStyle    Style `json:"crosshair_style"`
	CrosshairRotation int   `json:"crosshair_rotation"`
	PanelPosition     Point `json:"panel_position"`
	FPSEnabled        bool  `json:"fps_enabled"`
	PingEnabled       bool  `json:"ping_enabled"`
	FPSPosition       Point `json:"fps_position"`
	PingPosition      Point `json:"ping_position"`
}

// Defaults returns the documented defaults.
func Defaults() Settings {
	return Settings{
		CrosshairPosition: Point{X: 50, Y: 50},
		CrosshairStyle:    StyleDefault,
		PanelPosition:     Point{X: 20, Y: 20},
		FPSEnabled:        true,
		PingEnabled:       true,
		FPSPosition:       Point{X: 20, Y: 20},
		PingPosition:      Point{X: 120, Y: 20},
	}
}

// Controller reads and writes overlay state. Every change goes through the
// settings store, so validation and clamping happen there.
type Controller struct {
	store *settings.Store
}

// NewController creates a Controller over store.
func NewController(store *settings.Store) *Controller {
	return &Controller{store: store}
}

// Store returns the underlying settings store.
func (c *Controller) Store() *settings.Store { return c.store }

// Settings reads the whole aggregate.
func (c *Controller) Settings(ctx context.Context) (Settings, error) {
	var (
		s     Settings
		style string
		errs  []error
	)
	get := func(err error) { errs = append(errs, err) }

	var err error
	s.CrosshairEnabled, err = c.store.Bool(ctx, settings.KeyCrosshairEnabled)
	get(err)
	s.CrosshairPosition, err = c.store.Point(ctx, settings.KeyCrosshairPosition)
	get(err)
	style, err = c.store.String(ctx, settings.KeyCrosshairStyle)
	get(err)
	s.CrosshairStyle = Style(style)
	s.CrosshairRotation, err = c.store.Int(ctx, settings.KeyCrosshairRotation)
	get(err)
	s.PanelPosition, err = c.store.Point(ctx, settings.KeyPanelPosition)
	get(err)
	s.FPSEnabled, err = c.store.Bool(ctx, settings.KeyFPSEnabled)
	get(err)
	s.PingEnabled, err = c.store.Bool(ctx, settings.KeyPingEnabled)
	get(err)
	s.FPSPosition, err = c.store.Point(ctx, settings.KeyFPSPosition)
	get(err)
	s.PingPosition, err = c.store.Point(ctx, settings.KeyPingPosition)
	get(err)

	if err := errors.Join(errs...); err != nil {
		return Settings{}, fmt.Errorf("reading overlay settings: %w", err)
	}
	return s, nil
}

func lookup(w Widget) (widgetKeys, error) {
	k, ok := keys[w]
	if !ok {
		return widgetKeys{}, fmt.Errorf("%w: %q", ErrUnknownWidget, w)
	}
	return k, nil
}

// Position returns a widget's stored position.
func (c *Controller) Position(ctx context.Context, w Widget) (Point, error) {
	k, err := lookup(w)
	if err != nil {
		return Point{}, err
	}
	return c.store.Point(ctx, k.position)
}

// SetPosition stores a widget position, as typed into a numeric field or
// produced by a drag. The crosshair is clamped to [0,100] on both axes.
func (c *Controller) SetPosition(ctx context.Context, w Widget, p Point) (Point, error) {
	k, err := lookup(w)
	if err != nil {
		return Point{}, err
	}
	if err := c.store.Set(ctx, k.position, p); err != nil {
		return Point{}, err
	}
	return c.store.Point(ctx, k.position)
}

// Nudge moves a widget by dx and dy steps.
func (c *Controller) Nudge(ctx context.Context, w Widget, dx, dy int) (Point, error) {
	p, err := c.Position(ctx, w)
	if err != nil {
		return Point{}, err
	}
	p.X += float64(dx * NudgeStep)
	p.Y += float64(dy * NudgeStep)
	return c.SetPosition(ctx, w, p)
}

// SetEnabled shows or hides a widget.
func (c *Controller) SetEnabled(ctx context.Context, w Widget, on bool) error {
	k, err := lookup(w)
	if err != nil {
		return err
	}
	if k.enabled == "" {
		return fmt.Errorf("%w: %s", ErrNotToggleable, w)
	}
	return c.store.Set(ctx, k.enabled, on)
}

// SetStyle selects the crosshair shape.
func (c *Controller) SetStyle(ctx context.Context, s Style) error {
	return c.store.Set(ctx, settings.KeyCrosshairStyle, string(s))
}

// SetRotation sets the crosshair rotation in whole degrees, 0 to 360.
func (c *Controller) SetRotation(ctx context.Context, degrees int) error {
	return c.store.Set(ctx, settings.KeyCrosshairRotation, degrees)
}

// Reset removes every persisted overlay override. Subscribers see the
// defaults immediately.
func (c *Controller) Reset(ctx context.Context) error {
	return c.store.Reset(ctx, overlayKeys...)
}

// IsOverlayKey reports whether key belongs to the overlay aggregate.
func IsOverlayKey(key string) bool {
	return slices.Contains(overlayKeys, key)
}

// Subscribe calls fn with the fresh aggregate whenever an overlay key
// changes. It returns the unsubscribe func.
func (c *Controller) Subscribe(ctx context.Context, fn func(Settings)) func() {
	return c.store.Subscribe(func(ch settings.Change) {
		if !IsOverlayKey(ch.Key) {
			return
		}
		s, err := c.Settings(ctx)
		if err != nil {
			return
		}
		fn(s)
	})
}
