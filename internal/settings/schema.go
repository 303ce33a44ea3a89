package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"unicode/utf8"
)

// Persisted keys. The names are shared with existing browser clients and
// must not change.
const (
	KeyCrosshairEnabled  = "crosshairEnabled"
	KeyCrosshairPosition = "crosshairPosition"
	KeyCrosshairStyle    = "crosshairStyle"
	KeyCrosshairRotation = "crosshairRotation"
	KeyPanelPosition     = "gameBarPosition"
	KeyFPSEnabled        = "fpsOverlayEnabled"
	KeyPingEnabled       = "pingOverlayEnabled"
	KeyFPSPosition       = "fpsOverlayPosition"
	KeyPingPosition      = "pingOverlayPosition"
	KeyCustomTitle       = "customTitle"
	KeyCustomIcon        = "customIcon"
	KeyTheme             = "theme"
)

// CrosshairStyles are the accepted values of KeyCrosshairStyle.
var CrosshairStyles = []string{"default", "dot", "cross", "circle", "square"}

// Themes are the accepted values of KeyTheme.
var Themes = []string{"dark", "light"}

var (
	// ErrInvalidValue is matched by every rejected write. The stored value
	// is left as it was.
	ErrInvalidValue = errors.New("invalid settings value")
	// ErrUnknownKey is returned for keys outside the schema.
	ErrUnknownKey = errors.New("unknown settings key")
)

// InvalidValueError describes a rejected write.
type InvalidValueError struct {
	Key string
	Err error
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value for %s: %v", e.Key, e.Err)
}

func (e *InvalidValueError) Unwrap() error { return e.Err }

// Is makes every InvalidValueError match ErrInvalidValue.
func (e *InvalidValueError) Is(target error) bool { return target == ErrInvalidValue }

// Point is a widget position. Depending on the key it is either a
// percentage of the viewport or a pixel offset.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Field is one schema entry. Decode parses a JSON value, validates it and
// returns the canonical Go value, clamped where the field clamps. Decoding
// a canonical value yields the same value.
type Field struct {
	Key     string
	Default any
	Decode  func(raw json.RawMessage) (any, error)
}

// Schema is the fixed set of persisted keys.
type Schema struct {
	fields map[string]Field
	order  []string
}

func newSchema(fields ...Field) *Schema {
	s := &Schema{fields: make(map[string]Field, len(fields))}
	for _, f := range fields {
		s.fields[f.Key] = f
		s.order = append(s.order, f.Key)
	}
	return s
}

// Field looks up a key.
func (s *Schema) Field(key string) (Field, bool) {
	f, ok := s.fields[key]
	return f, ok
}

// Keys returns every key in declaration order.
func (s *Schema) Keys() []string { return slices.Clone(s.order) }

// DefaultSchema returns the overlay and preference keys with their defaults.
func DefaultSchema() *Schema {
	return newSchema(
		boolField(KeyCrosshairEnabled, false),
		percentField(KeyCrosshairPosition, Point{X: 50, Y: 50}),
		enumField(KeyCrosshairStyle, "default", CrosshairStyles),
		intField(KeyCrosshairRotation, 0, 0, 360),
		pixelField(KeyPanelPosition, Point{X: 20, Y: 20}),
		boolField(KeyFPSEnabled, true),
		boolField(KeyPingEnabled, true),
		pixelField(KeyFPSPosition, Point{X: 20, Y: 20}),
		pixelField(KeyPingPosition, Point{X: 120, Y: 20}),
		stringField(KeyCustomTitle, "HydroForge", 256),
		stringField(KeyCustomIcon, "/favicon.ico", 2048),
		enumField(KeyTheme, "dark", Themes),
	)
}

// decodeStrict rejects null and trailing data.
func decodeStrict(raw json.RawMessage, v any) error {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return errors.New("null")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}

func boolField(key string, def bool) Field {
	return Field{Key: key, Default: def, Decode: func(raw json.RawMessage) (any, error) {
		var b bool
		if err := decodeStrict(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	}}
}

func decodePoint(raw json.RawMessage) (Point, error) {
	var p struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := decodeStrict(raw, &p); err != nil {
		return Point{}, err
	}
	if p.X == nil || p.Y == nil {
		return Point{}, errors.New("x and y are required")
	}
	if !finite(*p.X) || !finite(*p.Y) {
		return Point{}, errors.New("coordinates must be finite")
	}
	return Point{X: *p.X, Y: *p.Y}, nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// percentField clamps both coordinates into [0,100].
func percentField(key string, def Point) Field {
	return Field{Key: key, Default: def, Decode: func(raw json.RawMessage) (any, error) {
		p, err := decodePoint(raw)
		if err != nil {
			return nil, err
		}
		return ClampPercent(p), nil
	}}
}

// pixelField accepts any finite offset.
func pixelField(key string, def Point) Field {
	return Field{Key: key, Default: def, Decode: func(raw json.RawMessage) (any, error) {
		p, err := decodePoint(raw)
		if err != nil {
			return nil, err
		}
		return p, nil
	}}
}

// ClampPercent clamps both coordinates into [0,100].
func ClampPercent(p Point) Point {
	return Point{X: min(max(p.X, 0), 100), Y: min(max(p.Y, 0), 100)}
}

// intField accepts whole numbers in [lo,hi]; anything else is rejected.
func intField(key string, def, lo, hi int) Field {
	return Field{Key: key, Default: def, Decode: func(raw json.RawMessage) (any, error) {
		var f float64
		if err := decodeStrict(raw, &f); err != nil {
			return nil, err
		}
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("%v is not a whole number", f)
		}
		if f < float64(lo) || f > float64(hi) {
			return nil, fmt.Errorf("%v is outside [%d,%d]", f, lo, hi)
		}
		return int(f), nil
	}}
}

func enumField(key, def string, allowed []string) Field {
	return Field{Key: key, Default: def, Decode: func(raw json.RawMessage) (any, error) {
		var s string
		if err := decodeStrict(raw, &s); err != nil {
			return nil, err
		}
		if !slices.Contains(allowed, s) {
			return nil, fmt.Errorf("%q is not one of %v", s, allowed)
		}
		return s, nil
	}}
}

func stringField(key, def string, maxLen int) Field {
	return Field{Key: key, Default: def, Decode: func(raw json.RawMessage) (any, error) {
		var s string
		if err := decodeStrict(raw, &s); err != nil {
			return nil, err
		}
		if utf8.RuneCountInString(s) > maxLen {
			return nil, fmt.Errorf("longer than %d characters", maxLen)
		}
		return s, nil
	}}
}
