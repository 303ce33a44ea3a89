package loader

import "sync"

// Sink is the trusted content sink. Every document that reaches a user goes
// through Write together with the capabilities it will run under, so the
// allow-list is decided in one place.
type Sink interface {
	Write(markup string, caps Capabilities) error
	Clear()
}

// Embedder is implemented by surfaces that can show a literal address.
type Embedder interface {
	Embed(src string, caps Capabilities)
}

// Fullscreener is implemented by surfaces that can be put in fullscreen.
type Fullscreener interface {
	RequestFullscreen()
}

// document is the state shared by frames and tabs.
type document struct {
	mu     sync.RWMutex
	markup string
	src    string
	caps   Capabilities
	filled bool
}

func (d *document) Write(markup string, caps Capabilities) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.markup = markup
	d.src = ""
	d.caps = caps
	d.filled = true
	return nil
}

func (d *document) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.markup = ""
	d.src = ""
	d.caps = Capabilities{}
	d.filled = false
}

// Contents returns the injected markup and its capabilities. ok is false
// when nothing has been injected.
func (d *document) Contents() (markup string, caps Capabilities, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.markup, d.caps, d.filled && d.src == ""
}

// Frame is the embedded surface of a session. It holds either injected
// markup or, for direct embeds, a literal source address.
type Frame struct {
	document
	fullscreen bool
}

// Embed points the frame at a literal address instead of injected markup.
func (f *Frame) Embed(src string, caps Capabilities) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markup = ""
	f.src = src
	f.caps = caps
	f.filled = true
}

// Source returns the literal address for direct embeds.
func (f *Frame) Source() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.src
}

// Capabilities returns what the frame currently runs under.
func (f *Frame) Capabilities() Capabilities {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.caps
}

// RequestFullscreen records that the client should present the frame fullscreen.
func (f *Frame) RequestFullscreen() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fullscreen = true
}

// Fullscreen reports whether fullscreen was requested.
func (f *Frame) Fullscreen() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.fullscreen
}

// Tab is a freshly opened top-level context used by "open in new tab".
type Tab struct {
	document
	ID string
}
