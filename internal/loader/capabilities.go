package loader

import (
	"slices"
	"strings"
)

// Capabilities is the auditable allow-list granted to an embedded surface.
// Sandbox tokens become the iframe sandbox attribute and the CSP sandbox
// directive; Allow entries become the iframe allow (permissions) attribute.
type Capabilities struct {
	Sandbox []string `json:"sandbox"`
	Allow   []string `json:"allow,omitempty"`
}

var injectSandbox = []string{
	"allow-scripts",
	"allow-same-origin",
	"allow-forms",
	"allow-popups",
	"allow-modals",
	"allow-pointer-lock",
}

// InjectCapabilities is granted to fetched-and-injected documents. It never
// includes top-level navigation.
func InjectCapabilities() Capabilities {
	return Capabilities{Sandbox: slices.Clone(injectSandbox)}
}

// DirectCapabilities is granted to entries embedded by address. They may
// navigate the top level on user activation and use media autoplay.
func DirectCapabilities() Capabilities {
	return Capabilities{
		Sandbox: append(slices.Clone(injectSandbox), "allow-top-navigation-by-user-activation"),
		Allow:   []string{"autoplay", "fullscreen"},
	}
}

// Has reports whether the sandbox token is granted.
func (c Capabilities) Has(token string) bool {
	return slices.Contains(c.Sandbox, token)
}

// SandboxAttr renders the iframe sandbox attribute value.
func (c Capabilities) SandboxAttr() string {
	return strings.Join(c.Sandbox, " ")
}

// AllowAttr renders the iframe allow attribute value.
func (c Capabilities) AllowAttr() string {
	return strings.Join(c.Allow, "; ")
}

// CSP renders the Content-Security-Policy header applied when the document
// is served by us.
func (c Capabilities) CSP() string {
	if len(c.Sandbox) == 0 {
		return "sandbox"
	}
	return "sandbox " + c.SandboxAttr()
}
