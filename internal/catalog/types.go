package catalog

import (
	"fmt"
	"strconv"
)

// ContactID marks the non-playable info card. Selecting it links out
// instead of loading content.
const ContactID = -1

// Entry is one playable item. Entries are produced by a fetch and never
// mutated afterwards; the next fetch replaces them wholesale.
type Entry struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	CoverImage string `json:"cover"`
	ContentURL string `json:"url"`
	Author     string `json:"author,omitempty"`
	AuthorLink string `json:"authorLink,omitempty"`
	Featured   bool   `json:"featured,omitempty"`
	Source     string `json:"source"`
}

// IsContact reports whether e is the contact pseudo-entry.
func (e Entry) IsContact() bool { return e.ID == ContactID }

// Key identifies an entry across sources. ID alone is only unique within
// a single source.
func (e Entry) Key() string {
	return e.Source + ":" + strconv.Itoa(e.ID)
}

// FetchError reports that the primary manifest could not be loaded. The
// catalog is unavailable as a whole when this is returned.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("catalog unavailable: primary source %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// OptionalSourceError reports a secondary source that failed. Its entries
// are omitted; the rest of the catalog still loads.
type OptionalSourceError struct {
	Source string
	Err    error
}

func (e *OptionalSourceError) Error() string {
	return fmt.Sprintf("optional source %s skipped: %v", e.Source, e.Err)
}

func (e *OptionalSourceError) Unwrap() error { return e.Err }
