// Package browser is the automation surface the engine drives. The engine
// depends only on these interfaces; the rod adapter lives alongside and the
// tests substitute fakes.
package browser

import (
	"context"
	"time"
)

// Selector describes one element. CSS is required; when Text is set the
// element must also match it (regexp) against its own text. Name is a
// human-readable label used in logs.
type Selector struct {
	CSS  string
	Text string
	Name string
}

type Launcher interface {
	// Launch opens a persistent browser context keyed by sessionDir. Reusing
	// a directory resumes whatever authenticated state it holds.
	Launch(ctx context.Context, sessionDir string) (Session, error)
}

type Session interface {
	// Page returns the existing page or opens a new one.
	Page(ctx context.Context) (Page, error)
	Close() error
}

type Page interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error

	// WaitVisible reports whether sel became visible within timeout. A plain
	// timeout is (false, nil); only hard automation failures return an error.
	WaitVisible(ctx context.Context, sel Selector, timeout time.Duration) (bool, error)

	// Attribute reads an attribute of sel. Missing element or attribute is
	// ("", false, nil).
	Attribute(ctx context.Context, sel Selector, name string, timeout time.Duration) (string, bool, error)

	// Text reads the joined text content of sel.
	Text(ctx context.Context, sel Selector, timeout time.Duration) (string, bool, error)

	// Screenshot captures a PNG of sel.
	Screenshot(ctx context.Context, sel Selector, timeout time.Duration) ([]byte, error)

	// Type clicks sel and types text one rune at a time, sleeping delay()
	// between keystrokes.
	Type(ctx context.Context, sel Selector, text string, delay func() time.Duration) error

	Click(ctx context.Context, sel Selector, timeout time.Duration) error
}

// ClickFirst tries each candidate in order with a short bounded wait and
// clicks the first one present. It reports which one was clicked and never
// fails the caller.
func ClickFirst(ctx context.Context, page Page, candidates []Selector, perCandidate time.Duration) (string, bool) {
	for _, sel := range candidates {
		if ctx.Err() != nil {
			return "", false
		}
		if err := page.Click(ctx, sel, perCandidate); err == nil {
			return sel.Name, true
		}
	}
	return "", false
}
