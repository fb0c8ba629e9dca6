package progress

import (
	"fmt"
	"time"
)

// Kind distinguishes status updates from the terminal error.
type Kind string

const (
	KindUpdate Kind = "update"
	KindError  Kind = "error"
)

// Event is one message for a progress surface.
type Event struct {
	Sequence  uint64    `json:"seq"`
	Timestamp time.Time `json:"ts"`
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text"`
	Detail    string    `json:"detail,omitempty"`
	// Notices are the fixed closing lines shown after an error.
	Notices []string `json:"notices,omitempty"`
}

// Surface displays progress events.
type Surface interface {
	Show(Event)
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(Event)

func (f SurfaceFunc) Show(evt Event) { f(evt) }

// FailureNotices returns the closing lines appended to an error for app.
func FailureNotices(app string) []string {
	return []string{
		fmt.Sprintf("%s failed to initialize", app),
		fmt.Sprintf("You may close this window to end %s", app),
	}
}
