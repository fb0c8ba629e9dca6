package progress

import (
	"log/slog"
	"sync"
	"time"

	"tessera/internal/logging"
)

// Channel sends progress to the attached surfaces. Only the first Error is
// delivered; later ones are logged and dropped.
type Channel struct {
	app    string
	logger *slog.Logger

	mu       sync.Mutex
	surfaces map[int]Surface
	nextID   int
	failed   bool
}

// NewChannel builds a Channel for app, used in the failure notices.
func NewChannel(app string, logger *slog.Logger) *Channel {
	if app == "" {
		app = "The application"
	}
	return &Channel{
		app:      app,
		logger:   logging.NewComponentLogger(logger, "progress"),
		surfaces: make(map[int]Surface),
	}
}

// Attach adds a surface and returns a function that detaches it.
func (c *Channel) Attach(surface Surface) func() {
	if surface == nil {
		return func() {}
	}
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.surfaces[id] = surface
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.surfaces, id)
			c.mu.Unlock()
		})
	}
}

// Update appends a status line.
func (c *Channel) Update(text string) {
	c.logger.Info(text, logging.String(logging.FieldEventType, "progress_update"))
	c.deliver(Event{Kind: KindUpdate, Text: text})
}

// Error reports the terminal failure. It returns false if an error was
// already reported.
func (c *Channel) Error(text, detail string) bool {
	c.mu.Lock()
	if c.failed {
		c.mu.Unlock()
		c.logger.Debug("suppressed duplicate progress error", logging.String("text", text), logging.String("detail", detail))
		return false
	}
	c.failed = true
	c.mu.Unlock()

	logging.ErrorWithContext(c.logger, text, "progress_error", logging.String("detail", detail))
	c.deliver(Event{Kind: KindError, Text: text, Detail: detail, Notices: FailureNotices(c.app)})
	return true
}

// Failed reports whether Error has been called.
func (c *Channel) Failed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed
}

func (c *Channel) deliver(evt Event) {
	evt.Timestamp = time.Now().UTC()
	c.mu.Lock()
	targets := make([]Surface, 0, len(c.surfaces))
	for _, s := range c.surfaces {
		targets = append(targets, s)
	}
	c.mu.Unlock()
	if len(targets) == 0 {
		c.logger.Debug("no progress surface attached", logging.String("kind", string(evt.Kind)))
		return
	}
	for _, s := range targets {
		s.Show(evt)
	}
}
