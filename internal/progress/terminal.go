package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Terminal prints progress lines. On an interactive terminal a row of dots
// marks that startup is still busy until an error arrives or Close is called.
type Terminal struct {
	out      io.Writer
	animate  bool
	interval time.Duration

	mu     sync.Mutex
	dots   int
	stop   chan struct{}
	closed bool
}

// NewTerminal builds a Terminal on out. Animation is enabled only when out is
// a TTY.
func NewTerminal(out io.Writer) *Terminal {
	t := &Terminal{out: out, interval: time.Second}
	if f, ok := out.(*os.File); ok {
		fd := f.Fd()
		t.animate = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	if t.animate {
		t.stop = make(chan struct{})
		go t.spin(t.stop)
	}
	return t
}

func (t *Terminal) Show(evt Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.clearDotsLocked()
	switch evt.Kind {
	case KindError:
		fmt.Fprintf(t.out, "%s\n", evt.Text)
		if evt.Detail != "" {
			fmt.Fprintf(t.out, "%s\n", evt.Detail)
		}
		for _, notice := range evt.Notices {
			fmt.Fprintf(t.out, "%s\n", notice)
		}
		t.stopLocked()
	default:
		fmt.Fprintf(t.out, "%s\n", evt.Text)
	}
}

// Close stops the busy indicator.
func (t *Terminal) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearDotsLocked()
	t.stopLocked()
	t.closed = true
}

func (t *Terminal) spin(stop <-chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.mu.Lock()
			if t.stop == nil {
				t.mu.Unlock()
				return
			}
			if t.dots >= 3 {
				t.clearDotsLocked()
			} else {
				fmt.Fprint(t.out, ". ")
				t.dots++
			}
			t.mu.Unlock()
		}
	}
}

func (t *Terminal) clearDotsLocked() {
	if t.dots == 0 {
		return
	}
	width := t.dots * 2
	fmt.Fprintf(t.out, "\r%s\r", strings.Repeat(" ", width))
	t.dots = 0
}

func (t *Terminal) stopLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}
