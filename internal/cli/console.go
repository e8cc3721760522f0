package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/roach88/anchorkeep/internal/engine"
)

// syncWriter serializes writes from the input goroutine and the tick
// goroutine.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// console presents lifecycle events to the terminal: one line per event,
// or one JSON object per line with --format json.
type console struct {
	w      io.Writer
	json   bool
	home   chan struct{}
	closed bool
}

func newConsole(w io.Writer, format string) *console {
	return &console{
		w:    w,
		json: format == "json",
		home: make(chan struct{}),
	}
}

// Present implements engine.Presenter.
func (c *console) Present(ev engine.Event) {
	if c.json {
		data, err := json.Marshal(ev)
		if err == nil {
			fmt.Fprintf(c.w, "%s\n", data)
		}
	} else {
		fmt.Fprintln(c.w, formatEvent(ev))
	}

	if ev.Kind == engine.EventReturnHome && !c.closed {
		c.closed = true
		close(c.home)
	}
}

// Home is closed once the session has been torn down after a fatal error.
func (c *console) Home() <-chan struct{} {
	return c.home
}

func formatEvent(ev engine.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s", ev.Seq, ev.Kind)

	switch ev.Kind {
	case engine.EventAnchorPlaced:
		fmt.Fprintf(&b, " #%d", ev.Anchor)
		if ev.Pose != nil {
			fmt.Fprintf(&b, " at %s", ev.Pose)
		}
		b.WriteString(": enter a name")
	case engine.EventAnchorNamed:
		fmt.Fprintf(&b, " #%d %q", ev.Anchor, ev.Name)
	case engine.EventAnchorHostProgress:
		fmt.Fprintf(&b, " #%d %q %s", ev.Anchor, ev.Name, ev.Status)
		if ev.CloudID != "" {
			fmt.Fprintf(&b, " cloud_id=%s", ev.CloudID)
		}
		if ev.Reason != "" {
			fmt.Fprintf(&b, " reason=%s", ev.Reason)
		}
	case engine.EventBatchHostComplete:
		fmt.Fprintf(&b, " %d/%d hosted", ev.Success, ev.Total)
	case engine.EventAnchorResolveProgress:
		fmt.Fprintf(&b, " %s %s", ev.CloudID, ev.Status)
		if ev.Label != "" {
			fmt.Fprintf(&b, " label=%q", ev.Label)
		}
		if ev.Reason != "" {
			fmt.Fprintf(&b, " reason=%s", ev.Reason)
		}
	case engine.EventAnchorRemoved:
		if ev.Anchor != 0 {
			fmt.Fprintf(&b, " #%d", ev.Anchor)
		}
		if ev.CloudID != "" {
			fmt.Fprintf(&b, " %s", ev.CloudID)
		}
	default:
		if ev.Message != "" {
			fmt.Fprintf(&b, ": %s", ev.Message)
		}
	}
	return b.String()
}
