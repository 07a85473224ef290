package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// NewConsoleHandler writes one line per event to w: the time, the event type,
// and the data as JSON. Colour is used only when w is a terminal and NO_COLOR
// is unset.
func NewConsoleHandler(w io.Writer) Handler {
	c := &console{
		out:     w,
		start:   color.New(color.FgCyan),
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		plain:   color.New(color.FgHiBlack),
	}
	enabled := useColor(w)
	for _, scheme := range []*color.Color{c.start, c.success, c.fail, c.plain} {
		if enabled {
			scheme.EnableColor()
		} else {
			scheme.DisableColor()
		}
	}
	return c.handle
}

type console struct {
	mu      sync.Mutex
	out     io.Writer
	start   *color.Color
	success *color.Color
	fail    *color.Color
	plain   *color.Color
}

func (c *console) handle(event Event) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		data = []byte(fmt.Sprintf("%q", fmt.Sprint(event.Data)))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, "%s %s %s\n",
		c.plain.Sprint(event.Timestamp.Format("15:04:05.000")),
		c.schemeFor(event).Sprint(event.Type),
		data,
	)
}

func (c *console) schemeFor(event Event) *color.Color {
	switch {
	case strings.HasSuffix(event.Type, "_start"):
		return c.start
	case event.Data["success"] == false, event.Data["status"] == "failed", event.Data["error"] != nil:
		return c.fail
	case strings.HasSuffix(event.Type, "_end"):
		return c.success
	default:
		return c.plain
	}
}

func useColor(w io.Writer) bool {
	if _, disabled := os.LookupEnv("NO_COLOR"); disabled {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
