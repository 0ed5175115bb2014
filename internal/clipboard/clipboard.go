// Package clipboard writes text to the system clipboard, falling back to an
// OSC 52 escape sequence when no clipboard utility is available (e.g. over
// SSH).
package clipboard

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/aymanbagabas/go-osc52/v2"
)

type Clipboard struct {
	out    io.Writer
	system func(string) error
	getenv func(string) string
}

// New returns a Clipboard that emits OSC 52 sequences to out when the
// system clipboard is unavailable.
func New(out io.Writer) *Clipboard {
	return &Clipboard{
		out: out,
		system: func(s string) error {
			if clipboard.Unsupported {
				return fmt.Errorf("no system clipboard")
			}
			return clipboard.WriteAll(s)
		},
		getenv: os.Getenv,
	}
}

func (c *Clipboard) SetText(text string) error {
	if err := c.system(text); err == nil {
		return nil
	}
	if c.out == nil {
		return fmt.Errorf("no clipboard available")
	}

	seq := osc52.New(text)
	switch {
	case c.getenv("TMUX") != "":
		seq = seq.Tmux()
	case strings.HasPrefix(c.getenv("TERM"), "screen"):
		seq = seq.Screen()
	}
	if _, err := seq.WriteTo(c.out); err != nil {
		return fmt.Errorf("failed to write OSC 52 sequence: %w", err)
	}
	return nil
}
