package ui

import (
	"fmt"
	"io"
	"sync"
)

// Renderer displays a status view.
type Renderer interface {
	Render(s Status) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(s Status) error

func (f RendererFunc) Render(s Status) error {
	return f(s)
}

// TextRenderer writes the view as labeled lines.
type TextRenderer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextRenderer creates a renderer writing to w.
func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

func (r *TextRenderer) Render(s Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !s.OnTarget {
		_, err := fmt.Fprintln(r.w, "Open a video page on the target site to use AP Tools.")
		return err
	}
	_, err := fmt.Fprintf(r.w, "Script:   %s\nVideo ID: %s\nMode:     %s\n",
		s.Script.Value, s.Target.Value, s.Mode.Value)
	return err
}
