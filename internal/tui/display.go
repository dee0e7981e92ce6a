// Package tui renders run progress either as plain text lines or as an
// interactive Bubble Tea view, selected by TTY detection.
package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/smileynet/promptbeam/internal/events"
)

// DisplayEvent is an event sent to a Display via the update channel.
// Implemented by ProgressMsg, RunDoneMsg, and RunErrorMsg.
type DisplayEvent interface {
	isDisplayEvent()
}

// Verify at compile time that message types implement DisplayEvent.
var (
	_ DisplayEvent = ProgressMsg{}
	_ DisplayEvent = RunDoneMsg{}
	_ DisplayEvent = RunErrorMsg{}
)

// Display renders run progress updates.
type Display interface {
	Run(ctx context.Context, events <-chan DisplayEvent) error
}

// DisplayOptions configures display creation.
type DisplayOptions struct {
	Writer     io.Writer          // Output destination (default: os.Stdout).
	ForcePlain bool               // Force plain text even if TTY.
	CancelFunc context.CancelFunc // Called by TUI on abort keypress (ignored by PlainDisplay).
}

// NewDisplay returns a TUI display when stdout is a TTY, or a plain text
// display otherwise. ForcePlain overrides TTY detection.
func NewDisplay(opts DisplayOptions) Display {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	if opts.ForcePlain || !isTTY(opts.Writer) {
		return &PlainDisplay{w: opts.Writer}
	}

	return &TUIDisplay{w: opts.Writer, cancelFunc: opts.CancelFunc}
}

// isTTY reports whether w is connected to a terminal.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Bridge manages the channel between the run's event sink and a Display
// consumer.
type Bridge struct {
	ch chan DisplayEvent
}

// NewBridge creates a Bridge with a buffered event channel.
func NewBridge() *Bridge {
	return &Bridge{ch: make(chan DisplayEvent, 64)}
}

// Events returns the read-only channel for Display.Run() to consume.
func (b *Bridge) Events() <-chan DisplayEvent {
	return b.ch
}

// Sink returns an events.Sink that forwards into the bridge. It blocks if
// the channel buffer is full.
func (b *Bridge) Sink() events.Sink {
	return func(ev events.Event) {
		b.ch <- ProgressMsg{Event: ev}
	}
}

// Done signals successful run completion and closes the channel.
func (b *Bridge) Done() {
	b.ch <- RunDoneMsg{}
	close(b.ch)
}

// Error signals run failure and closes the channel.
func (b *Bridge) Error(err error) {
	b.ch <- RunErrorMsg{Err: err}
	close(b.ch)
}

// PlainDisplay renders progress events as timestamped text lines.
type PlainDisplay struct {
	w io.Writer
}

// Run loops over events, printing each progress update as a text line.
// Returns the run error if the run failed, or context error if cancelled.
func (d *PlainDisplay) Run(ctx context.Context, events <-chan DisplayEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch msg := ev.(type) {
			case ProgressMsg:
				ts := time.Now().Format("15:04:05")
				_, _ = fmt.Fprintf(d.w, "[%s] %s\n", ts, msg.Event.Line())
			case RunDoneMsg:
				return nil
			case RunErrorMsg:
				return msg.Err
			}
		}
	}
}

// TUIDisplay renders progress using a Bubble Tea terminal UI.
// Falls back to PlainDisplay if the TUI program fails to start.
type TUIDisplay struct {
	w          io.Writer
	cancelFunc context.CancelFunc
}

// Run starts the Bubble Tea program and feeds events from the channel.
// If the TUI fails to initialize, it falls back to plain text output.
func (d *TUIDisplay) Run(ctx context.Context, events <-chan DisplayEvent) error {
	var opts []ModelOption
	if d.cancelFunc != nil {
		opts = append(opts, WithCancelFunc(d.cancelFunc))
	}
	model := NewModel(opts...)
	p := tea.NewProgram(model, tea.WithOutput(d.w))

	// Forward events through an intermediate channel so we can stop
	// the goroutine cleanly on TUI failure before falling back.
	fwd := make(chan DisplayEvent, 64)
	stop := make(chan struct{})

	go func() {
		defer close(fwd)
		for ev := range events {
			select {
			case fwd <- ev:
			case <-stop:
				return
			}
		}
	}()

	go func() {
		for ev := range fwd {
			p.Send(ev)
		}
	}()

	_, err := p.Run()
	if err != nil {
		close(stop)
		// Fall back to plain text for remaining events from the original channel.
		plain := &PlainDisplay{w: d.w}
		return plain.Run(ctx, events)
	}

	return nil
}
