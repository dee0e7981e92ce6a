package tui

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/smileynet/promptbeam/internal/events"
)

// --- isTTY ---

func TestIsTTY_NonFileWriter(t *testing.T) {
	var buf bytes.Buffer
	if isTTY(&buf) {
		t.Error("non-*os.File writer should not be a TTY")
	}
}

func TestIsTTY_RegularFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "test")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	if isTTY(f) {
		t.Error("regular file should not be a TTY")
	}
}

func TestNewDisplay_ForcePlain(t *testing.T) {
	d := NewDisplay(DisplayOptions{Writer: &bytes.Buffer{}, ForcePlain: true})
	if _, ok := d.(*PlainDisplay); !ok {
		t.Errorf("display = %T, want *PlainDisplay", d)
	}
}

// --- Bridge ---

func TestBridge_SinkForwardsEvents(t *testing.T) {
	b := NewBridge()
	sink := b.Sink()

	go sink(events.Event{Stage: events.StageImageGen, Status: events.StatusComplete, CandidateID: "i0c0"})

	got := <-b.Events()
	pm, ok := got.(ProgressMsg)
	if !ok {
		t.Fatalf("expected ProgressMsg, got %T", got)
	}
	if pm.Event.CandidateID != "i0c0" {
		t.Errorf("candidate = %q, want i0c0", pm.Event.CandidateID)
	}
}

func TestBridge_DoneSendsRunDoneAndCloses(t *testing.T) {
	b := NewBridge()

	go b.Done()

	got := <-b.Events()
	if _, ok := got.(RunDoneMsg); !ok {
		t.Fatalf("expected RunDoneMsg, got %T", got)
	}

	// Channel should be closed after Done.
	_, open := <-b.Events()
	if open {
		t.Error("channel should be closed after Done")
	}
}

func TestBridge_ErrorSendsRunErrorAndCloses(t *testing.T) {
	b := NewBridge()
	testErr := errors.New("run exploded")

	go b.Error(testErr)

	got := <-b.Events()
	re, ok := got.(RunErrorMsg)
	if !ok {
		t.Fatalf("expected RunErrorMsg, got %T", got)
	}
	if re.Err.Error() != "run exploded" {
		t.Errorf("error = %q, want %q", re.Err, "run exploded")
	}

	_, open := <-b.Events()
	if open {
		t.Error("channel should be closed after Error")
	}
}

// --- PlainDisplay ---

func TestPlainDisplay_RendersProgress(t *testing.T) {
	var buf bytes.Buffer
	d := &PlainDisplay{w: &buf}

	ch := make(chan DisplayEvent, 2)
	ch <- ProgressMsg{Event: events.Event{Stage: events.StageImageGen, Status: events.StatusComplete, CandidateID: "i0c1"}}
	ch <- RunDoneMsg{}

	if err := d.Run(context.Background(), ch); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "[i0c1] imageGen complete") {
		t.Errorf("output = %q, want rendered event line", out)
	}
}

func TestPlainDisplay_ReturnsRunError(t *testing.T) {
	d := &PlainDisplay{w: &bytes.Buffer{}}
	testErr := errors.New("all candidates failed")

	ch := make(chan DisplayEvent, 1)
	ch <- RunErrorMsg{Err: testErr}

	if err := d.Run(context.Background(), ch); !errors.Is(err, testErr) {
		t.Errorf("Run() error = %v, want %v", err, testErr)
	}
}

func TestPlainDisplay_StopsOnClosedChannel(t *testing.T) {
	d := &PlainDisplay{w: &bytes.Buffer{}}

	ch := make(chan DisplayEvent)
	close(ch)

	if err := d.Run(context.Background(), ch); err != nil {
		t.Errorf("Run() error = %v, want nil on closed channel", err)
	}
}

func TestPlainDisplay_StopsOnCancelledContext(t *testing.T) {
	d := &PlainDisplay{w: &bytes.Buffer{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := make(chan DisplayEvent)
	if err := d.Run(ctx, ch); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
