package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/promptbeam/internal/events"
)

// candidateRow tracks the display state of one candidate.
type candidateRow struct {
	ID     string
	Stage  events.Stage
	Status events.Status
	Score  *float64
	Err    string
}

// ProgressMsg bridges run progress events to the TUI.
type ProgressMsg struct {
	Event events.Event
}

// RunDoneMsg signals that the run completed successfully.
type RunDoneMsg struct{}

// RunErrorMsg signals that the run failed with an error.
type RunErrorMsg struct {
	Err error
}

func (ProgressMsg) isDisplayEvent() {}
func (RunDoneMsg) isDisplayEvent()  {}
func (RunErrorMsg) isDisplayEvent() {}

// Model is the Bubble Tea model for run progress display.
type Model struct {
	rows    []candidateRow
	index   map[string]int // candidate ID -> rows position
	spinner spinner.Model
	ranking progress.Model
	pairs   *events.Progress // nil until the ranking stage starts
	done    bool
	err     error

	cancelFunc func()
	startTime  time.Time
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithCancelFunc installs the function invoked on an abort keypress.
func WithCancelFunc(fn func()) ModelOption {
	return func(m *Model) { m.cancelFunc = fn }
}

// NewModel creates an empty Model; candidate rows appear as events arrive.
func NewModel(opts ...ModelOption) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	m := Model{
		index:     make(map[string]int),
		spinner:   s,
		ranking:   progress.New(progress.WithDefaultGradient()),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts the spinner tick.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		m.apply(msg.Event)
		return m, nil

	case RunDoneMsg:
		m.done = true
		return m, tea.Quit

	case RunErrorMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.done = true
			if m.cancelFunc != nil {
				m.cancelFunc()
			}
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.ranking.Update(msg)
		m.ranking = pm.(progress.Model)
		return m, cmd
	}

	return m, nil
}

// apply folds one run event into the model state.
func (m *Model) apply(ev events.Event) {
	if ev.Stage == events.StageRanking {
		if ev.Progress != nil {
			m.pairs = ev.Progress
		}
		return
	}
	if ev.CandidateID == "" {
		return
	}

	i, ok := m.index[ev.CandidateID]
	if !ok {
		i = len(m.rows)
		m.index[ev.CandidateID] = i
		m.rows = append(m.rows, candidateRow{ID: ev.CandidateID})
	}
	row := &m.rows[i]
	row.Stage = ev.Stage
	row.Status = ev.Status
	if ev.TotalScore != nil {
		row.Score = ev.TotalScore
	}
	if ev.Err != "" {
		row.Err = ev.Err
	}
}

// View renders the candidate list with status indicators and, during
// ranking, a pair-comparison progress bar.
func (m Model) View() string {
	var s string

	for _, row := range m.rows {
		line := fmt.Sprintf("  %s %s %s", m.indicator(row), row.ID, stageLabel(row))
		if row.Score != nil {
			line += fmt.Sprintf("  %.1f", *row.Score)
		}
		s += line + "\n"
	}

	if m.pairs != nil && m.pairs.Total > 0 {
		pct := float64(m.pairs.Completed) / float64(m.pairs.Total)
		s += fmt.Sprintf("\n  ranking %s %d/%d\n", m.ranking.ViewAs(pct), m.pairs.Completed, m.pairs.Total)
	}

	if m.done && m.err != nil {
		s += fmt.Sprintf("\n  Error: %s\n", m.err)
	}

	return s
}

// indicator returns the Unicode indicator for a candidate's state.
func (m Model) indicator(row candidateRow) string {
	switch {
	case row.Stage == events.StageError || row.Status == events.StatusFailed:
		return "✗"
	case row.Stage == events.StageSafety:
		return "⚠"
	case row.Status == events.StatusComplete && row.Stage == events.StageVision:
		return "✓"
	case row.Status == events.StatusComplete && row.Stage == events.StageImageGen:
		return "✓"
	default:
		return m.spinner.View()
	}
}

// stageLabel renders the row's last stage transition.
func stageLabel(row candidateRow) string {
	if row.Err != "" {
		return string(row.Stage) + " failed"
	}
	return fmt.Sprintf("%s %s", row.Stage, row.Status)
}
