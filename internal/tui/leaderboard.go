package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/smileynet/promptbeam/internal/candidate"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	winnerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	noteStyle   = lipgloss.NewStyle().Faint(true)
)

// RenderLeaderboard formats the run-wide leaderboard, best first. Candidates
// tied at the floor rank carry their note; the rank-1 line is highlighted.
func RenderLeaderboard(board []*candidate.Candidate) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("rank  candidate  score") + "\n")

	for _, c := range board {
		score := "-"
		if c.Evaluation != nil {
			score = fmt.Sprintf("%.1f", c.TotalScore)
		} else if c.Ranking != nil {
			score = fmt.Sprintf("%d wins", c.Ranking.Wins)
		}
		line := fmt.Sprintf("%4d  %-9s  %s", c.GlobalRank, c.ID.String(), score)
		if c.GlobalRankNote != "" {
			line += "  " + noteStyle.Render("("+c.GlobalRankNote+")")
		}
		if c.GlobalRank == 1 {
			line = winnerStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
