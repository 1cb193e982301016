package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Shimmer animation for the header wordmark.
type shimmerTickMsg time.Time

func shimmerTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return shimmerTickMsg(t)
	})
}

const wordmark = "MIND VS WILD"

// renderShimmerLogo renders the wordmark with a band of light sweeping
// across it. Spaces between words stay wide.
func renderShimmerLogo(frame int) string {
	letters := 0
	for _, ch := range wordmark {
		if ch != ' ' {
			letters++
		}
	}

	var out strings.Builder
	pos := 0
	for i, ch := range wordmark {
		if ch == ' ' {
			out.WriteString("   ")
			continue
		}
		level := shimmerLevel(frame, float64(pos)/float64(letters-1))
		pos++
		out.WriteString(lipgloss.NewStyle().Bold(true).Foreground(mossToLime(level)).Render(string(ch)))
		if i < len(wordmark)-1 && wordmark[i+1] != ' ' {
			out.WriteString(" ")
		}
	}
	return out.String()
}

// shimmerLevel is the brightness in [0.05, 1] of a letter at relative
// position x on the given frame.
func shimmerLevel(frame int, x float64) float64 {
	t := float64(frame)
	wave := math.Sin(t*0.1-x*3.0+math.Sin(t*0.023)*2.0)*0.5 + 0.5
	level := math.Pow(wave, 1.3)*0.75 + math.Sin(t*0.035)*0.12 + 0.18
	return math.Max(0.05, math.Min(1, level))
}

// mossToLime blends deep moss (#1f3a1a) into lime (#a3e635).
func mossToLime(level float64) lipgloss.Color {
	from := [3]float64{31, 58, 26}
	to := [3]float64{163, 230, 53}
	var rgb [3]int
	for i := range rgb {
		rgb[i] = clampByte(from[i] + level*(to[i]-from[i]))
	}
	return lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", rgb[0], rgb[1], rgb[2]))
}

func clampByte(v float64) int {
	return int(math.Max(0, math.Min(255, v)))
}

var (
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e4e4ec")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c0c4d0"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	// Help bar
	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	helpLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#84cc16"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a3e635")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e06060"))

	flashStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4a844")).
			Italic(true)

	adminStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4a844")).
			Bold(true)

	selectedRowBg = lipgloss.NewStyle().Background(lipgloss.Color("#1e1e2a"))

	inputPromptStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#84cc16")).
				Bold(true)

	inputPlaceholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#343c4a"))

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#606878"))
)

// helpEntry renders a single "key label" pair for help bars.
func helpEntry(key, label string) string {
	return helpKeyStyle.Render(key) + " " + helpLabelStyle.Render(label)
}

// helpView renders the key reference overlay.
func helpView() string {
	cmdStyle := lipgloss.NewStyle().Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sectionStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)

	sections := []struct {
		name  string
		binds [][2]string
	}{
		{"Navigate", [][2]string{
			{"1", "home"}, {"2", "groups"}, {"3", "rooms"}, {"4", "profile"},
			{"a", "about"}, {":", "go to a path or invite link"}, {"esc", "back"},
		}},
		{"Session", [][2]string{{"l", "log in"}, {"R", "register"}, {"o", "log out"}}},
		{"Groups", [][2]string{
			{"n", "new group"}, {"i", "open invite"}, {"u", "invite a user"},
			{"c", "copy invite link"}, {"b", "open invite link"}, {"x", "leave group"},
		}},
		{"Rooms", [][2]string{{"enter", "join"}, {"J", "join by code"}, {"n", "new room"}, {"x", "leave room"}}},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n  %s\n\n", titleStyle.Render("M I N D   v s   W I L D"))
	for _, s := range sections {
		fmt.Fprintf(&b, "  %s\n", sectionStyle.Render(s.name))
		for _, kv := range s.binds {
			fmt.Fprintf(&b, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-6s", kv[0])), descStyle.Render(kv[1]))
		}
		b.WriteString("\n")
	}
	return b.String()
}
