package main

import (
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/charmbracelet/lipgloss"
)

var farewells = [...]string{
	"The wild will still be here tomorrow.",
	"Your group kept your seat warm.",
	"A quiz unanswered is a quiz you can still win.",
	"The fox counts the rooms. One of them is yours.",
	"Rest well. Somebody in your group is already practising.",
	"The owl noticed you left. The owl notices everything.",
	"Questions do not expire. Invitations do, so hurry back.",
	"Every room starts empty. Bring friends next time.",
}

func printHelp(w io.Writer) {
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#a3e635")).
		Bold(true).
		Render("M I N D   v s   W I L D")

	cmdStyle := lipgloss.NewStyle().Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	commands := []struct{ cmd, desc string }{
		{"mvw", "Open the interactive TUI"},
		{"mvw open <path|link>", "Open the TUI at a view or invite link"},
		{"mvw login [-u user]", "Log in (password read from stdin)"},
		{"mvw register", "Create an account"},
		{"mvw logout", "Clear your session"},
		{"mvw whoami", "Show the signed-in user"},
		{"mvw groups", "List your groups"},
		{"mvw group-create <name>", "Create a group (-d description)"},
		{"mvw invite <group-id>", "Mint an invite link (-u user, --copy, --open)"},
		{"mvw accept <token|link>", "Join a group from an invite"},
		{"mvw leave-group <id>", "Leave a group"},
		{"mvw rooms", "List your rooms"},
		{"mvw room-create <name>", "Create a room (-g group-id)"},
		{"mvw join <code>", "Join a room by code"},
		{"mvw update", "Check for a newer release"},
		{"mvw --version", "Show version"},
		{"mvw help", "You are here"},
	}

	fmt.Fprintf(w, "\n  %s\n\n  Commands:\n", title)
	for _, c := range commands {
		fmt.Fprintf(w, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-26s", c.cmd)), descStyle.Render(c.desc))
	}
	env := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render(
		"Settings: MVW_API_URL, MVW_FRONTEND_URL, MVW_CREDENTIAL_STORE (file|sqlite|memory),\n" +
			"  MVW_CREDENTIAL_PATH, MVW_HTTP_TIMEOUT, MVW_LOG_FILE, MVW_LOG_LEVEL")
	fmt.Fprintf(w, "\n  %s\n\n", env)
}

func printGreeting(w io.Writer) {
	msg := farewells[rand.IntN(len(farewells))]

	quote := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		Render(msg)

	hint := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Render("To come back: mvw login")

	fmt.Fprintf(w, "\n%s\n%s\n\n", quote, hint)
}
