package tui

import (
	"strings"

	"github.com/HE-Arc/Mind-vs-Wild/pkg/domain"
)

func homeView(user *domain.User) string {
	var b strings.Builder
	b.WriteString("  " + titleStyle.Render("Welcome to Mind vs Wild") + "\n\n")
	b.WriteString("  " + normalStyle.Render("Gather your group, open a room and play.") + "\n\n")
	if user == nil {
		b.WriteString("  " + helpEntry("l", "log in") + "   " + helpEntry("R", "create an account") + "\n")
	} else {
		b.WriteString("  " + normalStyle.Render("Signed in as ") + accentStyle.Render(user.DisplayName()) + "\n\n")
		b.WriteString("  " + helpEntry("2", "your groups") + "   " + helpEntry("3", "rooms") + "\n")
	}
	b.WriteString("  " + helpEntry("a", "about") + "   " + helpEntry(":", "paste an invite link") + "\n")
	return b.String()
}

func aboutView(version string) string {
	var b strings.Builder
	b.WriteString("  " + titleStyle.Render("About") + "\n\n")
	b.WriteString("  " + normalStyle.Render("Mind vs Wild is a party quiz played in rooms, alone or with a group.") + "\n")
	b.WriteString("  " + normalStyle.Render("Groups share rooms. Admins invite members with single-use links.") + "\n\n")
	if version != "" {
		b.WriteString("  " + metaStyle.Render("version "+version) + "\n")
	}
	return b.String()
}

func profileView(user *domain.User, groups []domain.Group) string {
	var b strings.Builder
	b.WriteString("  " + titleStyle.Render("Profile") + "\n\n")
	if user == nil {
		b.WriteString("  " + dimStyle.Render("not signed in") + "\n")
		return b.String()
	}
	row := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString("  " + dimStyle.Render(label) + "  " + normalStyle.Render(value) + "\n")
	}
	row("username  ", user.Username)
	row("name      ", strings.TrimSpace(user.FirstName+" "+user.LastName))
	row("email     ", user.Email)
	if len(groups) > 0 {
		b.WriteString("\n  " + sectionHeaderStyle.Render("groups") + "\n")
		for _, g := range groups {
			line := "    " + normalStyle.Render(g.Name)
			if g.IsAdmin(user.ID) {
				line += " " + adminStyle.Render("admin")
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}
