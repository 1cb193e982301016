package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// maxInputLen is the maximum number of runes allowed in form inputs.
const maxInputLen = 200

type fieldSpec struct {
	label       string
	placeholder string
	secret      bool
}

// form is a vertical stack of text inputs. Enter on the last field submits.
type form struct {
	title  string
	labels []string
	inputs []textinput.Model
	focus  int
	busy   bool
	err    string
}

func newForm(title string, specs ...fieldSpec) form {
	f := form{title: title}
	for _, s := range specs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = s.placeholder
		ti.CharLimit = maxInputLen
		ti.Cursor.SetMode(cursor.CursorStatic)
		if s.secret {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '•'
		}
		f.labels = append(f.labels, s.label)
		f.inputs = append(f.inputs, ti)
	}
	return f.setFocus(0)
}

func (f form) setFocus(i int) form {
	n := len(f.inputs)
	if n == 0 {
		return f
	}
	f.focus = (i%n + n) % n
	for j := range f.inputs {
		if j == f.focus {
			f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
	return f
}

// Update handles a key. submitted reports an enter on the last field.
func (f form) Update(msg tea.KeyMsg) (form, tea.Cmd, bool) {
	if f.busy {
		return f, nil, false
	}
	switch {
	case msg.Type == tea.KeyEnter:
		if f.focus == len(f.inputs)-1 {
			f.err = ""
			return f, nil, true
		}
		return f.setFocus(f.focus + 1), nil, false
	case key.Matches(msg, keys.NextField):
		return f.setFocus(f.focus + 1), nil, false
	case key.Matches(msg, keys.PrevField):
		return f.setFocus(f.focus - 1), nil, false
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd, false
}

func (f form) value(i int) string {
	return strings.TrimSpace(f.inputs[i].Value())
}

// raw returns the untrimmed value, for passwords.
func (f form) raw(i int) string {
	return f.inputs[i].Value()
}

func (f form) View() string {
	var b strings.Builder
	b.WriteString("  " + titleStyle.Render(f.title) + "\n\n")
	width := 0
	for _, l := range f.labels {
		width = max(width, len(l))
	}
	for i, ti := range f.inputs {
		label := f.labels[i] + strings.Repeat(" ", width-len(f.labels[i]))
		prompt := "  "
		if i == f.focus {
			prompt = inputPromptStyle.Render("> ")
		}
		b.WriteString("  " + prompt + dimStyle.Render(label) + "  " + ti.View() + "\n")
	}
	switch {
	case f.busy:
		b.WriteString("\n  " + dimStyle.Render("working…") + "\n")
	case f.err != "":
		b.WriteString("\n  " + errorStyle.Render(f.err) + "\n")
	}
	return b.String()
}
