package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Button is the control that triggers a background task. It satisfies
// task.Control; all methods must be called on the UI goroutine.
type Button struct {
	label   string
	enabled bool
	focused bool
}

// NewButton creates an enabled button.
func NewButton(label string) *Button {
	return &Button{label: label, enabled: true}
}

func (b *Button) Enabled() bool           { return b.enabled }
func (b *Button) SetEnabled(enabled bool) { b.enabled = enabled }
func (b *Button) Label() string           { return b.label }
func (b *Button) SetLabel(label string)   { b.label = label }

// View renders the button.
func (b *Button) View(s *Styles) string {
	text := "[ " + b.label + " ]"
	switch {
	case !b.enabled:
		return s.ButtonDisabled.Render(text)
	case b.focused:
		return s.ButtonFocused.Render(text)
	default:
		return s.Button.Render(text)
	}
}

// Input is one editable form field.
type Input interface {
	Label() string
	Value() string
	SetValue(string)
	Focus() tea.Cmd
	Blur()
	Update(tea.Msg) tea.Cmd
	View() string
}

// TextField is a plain single-line input.
type TextField struct {
	label string
	input textinput.Model
}

// NewTextField creates a text field.
func NewTextField(label, placeholder string, limit int) *TextField {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = ""
	if limit > 0 {
		ti.CharLimit = limit
	}
	ti.Width = 40
	return &TextField{label: label, input: ti}
}

func (f *TextField) Label() string     { return f.label }
func (f *TextField) Value() string     { return f.input.Value() }
func (f *TextField) SetValue(v string) { f.input.SetValue(v) }
func (f *TextField) Focus() tea.Cmd    { return f.input.Focus() }
func (f *TextField) Blur()             { f.input.Blur() }
func (f *TextField) View() string      { return f.input.View() }

func (f *TextField) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return cmd
}

// PasswordField is a masked input whose visibility can be toggled.
type PasswordField struct {
	TextField
	visible bool
}

// NewPasswordField creates a masked password field.
func NewPasswordField(label string) *PasswordField {
	f := &PasswordField{TextField: *NewTextField(label, "", 128)}
	f.input.EchoCharacter = '•'
	f.apply()
	return f
}

// Visible reports whether the password is shown in clear text.
func (f *PasswordField) Visible() bool { return f.visible }

// SetVisible shows or masks the password.
func (f *PasswordField) SetVisible(v bool) {
	f.visible = v
	f.apply()
}

func (f *PasswordField) apply() {
	if f.visible {
		f.input.EchoMode = textinput.EchoNormal
	} else {
		f.input.EchoMode = textinput.EchoPassword
	}
}

// form is a column of inputs followed by a submit button.
type form struct {
	inputs []Input
	button *Button
	focus  int // len(inputs) means the button
}

func newForm(button string, inputs ...Input) *form {
	f := &form{inputs: inputs, button: NewButton(button)}
	f.setFocus(0)
	return f
}

func (f *form) setFocus(i int) tea.Cmd {
	n := len(f.inputs) + 1
	f.focus = ((i % n) + n) % n
	var cmd tea.Cmd
	for j, in := range f.inputs {
		if j == f.focus {
			cmd = in.Focus()
		} else {
			in.Blur()
		}
	}
	f.button.focused = f.focus == len(f.inputs)
	return cmd
}

func (f *form) next() tea.Cmd { return f.setFocus(f.focus + 1) }
func (f *form) prev() tea.Cmd { return f.setFocus(f.focus - 1) }

func (f *form) value(i int) string { return f.inputs[i].Value() }

func (f *form) update(msg tea.Msg) tea.Cmd {
	if f.focus < len(f.inputs) {
		return f.inputs[f.focus].Update(msg)
	}
	return nil
}

func (f *form) clear() {
	for _, in := range f.inputs {
		in.SetValue("")
	}
	f.setFocus(0)
}

// passwords returns every password field in the form.
func (f *form) passwords() []*PasswordField {
	var out []*PasswordField
	for _, in := range f.inputs {
		if p, ok := in.(*PasswordField); ok {
			out = append(out, p)
		}
	}
	return out
}
