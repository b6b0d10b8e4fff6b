package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pawtrack/pawtrack/pets"
)

// View renders the current screen, with the modal on top when one is open.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	var body string
	switch a.view {
	case ViewLogin:
		body = a.renderForm("Staff login", a.login, a.resetVisibleInputs(a.login))
	case ViewRegister:
		body = a.renderForm("Create an account", a.register, nil)
	case ViewReset:
		body = a.renderForm("Reset password", a.reset, a.resetVisibleInputs(a.reset))
	case ViewGallery:
		body = a.renderGallery()
	case ViewAdoption:
		body = a.renderForm("Adoption intake", a.adoption, nil)
	case ViewAppointments:
		body = a.renderForm("Schedule a vet visit", a.appointment, nil) + "\n" +
			a.styles.SectionHead.Render("Upcoming") + "\n" +
			RenderAppointmentsTable(a.upcoming, a.styles)
	case ViewDonations:
		body = a.renderForm("Record a donation", a.donation, nil) + "\n" +
			a.styles.SectionHead.Render("Donations") + "\n" +
			RenderDonationsTable(a.donationList, a.donationTotal, a.styles)
	}

	var b strings.Builder
	b.WriteString(a.renderHeader())
	b.WriteString("\n")
	if a.modal != nil {
		b.WriteString(a.renderModal())
	} else {
		b.WriteString(body)
	}
	b.WriteString("\n")
	b.WriteString(a.renderHelp())
	return b.String()
}

func (a *App) renderHeader() string {
	title := a.styles.Title.Render(SymbolPaw + " PawTrack")
	right := ""
	if a.user != "" {
		right = a.styles.Muted.Render("signed in as ") + a.styles.Subtitle.Render(a.user)
	}
	if a.busy() {
		right += " " + a.spinner.View()
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", right)
}

// resetVisibleInputs limits the reset form to the username until the
// lookup succeeded. For other forms it returns nil, meaning all inputs.
func (a *App) resetVisibleInputs(f *form) []int {
	if f != a.reset || a.resetUser != "" {
		return nil
	}
	return []int{0}
}

func (a *App) renderForm(title string, f *form, only []int) string {
	var b strings.Builder
	b.WriteString(a.styles.SectionHead.Render(title) + "\n")

	show := func(i int) bool {
		if only == nil {
			return true
		}
		for _, j := range only {
			if i == j {
				return true
			}
		}
		return false
	}

	for i, in := range f.inputs {
		if !show(i) {
			continue
		}
		label := a.styles.Label
		if i == f.focus {
			label = a.styles.FocusedLabel
		}
		b.WriteString(label.Render(in.Label()) + in.View() + "\n")
	}
	if f == a.reset && a.resetUser != "" {
		b.WriteString(a.styles.Muted.Render("  resetting "+a.resetUser) + "\n")
	}
	b.WriteString("\n" + f.button.View(a.styles))
	if !f.button.Enabled() {
		b.WriteString(" " + a.spinner.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (a *App) renderGallery() string {
	var b strings.Builder
	b.WriteString(a.styles.SectionHead.Render("Pet gallery") + "\n")

	if len(a.counts) > 0 {
		var parts []string
		for _, st := range []pets.Status{pets.StatusAvailable, pets.StatusInFoster, pets.StatusAdopted, pets.StatusUnknown} {
			if n := a.counts[st]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s %s %d", a.styles.StatusIcon(st), st.Label(), n))
			}
		}
		b.WriteString(strings.Join(parts, "   ") + "\n\n")
	}

	if a.gallery == nil {
		b.WriteString(a.styles.Muted.Render("  Loading pets... ") + a.spinner.View() + "\n")
	} else {
		b.WriteString(RenderPetsTable(a.gallery, a.cursor, a.styles))
	}
	b.WriteString("\n" + a.reloadGallery.View(a.styles) + "\n")
	return b.String()
}

func (a *App) renderModal() string {
	style := a.styles.Modal
	title := a.styles.Info.Render(a.modal.title)
	if a.modal.isErr {
		style = a.styles.ModalError
		title = a.styles.Error.Render(SymbolError + " " + a.modal.title)
	}
	box := style.Render(title + "\n\n" + a.modal.body + "\n\n" + a.styles.Muted.Render("press enter to dismiss"))
	if a.width > 0 && a.height > 0 {
		return lipgloss.Place(a.width, a.height-6, lipgloss.Center, lipgloss.Center, box)
	}
	return box + "\n"
}

func (a *App) renderHelp() string {
	type binding struct{ key, desc string }
	var keys []binding
	switch a.view {
	case ViewLogin:
		keys = []binding{{"enter", "login"}, {"tab", "next"}, {"ctrl+t", "show password"}, {"ctrl+n", "register"}, {"ctrl+r", "reset password"}}
	case ViewRegister, ViewReset:
		keys = []binding{{"enter", "submit"}, {"tab", "next"}, {"ctrl+t", "show password"}, {"esc", "back"}}
	case ViewGallery:
		keys = []binding{{"enter", "details"}, {"a", "add pet"}, {"p", "appointments"}, {"d", "donations"}, {"r", "reload"}, {"l", "log out"}, {"q", "quit"}}
	default:
		keys = []binding{{"enter", "submit"}, {"tab", "next"}, {"ctrl+r", "reload"}, {"esc", "back"}}
	}
	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, a.styles.HelpKey.Render(k.key)+" "+a.styles.HelpDesc.Render(k.desc))
	}
	parts = append(parts, a.styles.HelpKey.Render("ctrl+c")+" "+a.styles.HelpDesc.Render("quit"))
	return a.styles.Help.Render(strings.Join(parts, "  "+SymbolBullet+"  "))
}
