package tui

import (
	"time"

	"github.com/benbjohnson/immutable"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/pawtrack/pawtrack/account"
	"github.com/pawtrack/pawtrack/appointments"
	"github.com/pawtrack/pawtrack/database"
	"github.com/pawtrack/pawtrack/donations"
	"github.com/pawtrack/pawtrack/pets"
	"github.com/pawtrack/pawtrack/prefs"
	"github.com/pawtrack/pawtrack/task"
)

// View identifies the screen being shown.
type View int

const (
	ViewLogin View = iota
	ViewRegister
	ViewReset
	ViewGallery
	ViewAdoption
	ViewAppointments
	ViewDonations
)

// String returns the string representation of the View.
func (v View) String() string {
	switch v {
	case ViewLogin:
		return "login"
	case ViewRegister:
		return "register"
	case ViewReset:
		return "reset"
	case ViewGallery:
		return "gallery"
	case ViewAdoption:
		return "adoption"
	case ViewAppointments:
		return "appointments"
	case ViewDonations:
		return "donations"
	default:
		return "unknown"
	}
}

// Preferences is the subset of prefs.Store the UI uses.
type Preferences interface {
	Load() (prefs.Prefs, error)
	SetLastUsername(username string) error
	SetShowPassword(show bool) error
}

// Config wires the services the UI drives.
type Config struct {
	Accounts     *account.Service
	Pets         *pets.Service
	Appointments *appointments.Service
	Donations    *donations.Service

	// Prefs is optional.
	Prefs Preferences

	Logger        logrus.FieldLogger
	Metrics       *task.Metrics
	TaskTimeout   time.Duration
	SlowThreshold time.Duration
}

// modal is a notification shown over the current view.
type modal struct {
	title string
	body  string
	isErr bool
}

// App is the root bubbletea model. Every field is owned by the Update
// goroutine; background work reaches it only through task callbacks.
type App struct {
	cfg        Config
	logger     logrus.FieldLogger
	dispatcher *Dispatcher
	runner     *task.Runner
	styles     *Styles
	spinner    spinner.Model

	view   View
	user   string
	modal  *modal
	width  int
	height int

	login       *form
	register    *form
	reset       *form
	adoption    *form
	appointment *form
	donation    *form

	// resetUser is set once the reset lookup found the account.
	resetUser string

	reloadGallery *Button
	gallery       *immutable.List[pets.Summary]
	counts        map[pets.Status]int
	galleryStale  bool
	galleryGen    int // bumped by every stored adoption
	cursor        int

	reloadAppointments *Button
	upcoming           [][]string

	reloadDonations *Button
	donationList    []database.Donation
	donationTotal   int64

	lastOutcome account.Outcome
	quitting    bool
}

// NewApp builds the UI over the given services.
func NewApp(cfg Config) *App {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	d := NewDispatcher(64)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorPrimary)

	a := &App{
		cfg:        cfg,
		logger:     cfg.Logger.WithField("component", "tui"),
		dispatcher: d,
		runner: task.NewRunner(task.Config{
			Dispatcher:     d,
			Logger:         cfg.Logger,
			Metrics:        cfg.Metrics,
			DefaultTimeout: cfg.TaskTimeout,
			SlowThreshold:  cfg.SlowThreshold,
		}),
		styles:  DefaultStyles(),
		spinner: s,
		view:    ViewLogin,

		login: newForm("LOGIN",
			NewTextField("Username", "username", 64),
			NewPasswordField("Password"),
		),
		register: newForm("REGISTER",
			NewTextField("Username", "username", 64),
			NewTextField("Full name", "optional", 128),
			NewTextField("Email", "optional", 128),
			NewPasswordField("Password"),
			NewPasswordField("Confirm"),
		),
		reset: newForm("CONTINUE",
			NewTextField("Username", "username", 64),
			NewPasswordField("New password"),
			NewPasswordField("Confirm"),
		),
		adoption: newForm("SUBMIT",
			NewTextField("Name", "", 64),
			NewTextField("Gender", "Male / Female", 16),
			NewTextField("Age", "years", 3),
			NewTextField("Breed", "", 64),
			NewTextField("Health", "vaccinated, neutered...", 255),
			NewTextField("Contact", "phone or email", 128),
			NewTextField("Traits", "", 255),
			NewTextField("Reason", "why is the pet here", 255),
			NewTextField("Status", "available", 16),
			NewTextField("Photo", "/path/to/photo.png", 512),
		),
		appointment: newForm("SCHEDULE",
			NewTextField("Pet", "", 64),
			NewTextField("Owner", "", 64),
			NewTextField("Vet", "", 64),
			NewTextField("Reason", "", 255),
			NewTextField("When", appointments.Layout, 16),
		),
		donation: newForm("RECORD",
			NewTextField("Donor", "", 128),
			NewTextField("Amount", "12.50", 16),
			NewTextField("Note", "", 255),
		),

		reloadGallery:      NewButton("RELOAD"),
		reloadAppointments: NewButton("RELOAD"),
		reloadDonations:    NewButton("RELOAD"),
		galleryStale:       true,
	}

	if cfg.Prefs != nil {
		if p, err := cfg.Prefs.Load(); err != nil {
			a.logger.WithError(err).Warn("could not read preferences")
		} else {
			a.login.inputs[0].SetValue(p.LastUsername)
			for _, pw := range a.login.passwords() {
				pw.SetVisible(p.ShowPassword)
			}
			if p.LastUsername != "" {
				a.login.setFocus(1)
			}
		}
	}
	return a
}

// Dispatcher returns the dispatcher feeding task callbacks into Update.
func (a *App) Dispatcher() *Dispatcher { return a.dispatcher }

// CurrentView returns the visible screen.
func (a *App) CurrentView() View { return a.view }

// Init starts the callback listener.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.dispatcher.listen(),
		a.spinner.Tick,
		textinput.Blink,
	)
}

// Update handles messages
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case callbackMsg:
		msg.fn()
		return a, a.dispatcher.listen()

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	if f := a.activeForm(); f != nil {
		return a, f.update(msg)
	}
	return a, nil
}

// navigate is the only place the current view changes.
func (a *App) navigate(to View) tea.Cmd {
	from := a.view
	a.view = to
	a.logger.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Debug("navigate")

	switch to {
	case ViewLogin:
		a.user = ""
		a.gallery = nil
		a.galleryStale = true
	case ViewReset:
		// A lookup or reset still in flight keeps its state and busy label.
		if a.reset.button.Enabled() {
			a.resetUser = ""
			a.reset.button.SetLabel("CONTINUE")
		}
	case ViewGallery:
		if a.galleryStale || a.gallery == nil {
			a.loadGallery()
		}
	case ViewAppointments:
		a.loadAppointments()
	case ViewDonations:
		a.loadDonations()
	}

	if f := a.activeForm(); f != nil {
		return f.setFocus(f.focus)
	}
	return nil
}

func (a *App) activeForm() *form {
	switch a.view {
	case ViewLogin:
		return a.login
	case ViewRegister:
		return a.register
	case ViewReset:
		return a.reset
	case ViewAdoption:
		return a.adoption
	case ViewAppointments:
		return a.appointment
	case ViewDonations:
		return a.donation
	default:
		return nil
	}
}

// showError opens the modal with a failure message. A newer message
// replaces one that is still open.
func (a *App) showError(msg string) {
	a.modal = &modal{title: "Error", body: msg, isErr: true}
}

func (a *App) showInfo(title, msg string) {
	a.modal = &modal{title: title, body: msg}
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		a.quitting = true
		a.dispatcher.Close()
		return a, tea.Quit
	}

	if a.modal != nil {
		switch msg.String() {
		case "enter", "esc", " ":
			a.modal = nil
		}
		return a, nil
	}

	if a.view == ViewGallery {
		return a, a.handleGalleryKey(msg)
	}

	f := a.activeForm()
	switch msg.String() {
	case "tab", "down":
		return a, f.next()
	case "shift+tab", "up":
		return a, f.prev()
	case "enter":
		a.submit()
		return a, nil
	case "ctrl+t":
		return a, a.togglePasswords(f)
	case "esc":
		return a, a.navigate(a.backFrom(a.view))
	}

	if a.view == ViewLogin {
		switch msg.String() {
		case "ctrl+n":
			return a, a.navigate(ViewRegister)
		case "ctrl+r":
			return a, a.navigate(ViewReset)
		}
	}
	if a.view == ViewAppointments || a.view == ViewDonations {
		if msg.String() == "ctrl+r" {
			if a.view == ViewAppointments {
				a.loadAppointments()
			} else {
				a.loadDonations()
			}
			return a, nil
		}
	}

	return a, f.update(msg)
}

func (a *App) backFrom(v View) View {
	switch v {
	case ViewRegister, ViewReset, ViewLogin:
		return ViewLogin
	default:
		return ViewGallery
	}
}

func (a *App) handleGalleryKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		a.quitting = true
		a.dispatcher.Close()
		return tea.Quit
	case "a":
		return a.navigate(ViewAdoption)
	case "p":
		return a.navigate(ViewAppointments)
	case "d":
		return a.navigate(ViewDonations)
	case "r":
		a.loadGallery()
	case "enter":
		a.showPetDetails()
	case "l", "esc":
		return a.navigate(ViewLogin)
	case "j", "down":
		if a.gallery != nil && a.cursor < a.gallery.Len()-1 {
			a.cursor++
		}
	case "k", "up":
		if a.cursor > 0 {
			a.cursor--
		}
	}
	return nil
}

// togglePasswords flips visibility of the form's password fields and
// saves the choice in the background.
func (a *App) togglePasswords(f *form) tea.Cmd {
	fields := f.passwords()
	if len(fields) == 0 {
		return nil
	}
	visible := !fields[0].Visible()
	for _, pw := range fields {
		pw.SetVisible(visible)
	}
	if a.cfg.Prefs == nil {
		return nil
	}
	store, logger := a.cfg.Prefs, a.logger
	return func() tea.Msg {
		if err := store.SetShowPassword(visible); err != nil {
			logger.WithError(err).Warn("could not save password visibility")
		}
		return nil
	}
}

func (a *App) submit() {
	switch a.view {
	case ViewLogin:
		a.submitLogin()
	case ViewRegister:
		a.submitRegister()
	case ViewReset:
		if a.resetUser == "" {
			a.submitResetLookup()
		} else {
			a.submitReset()
		}
	case ViewAdoption:
		a.submitAdoption()
	case ViewAppointments:
		a.submitAppointment()
	case ViewDonations:
		a.submitDonation()
	}
}

func (a *App) busy() bool {
	for _, b := range []*Button{
		a.login.button, a.register.button, a.reset.button, a.adoption.button,
		a.appointment.button, a.donation.button,
		a.reloadGallery, a.reloadAppointments, a.reloadDonations,
	} {
		if !b.Enabled() {
			return true
		}
	}
	return false
}
