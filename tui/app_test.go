package tui

import (
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/pawtrack/pawtrack/account"
	"github.com/pawtrack/pawtrack/appointments"
	"github.com/pawtrack/pawtrack/database"
	"github.com/pawtrack/pawtrack/donations"
	"github.com/pawtrack/pawtrack/memstore"
	"github.com/pawtrack/pawtrack/pets"
	"github.com/pawtrack/pawtrack/prefs"
)

type fakePrefs struct {
	p     prefs.Prefs
	saved chan bool
}

func (f *fakePrefs) Load() (prefs.Prefs, error) { return f.p, nil }

func (f *fakePrefs) SetLastUsername(u string) error {
	f.p.LastUsername = u
	return nil
}

func (f *fakePrefs) SetShowPassword(show bool) error {
	f.p.ShowPassword = show
	if f.saved != nil {
		f.saved <- show
	}
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestApp(t *testing.T, p Preferences) (*App, *memstore.Store) {
	t.Helper()
	store, err := memstore.New()
	if err != nil {
		t.Fatal(err)
	}
	return newAppOver(t, store, store, p), store
}

// newAppOver builds an app on store, reading and writing pets through
// petStore, with an account alice/secret.
func newAppOver(t *testing.T, store *memstore.Store, petStore pets.Store, p Preferences) *App {
	t.Helper()
	logger := quietLogger()
	accounts := account.NewService(store, account.DefaultConfig(), logger)
	if _, err := accounts.Register(context.Background(), account.Registration{
		Username: "alice", Password: "secret", Confirm: "secret",
	}); err != nil {
		t.Fatal(err)
	}

	a := NewApp(Config{
		Accounts:     accounts,
		Pets:         pets.NewService(petStore, logger),
		Appointments: appointments.NewService(store, logger),
		Donations:    donations.NewService(store, logger),
		Prefs:        p,
		Logger:       logger,
	})
	t.Cleanup(a.dispatcher.Close)
	return a
}

// deliverNext waits for the next task callback and runs it through Update,
// the way the bubbletea program would.
func deliverNext(t *testing.T, a *App) {
	t.Helper()
	msgs := make(chan tea.Msg, 1)
	go func() { msgs <- a.dispatcher.listen()() }()
	select {
	case msg := <-msgs:
		if _, ok := msg.(callbackMsg); !ok {
			t.Fatalf("got %T, want callbackMsg", msg)
		}
		a.Update(msg)
	case <-time.After(5 * time.Second):
		t.Fatal("no task callback delivered")
	}
}

// expectIdle fails if a callback arrives within d.
func expectIdle(t *testing.T, a *App, d time.Duration) {
	t.Helper()
	select {
	case fn := <-a.dispatcher.ch:
		fn()
		t.Fatal("unexpected task callback")
	case <-time.After(d):
	}
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func runeKey(r rune) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}} }

func login(t *testing.T, a *App, username, password string) {
	t.Helper()
	a.login.inputs[0].SetValue(username)
	a.login.inputs[1].SetValue(password)
	a.Update(key(tea.KeyEnter))
}

func TestLoginSuccessShowsGallery(t *testing.T) {
	p := &fakePrefs{}
	a, _ := newTestApp(t, p)

	login(t, a, "alice", "SECRET")
	if a.login.button.Enabled() {
		t.Fatal("login button enabled while the task runs")
	}
	if a.login.button.Label() != "SUBMITTING..." {
		t.Errorf("label = %q", a.login.button.Label())
	}

	deliverNext(t, a)
	if a.CurrentView() != ViewGallery {
		t.Fatalf("view = %v, want gallery", a.CurrentView())
	}
	if a.lastOutcome != account.Success || a.user != "alice" {
		t.Errorf("outcome %v user %q", a.lastOutcome, a.user)
	}
	if !a.login.button.Enabled() || a.login.button.Label() != "LOGIN" {
		t.Errorf("button not restored: %q enabled=%v", a.login.button.Label(), a.login.button.Enabled())
	}
	if a.login.value(1) != "" {
		t.Error("password left in the form")
	}
	if p.p.LastUsername != "alice" {
		t.Errorf("last username = %q", p.p.LastUsername)
	}

	// gallery load started by navigation
	deliverNext(t, a)
	if a.gallery == nil || a.gallery.Len() != 0 {
		t.Fatalf("gallery = %v", a.gallery)
	}
	if !strings.Contains(a.View(), "No pets yet") {
		t.Error("empty gallery not rendered")
	}
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		outcome  account.Outcome
		message  string
	}{
		{"wrong password", "alice", "nope", account.WrongPassword, "Incorrect password"},
		{"unknown user", "bob", "secret", account.WrongUsername, "Username not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestApp(t, nil)
			login(t, a, tt.username, tt.password)
			deliverNext(t, a)

			if a.CurrentView() != ViewLogin {
				t.Errorf("view = %v, want login", a.CurrentView())
			}
			if a.lastOutcome != tt.outcome {
				t.Errorf("outcome = %v, want %v", a.lastOutcome, tt.outcome)
			}
			if a.modal == nil || !a.modal.isErr || a.modal.body != tt.message {
				t.Fatalf("modal = %+v", a.modal)
			}
			if !a.login.button.Enabled() {
				t.Error("button still disabled")
			}

			a.Update(key(tea.KeyEnter))
			if a.modal != nil {
				t.Error("enter did not dismiss the modal")
			}
			if !a.login.button.Enabled() {
				t.Error("dismissing the modal submitted the form")
			}
		})
	}
}

func TestLoginStoreUnavailable(t *testing.T) {
	a, store := newTestApp(t, nil)
	store.SetOffline(true)

	login(t, a, "alice", "secret")
	deliverNext(t, a)

	if a.lastOutcome != account.DBError {
		t.Errorf("outcome = %v, want DB_ERROR", a.lastOutcome)
	}
	if a.modal == nil || !strings.HasPrefix(a.modal.body, "Database Error:") {
		t.Fatalf("modal = %+v", a.modal)
	}
	if a.CurrentView() != ViewLogin || !a.login.button.Enabled() {
		t.Error("login screen not restored")
	}
}

func TestSecondSubmitWhileRunningIsIgnored(t *testing.T) {
	a, store := newTestApp(t, nil)
	store.SetLatency(100 * time.Millisecond)

	login(t, a, "alice", "wrong")
	a.Update(key(tea.KeyEnter))
	a.Update(key(tea.KeyEnter))

	deliverNext(t, a)
	if a.modal == nil || a.modal.body != account.MsgIncorrectPassword {
		t.Fatalf("modal = %+v", a.modal)
	}
	expectIdle(t, a, 300*time.Millisecond)
}

func TestAdoptionRefreshesGallery(t *testing.T) {
	a, _ := newTestApp(t, nil)
	login(t, a, "alice", "secret")
	deliverNext(t, a)
	deliverNext(t, a)

	a.Update(runeKey('a'))
	if a.CurrentView() != ViewAdoption {
		t.Fatalf("view = %v", a.CurrentView())
	}
	for i, v := range []string{"Rex", "Male", "3", "Beagle", "vaccinated", "555-0100", "friendly", "owner moved", "", ""} {
		a.adoption.inputs[i].SetValue(v)
	}
	a.Update(key(tea.KeyEnter))

	deliverNext(t, a) // submission, whose refresh starts a gallery load
	if a.modal == nil || a.modal.isErr {
		t.Fatalf("modal = %+v", a.modal)
	}
	if a.adoption.value(0) != "" {
		t.Error("form not cleared")
	}
	if a.reloadGallery.Enabled() {
		t.Fatal("gallery refresh not started")
	}

	deliverNext(t, a)
	if a.gallery.Len() != 1 || a.gallery.Get(0).Name != "Rex" {
		t.Fatalf("gallery = %+v", a.gallery)
	}
	if a.counts[pets.StatusAvailable] != 1 {
		t.Errorf("counts = %v", a.counts)
	}
}

func TestAdoptionValidationError(t *testing.T) {
	a, _ := newTestApp(t, nil)
	a.view = ViewAdoption
	a.adoption.inputs[0].SetValue("Rex")
	a.Update(key(tea.KeyEnter))

	deliverNext(t, a)
	if a.modal == nil || !strings.HasPrefix(a.modal.body, "Please fill in:") {
		t.Fatalf("modal = %+v", a.modal)
	}
	if a.adoption.value(0) != "Rex" {
		t.Error("form cleared after a failed submission")
	}
	expectIdle(t, a, 100*time.Millisecond)
}

func TestTogglePasswordVisibility(t *testing.T) {
	p := &fakePrefs{saved: make(chan bool, 1)}
	a, _ := newTestApp(t, p)

	pw := a.login.passwords()[0]
	if pw.Visible() {
		t.Fatal("password visible by default")
	}

	_, cmd := a.Update(key(tea.KeyCtrlT))
	if !pw.Visible() {
		t.Fatal("ctrl+t did not reveal the password")
	}
	if cmd == nil {
		t.Fatal("visibility not persisted")
	}
	cmd()
	if got := <-p.saved; !got {
		t.Error("saved visibility = false")
	}

	a.Update(key(tea.KeyCtrlT))
	if pw.Visible() {
		t.Error("second ctrl+t did not mask the password")
	}
}

func TestPrefsPrefillUsername(t *testing.T) {
	p := &fakePrefs{p: prefs.Prefs{LastUsername: "alice", ShowPassword: true}}
	a, _ := newTestApp(t, p)

	if a.login.value(0) != "alice" {
		t.Errorf("username = %q", a.login.value(0))
	}
	if a.login.focus != 1 {
		t.Errorf("focus = %d, want password field", a.login.focus)
	}
	if !a.login.passwords()[0].Visible() {
		t.Error("show password preference ignored")
	}
}

func TestRegisterThenLogin(t *testing.T) {
	a, _ := newTestApp(t, nil)
	a.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	if a.CurrentView() != ViewRegister {
		t.Fatalf("view = %v", a.CurrentView())
	}
	for i, v := range []string{"bob", "Bob B", "bob@example.com", "hunter2", "hunter2"} {
		a.register.inputs[i].SetValue(v)
	}
	a.Update(key(tea.KeyEnter))
	deliverNext(t, a)

	if a.CurrentView() != ViewLogin || a.login.value(0) != "bob" {
		t.Fatalf("view = %v, username = %q", a.CurrentView(), a.login.value(0))
	}
	a.Update(key(tea.KeyEnter)) // dismiss welcome

	login(t, a, "bob", "hunter2")
	deliverNext(t, a)
	if a.CurrentView() != ViewGallery {
		t.Errorf("view = %v", a.CurrentView())
	}
}

func TestLogoutClearsSession(t *testing.T) {
	a, _ := newTestApp(t, nil)
	login(t, a, "alice", "secret")
	deliverNext(t, a)
	deliverNext(t, a)

	a.Update(runeKey('l'))
	if a.CurrentView() != ViewLogin || a.user != "" || a.gallery != nil {
		t.Errorf("view %v user %q gallery %v", a.CurrentView(), a.user, a.gallery)
	}
}

// gatedPets holds the first ListPets call open after it has read its rows.
type gatedPets struct {
	*memstore.Store
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedPets) ListPets(ctx context.Context) ([]database.Pet, error) {
	rows, err := g.Store.ListPets(ctx)
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.release
	}
	return rows, err
}

func fillAdoption(a *App, name string) {
	for i, v := range []string{name, "Male", "3", "Beagle", "vaccinated", "555-0100", "friendly", "owner moved", "", ""} {
		a.adoption.inputs[i].SetValue(v)
	}
}

func TestAdoptionDuringGalleryLoadIsNotLost(t *testing.T) {
	store, err := memstore.New()
	if err != nil {
		t.Fatal(err)
	}
	gated := &gatedPets{Store: store, entered: make(chan struct{}), release: make(chan struct{})}
	a := newAppOver(t, store, gated, nil)

	login(t, a, "alice", "secret")
	deliverNext(t, a)
	select {
	case <-gated.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("gallery load did not start")
	}

	// The load has read an empty table and is still running.
	a.Update(runeKey('a'))
	fillAdoption(a, "Rex")
	a.Update(key(tea.KeyEnter))
	deliverNext(t, a)
	if a.modal == nil || a.modal.isErr {
		t.Fatalf("modal = %+v", a.modal)
	}

	close(gated.release)
	deliverNext(t, a)
	if !a.galleryStale {
		t.Fatal("gallery read before the adoption marked fresh")
	}

	a.Update(key(tea.KeyEnter)) // dismiss
	a.Update(key(tea.KeyEsc))   // back to the gallery
	if a.CurrentView() != ViewGallery {
		t.Fatalf("view = %v", a.CurrentView())
	}
	deliverNext(t, a)
	if a.gallery.Len() != 1 || a.gallery.Get(0).Name != "Rex" {
		t.Fatalf("gallery len=%d, want Rex", a.gallery.Len())
	}
	if a.galleryStale {
		t.Error("gallery still stale after reload")
	}
}

func TestStaleGalleryLoadReloadsWhileVisible(t *testing.T) {
	store, err := memstore.New()
	if err != nil {
		t.Fatal(err)
	}
	gated := &gatedPets{Store: store, entered: make(chan struct{}), release: make(chan struct{})}
	a := newAppOver(t, store, gated, nil)

	login(t, a, "alice", "secret")
	deliverNext(t, a)
	<-gated.entered

	a.Update(runeKey('a'))
	fillAdoption(a, "Mochi")
	a.Update(key(tea.KeyEnter))
	deliverNext(t, a)
	a.Update(key(tea.KeyEnter))
	a.Update(key(tea.KeyEsc)) // gallery visible, old load still running

	close(gated.release)
	deliverNext(t, a) // old load, which starts another
	if a.reloadGallery.Enabled() {
		t.Fatal("no reload after a stale load")
	}
	deliverNext(t, a)
	if a.gallery.Len() != 1 || a.gallery.Get(0).Name != "Mochi" {
		t.Fatalf("gallery len=%d", a.gallery.Len())
	}
}

func TestPetDetails(t *testing.T) {
	a, _ := newTestApp(t, nil)
	login(t, a, "alice", "secret")
	deliverNext(t, a)
	deliverNext(t, a)

	a.Update(runeKey('a'))
	fillAdoption(a, "Rex")
	a.Update(key(tea.KeyEnter))
	deliverNext(t, a)
	deliverNext(t, a)
	a.Update(key(tea.KeyEnter))
	a.Update(key(tea.KeyEsc))

	a.Update(key(tea.KeyEnter))
	deliverNext(t, a)
	if a.modal == nil || a.modal.title != "Rex" || !strings.Contains(a.modal.body, "Beagle") {
		t.Fatalf("modal = %+v", a.modal)
	}
	if !strings.Contains(a.modal.body, "555-0100") {
		t.Errorf("contact missing: %q", a.modal.body)
	}
}

func TestPasswordReset(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		confirm  string
		lookup   string // error message of the lookup phase
		reset    string // error message of the reset phase
	}{
		{name: "success", username: "alice", password: "newpass", confirm: "newpass"},
		{name: "unknown user", username: "bob", lookup: account.MsgUsernameNotFound},
		{name: "mismatch", username: "alice", password: "newpass", confirm: "other", reset: account.MsgPasswordMismatch},
		{name: "too short", username: "alice", password: "ab", confirm: "ab", reset: "Password must be at least 4 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestApp(t, nil)
			a.Update(key(tea.KeyCtrlR))
			if a.CurrentView() != ViewReset {
				t.Fatalf("view = %v", a.CurrentView())
			}

			a.reset.inputs[0].SetValue(tt.username)
			a.Update(key(tea.KeyEnter))
			deliverNext(t, a)
			if tt.lookup != "" {
				if a.modal == nil || a.modal.body != tt.lookup || a.resetUser != "" {
					t.Fatalf("modal = %+v, resetUser = %q", a.modal, a.resetUser)
				}
				if a.reset.button.Label() != "CONTINUE" {
					t.Errorf("label = %q", a.reset.button.Label())
				}
				return
			}
			if a.resetUser != tt.username || a.reset.button.Label() != "RESET" || a.reset.focus != 1 {
				t.Fatalf("lookup: resetUser %q label %q focus %d", a.resetUser, a.reset.button.Label(), a.reset.focus)
			}

			a.reset.inputs[1].SetValue(tt.password)
			a.reset.inputs[2].SetValue(tt.confirm)
			a.Update(key(tea.KeyEnter))
			deliverNext(t, a)
			if tt.reset != "" {
				if a.modal == nil || !a.modal.isErr || a.modal.body != tt.reset {
					t.Fatalf("modal = %+v", a.modal)
				}
				if a.CurrentView() != ViewReset || a.resetUser != tt.username {
					t.Errorf("view %v resetUser %q", a.CurrentView(), a.resetUser)
				}
				return
			}

			if a.CurrentView() != ViewLogin || a.login.value(0) != tt.username {
				t.Fatalf("view %v username %q", a.CurrentView(), a.login.value(0))
			}
			a.Update(key(tea.KeyEnter))
			login(t, a, tt.username, tt.password)
			deliverNext(t, a)
			if a.CurrentView() != ViewGallery {
				t.Errorf("login with the new password: view = %v", a.CurrentView())
			}
		})
	}
}

func TestResetRevisitKeepsBusyLabel(t *testing.T) {
	a, store := newTestApp(t, nil)
	store.SetLatency(100 * time.Millisecond)

	a.Update(key(tea.KeyCtrlR))
	a.reset.inputs[0].SetValue("alice")
	a.Update(key(tea.KeyEnter))
	a.Update(key(tea.KeyEsc))
	a.Update(key(tea.KeyCtrlR))

	if a.reset.button.Enabled() || a.reset.button.Label() != "SUBMITTING..." {
		t.Fatalf("label = %q enabled=%v", a.reset.button.Label(), a.reset.button.Enabled())
	}
	deliverNext(t, a)
	if a.resetUser != "alice" || a.reset.button.Label() != "RESET" {
		t.Errorf("resetUser %q label %q", a.resetUser, a.reset.button.Label())
	}
}

func TestScheduleAppointment(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		errMsg string // prefix of the modal message on failure
	}{
		{"booked", []string{"Rex", "Ann", "Dr. Vega", "checkup", "2099-01-01 10:00"}, ""},
		{"past", []string{"Rex", "Ann", "Dr. Vega", "checkup", "2001-01-01 10:00"}, "Appointment time 2001-01-01 10:00 is in the past"},
		{"bad date", []string{"Rex", "Ann", "Dr. Vega", "checkup", "tomorrow"}, "Date must look like"},
		{"missing vet", []string{"Rex", "Ann", "", "checkup", "2099-01-01 10:00"}, "Pet, owner and vet are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestApp(t, nil)
			a.navigate(ViewAppointments)
			deliverNext(t, a)
			if len(a.upcoming) != 0 {
				t.Fatalf("upcoming = %v", a.upcoming)
			}

			for i, v := range tt.values {
				a.appointment.inputs[i].SetValue(v)
			}
			a.Update(key(tea.KeyEnter))
			deliverNext(t, a)

			if tt.errMsg != "" {
				if a.modal == nil || !a.modal.isErr || !strings.HasPrefix(a.modal.body, tt.errMsg) {
					t.Fatalf("modal = %+v", a.modal)
				}
				if a.appointment.value(0) != "Rex" {
					t.Error("form cleared after a failure")
				}
				expectIdle(t, a, 100*time.Millisecond)
				return
			}

			if a.modal == nil || a.modal.isErr {
				t.Fatalf("modal = %+v", a.modal)
			}
			if a.reloadAppointments.Enabled() {
				t.Fatal("appointments refresh not started")
			}
			deliverNext(t, a)
			if len(a.upcoming) != 1 || a.upcoming[0][0] != "2099-01-01 10:00" || a.upcoming[0][1] != "Rex" {
				t.Errorf("upcoming = %v", a.upcoming)
			}
		})
	}
}

func TestRecordDonation(t *testing.T) {
	tests := []struct {
		name   string
		donor  string
		amount string
		errMsg string
	}{
		{"recorded", "Ann", "12.50", ""},
		{"not a number", "Ann", "abc", `Amount "abc" is not a number`},
		{"negative", "Ann", "-5", "Amount must be positive"},
		{"zero", "Ann", "0", "Amount must be positive"},
		{"no donor", "", "5", "Donor is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestApp(t, nil)
			a.navigate(ViewDonations)
			deliverNext(t, a)

			a.donation.inputs[0].SetValue(tt.donor)
			a.donation.inputs[1].SetValue(tt.amount)
			a.donation.inputs[2].SetValue("for food")
			a.Update(key(tea.KeyEnter))
			deliverNext(t, a)

			if tt.errMsg != "" {
				if a.modal == nil || !a.modal.isErr || a.modal.body != tt.errMsg {
					t.Fatalf("modal = %+v", a.modal)
				}
				expectIdle(t, a, 100*time.Millisecond)
				return
			}

			if a.modal == nil || !strings.Contains(a.modal.body, "$12.50 from Ann") {
				t.Fatalf("modal = %+v", a.modal)
			}
			deliverNext(t, a) // refresh
			if len(a.donationList) != 1 || a.donationTotal != 1250 {
				t.Errorf("list %v total %d", a.donationList, a.donationTotal)
			}
			a.Update(key(tea.KeyEnter))
			if !strings.Contains(a.View(), "$12.50") {
				t.Error("donation total not rendered")
			}
		})
	}
}
