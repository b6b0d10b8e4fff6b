package tui

import (
	"context"
	"fmt"

	"github.com/benbjohnson/immutable"

	"github.com/pawtrack/pawtrack/account"
	"github.com/pawtrack/pawtrack/appointments"
	"github.com/pawtrack/pawtrack/database"
	"github.com/pawtrack/pawtrack/donations"
	"github.com/pawtrack/pawtrack/pets"
	"github.com/pawtrack/pawtrack/task"
)

// Each submit* method runs on the UI goroutine. It copies form values,
// hands the blocking part to the task runner and handles the result in the
// Done callback, which is back on the UI goroutine.

func (a *App) submitLogin() {
	username := a.login.value(0)
	password := a.login.value(1)
	accounts, store, logger := a.cfg.Accounts, a.cfg.Prefs, a.logger

	task.Submit(a.runner, task.Spec[account.LoginResult]{
		Name:    "login",
		Control: a.login.button,
		Op: func(ctx context.Context) (account.LoginResult, error) {
			res, err := accounts.Login(ctx, username, password)
			if err == nil && res.Outcome == account.Success && store != nil {
				if perr := store.SetLastUsername(res.Username); perr != nil {
					logger.WithError(perr).Warn("could not save last username")
				}
			}
			return res, err
		},
		Done: func(r task.Result[account.LoginResult]) {
			if !r.OK() {
				a.lastOutcome = account.DBError
				a.showError(r.Message())
				return
			}
			a.lastOutcome = r.Value.Outcome
			if r.Value.Outcome != account.Success {
				a.showError(r.Value.Message)
				return
			}
			for _, pw := range a.login.passwords() {
				pw.SetValue("")
			}
			a.user = r.Value.Username
			a.navigate(ViewGallery)
		},
		OnFault: a.showError,
	})
}

func (a *App) submitRegister() {
	reg := account.Registration{
		Username: a.register.value(0),
		FullName: a.register.value(1),
		Email:    a.register.value(2),
		Password: a.register.value(3),
		Confirm:  a.register.value(4),
	}
	accounts := a.cfg.Accounts

	task.Submit(a.runner, task.Spec[*database.Account]{
		Name:    "register",
		Control: a.register.button,
		Op: func(ctx context.Context) (*database.Account, error) {
			return accounts.Register(ctx, reg)
		},
		Done: func(r task.Result[*database.Account]) {
			if !r.OK() {
				a.showError(r.Message())
				return
			}
			a.register.clear()
			a.login.inputs[0].SetValue(r.Value.Username)
			a.navigate(ViewLogin)
			a.login.setFocus(1)
			a.showInfo("Welcome", fmt.Sprintf("Account %s created. You can log in now.", r.Value.Username))
		},
		OnFault: a.showError,
	})
}

func (a *App) submitResetLookup() {
	username := a.reset.value(0)
	accounts := a.cfg.Accounts

	task.Submit(a.runner, task.Spec[string]{
		Name:    "reset-lookup",
		Control: a.reset.button,
		Op: func(ctx context.Context) (string, error) {
			return accounts.LookupForReset(ctx, username)
		},
		Done: func(r task.Result[string]) {
			if !r.OK() {
				a.showError(r.Message())
				return
			}
			a.resetUser = r.Value
			a.reset.button.SetLabel("RESET")
			a.reset.setFocus(1)
		},
		OnFault: a.showError,
	})
}

func (a *App) submitReset() {
	username := a.resetUser
	password, confirm := a.reset.value(1), a.reset.value(2)
	accounts := a.cfg.Accounts

	task.Submit(a.runner, task.Spec[struct{}]{
		Name:    "reset-password",
		Control: a.reset.button,
		Op: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, accounts.ResetPassword(ctx, username, password, confirm)
		},
		Done: func(r task.Result[struct{}]) {
			if !r.OK() {
				a.showError(r.Message())
				return
			}
			a.reset.clear()
			a.login.inputs[0].SetValue(username)
			a.navigate(ViewLogin)
			a.login.setFocus(1)
			a.showInfo("Password changed", "Log in with your new password.")
		},
		OnFault: a.showError,
	})
}

type galleryData struct {
	list   *immutable.List[pets.Summary]
	counts map[pets.Status]int
}

func (a *App) loadGallery() {
	svc := a.cfg.Pets
	gen := a.galleryGen
	task.Submit(a.runner, task.Spec[galleryData]{
		Name:      "gallery",
		Control:   a.reloadGallery,
		BusyLabel: "LOADING...",
		Op: func(ctx context.Context) (galleryData, error) {
			list, err := svc.Gallery(ctx)
			if err != nil {
				return galleryData{}, err
			}
			counts, err := svc.Counts(ctx)
			if err != nil {
				return galleryData{}, err
			}
			return galleryData{list: list, counts: counts}, nil
		},
		Done: func(r task.Result[galleryData]) {
			if !r.OK() {
				a.showError(r.Message())
				return
			}
			a.gallery = r.Value.list
			a.counts = r.Value.counts
			if a.cursor >= a.gallery.Len() {
				a.cursor = max(a.gallery.Len()-1, 0)
			}
			// An adoption stored after this load started may be missing.
			a.galleryStale = a.galleryGen != gen
			if a.galleryStale && a.view == ViewGallery {
				a.loadGallery()
			}
		},
		OnFault: a.showError,
	})
}

func (a *App) submitAdoption() {
	f := a.adoption
	in := pets.Intake{
		Name:      f.value(0),
		Gender:    f.value(1),
		Age:       f.value(2),
		Breed:     f.value(3),
		Health:    f.value(4),
		Contact:   f.value(5),
		Traits:    f.value(6),
		Reason:    f.value(7),
		Status:    f.value(8),
		ImagePath: f.value(9),
	}
	svc := a.cfg.Pets

	task.Submit(a.runner, task.Spec[database.Pet]{
		Name:    "adoption",
		Control: f.button,
		Op: func(ctx context.Context) (database.Pet, error) {
			return svc.Submit(ctx, in)
		},
		Done: func(r task.Result[database.Pet]) {
			if !r.OK() {
				a.showError(r.Message())
				return
			}
			f.clear()
			a.galleryStale = true
			a.galleryGen++
			msg := fmt.Sprintf("%s was added to the gallery.", r.Value.Name)
			if n := len(r.Value.Image); n > 0 {
				msg += fmt.Sprintf(" Photo: %s.", FormatBytes(int64(n)))
			}
			a.showInfo("Adoption submitted", msg)
		},
		Refresh: a.loadGallery,
		OnFault: a.showError,
	})
}

// showPetDetails loads the selected pet, photo included, and shows it.
func (a *App) showPetDetails() {
	if a.gallery == nil || a.cursor >= a.gallery.Len() {
		return
	}
	id := a.gallery.Get(a.cursor).ID
	svc := a.cfg.Pets

	task.Submit(a.runner, task.Spec[*database.Pet]{
		Name:      "pet-details",
		Control:   a.reloadGallery,
		BusyLabel: "LOADING...",
		Op: func(ctx context.Context) (*database.Pet, error) {
			return svc.Get(ctx, id)
		},
		Done: func(r task.Result[*database.Pet]) {
			if !r.OK() {
				a.showError(r.Message())
				return
			}
			p := r.Value
			body := pets.Describe(*p) +
				"\n\nHealth:  " + p.Health +
				"\nTraits:  " + p.Traits +
				"\nReason:  " + p.Reason +
				"\nContact: " + p.Contact
			if len(p.Image) > 0 {
				body += "\nPhoto:   " + FormatBytes(int64(len(p.Image)))
			}
			a.showInfo(p.Name, body)
		},
		OnFault: a.showError,
	})
}

func (a *App) loadAppointments() {
	svc := a.cfg.Appointments
	task.Submit(a.runner, task.Spec[[][]string]{
		Name:      "appointments",
		Control:   a.reloadAppointments,
		BusyLabel: "LOADING...",
		Op: func(ctx context.Context) ([][]string, error) {
			list, err := svc.Upcoming(ctx)
			if err != nil {
				return nil, err
			}
			rows := make([][]string, 0, len(list))
			for _, ap := range list {
				rows = append(rows, svc.Row(ap))
			}
			return rows, nil
		},
		Done: func(r task.Result[[][]string]) {
			if !r.OK() {
				a.showError(r.Message())
				return
			}
			a.upcoming = r.Value
		},
		OnFault: a.showError,
	})
}

func (a *App) submitAppointment() {
	f := a.appointment
	req := appointments.Request{
		PetName: f.value(0),
		Owner:   f.value(1),
		Vet:     f.value(2),
		Reason:  f.value(3),
		When:    f.value(4),
	}
	svc := a.cfg.Appointments

	task.Submit(a.runner, task.Spec[database.Appointment]{
		Name:    "schedule",
		Control: f.button,
		Op: func(ctx context.Context) (database.Appointment, error) {
			return svc.Schedule(ctx, req)
		},
		Done: func(r task.Result[database.Appointment]) {
			if !r.OK() {
				a.showError(r.Message())
				return
			}
			f.clear()
			a.showInfo("Appointment booked", fmt.Sprintf("%s with %s on %s.",
				r.Value.PetName, r.Value.Vet, svc.Row(r.Value)[0]))
		},
		Refresh: a.loadAppointments,
		OnFault: a.showError,
	})
}

type donationData struct {
	list  []database.Donation
	total int64
}

func (a *App) loadDonations() {
	svc := a.cfg.Donations
	task.Submit(a.runner, task.Spec[donationData]{
		Name:      "donations",
		Control:   a.reloadDonations,
		BusyLabel: "LOADING...",
		Op: func(ctx context.Context) (donationData, error) {
			list, err := svc.List(ctx)
			if err != nil {
				return donationData{}, err
			}
			total, err := svc.Total(ctx)
			if err != nil {
				return donationData{}, err
			}
			return donationData{list: list, total: total}, nil
		},
		Done: func(r task.Result[donationData]) {
			if !r.OK() {
				a.showError(r.Message())
				return
			}
			a.donationList = r.Value.list
			a.donationTotal = r.Value.total
		},
		OnFault: a.showError,
	})
}

func (a *App) submitDonation() {
	f := a.donation
	donor, amount, note := f.value(0), f.value(1), f.value(2)
	svc := a.cfg.Donations

	task.Submit(a.runner, task.Spec[database.Donation]{
		Name:    "donate",
		Control: f.button,
		Op: func(ctx context.Context) (database.Donation, error) {
			return svc.Record(ctx, donor, amount, note)
		},
		Done: func(r task.Result[database.Donation]) {
			if !r.OK() {
				a.showError(r.Message())
				return
			}
			f.clear()
			a.showInfo("Thank you", fmt.Sprintf("%s from %s recorded.",
				donations.FormatCents(r.Value.AmountCents), r.Value.Donor))
		},
		Refresh: a.loadDonations,
		OnFault: a.showError,
	})
}
