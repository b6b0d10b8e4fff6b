package tui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/immutable"

	"github.com/pawtrack/pawtrack/database"
	"github.com/pawtrack/pawtrack/pets"
)

// CLIPrinter renders command output without the full TUI.
type CLIPrinter struct {
	mu sync.Mutex
	w  io.Writer

	quiet  bool
	styles *Styles

	startTime time.Time
}

// NewCLIPrinter creates a printer writing to stdout.
func NewCLIPrinter(quiet, noColor bool) *CLIPrinter {
	p := &CLIPrinter{
		w:         os.Stdout,
		quiet:     quiet,
		styles:    DefaultStyles(),
		startTime: time.Now(),
	}
	if noColor {
		p.styles = PlainStyles()
	}
	return p
}

// SetWriter sets the output writer
func (p *CLIPrinter) SetWriter(w io.Writer) {
	p.w = w
}

// PrintHeader prints the command banner and the store it talks to.
func (p *CLIPrinter) PrintHeader(command, target string) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.w, p.styles.Title.Render(SymbolPaw+" PawTrack "+command))
	fmt.Fprintf(p.w, "  %s %s\n\n", p.styles.Muted.Render("Store:"), target)
}

// PrintStart announces a background operation.
func (p *CLIPrinter) PrintStart(what string) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s %s...\n", p.styles.Info.Render(SymbolInProgress), what)
}

// PrintPets prints the gallery. It prints even in quiet mode, since the
// listing is the command's result.
func (p *CLIPrinter) PrintPets(list *immutable.List[pets.Summary], counts map[pets.Status]int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprint(p.w, RenderPetsTable(list, -1, p.styles))
	if len(counts) > 0 && !p.quiet {
		fmt.Fprintln(p.w)
		for _, st := range []pets.Status{pets.StatusAvailable, pets.StatusInFoster, pets.StatusAdopted, pets.StatusUnknown} {
			if n, ok := counts[st]; ok {
				fmt.Fprintf(p.w, "  %s %-10s %d\n", p.styles.StatusIcon(st), st.Label(), n)
			}
		}
	}
}

// PrintAccount confirms an account creation and how its password is stored.
func (p *CLIPrinter) PrintAccount(acc *database.Account, mode string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s Account %s created (id %s, %s password)\n",
		p.styles.Success.Render(SymbolSuccess), acc.Username, acc.ID, mode)
}

// PrintError prints a user-facing failure message.
func (p *CLIPrinter) PrintError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s %s\n", p.styles.Error.Render(SymbolError), msg)
}

// PrintSummary prints the closing line with the elapsed time.
func (p *CLIPrinter) PrintSummary(ok bool, what string) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := FormatDuration(time.Since(p.startTime))
	if ok {
		fmt.Fprintf(p.w, "\n%s %s (%s)\n", p.styles.Success.Render(SymbolSuccess), what, elapsed)
	} else {
		fmt.Fprintf(p.w, "\n%s %s failed (%s)\n", p.styles.Error.Render(SymbolError), what, elapsed)
	}
}
