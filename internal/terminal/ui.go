package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Colors for terminal output.
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Dim     = "\033[2m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
)

// Output is where every helper in this package writes.
var Output io.Writer = os.Stdout

// Spinner provides a terminal spinner for long-running operations.
type Spinner struct {
	mu      sync.Mutex
	message string
	running bool
	done    chan struct{}
	stopped chan struct{}
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewSpinner creates a new spinner.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			s.mu.Lock()
			msg := s.message
			s.mu.Unlock()
			fmt.Fprintf(Output, "\r%s%s %s%s", Cyan, spinnerFrames[i%len(spinnerFrames)], msg, Reset)

			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Update changes the spinner message.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Stop stops the spinner and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.done)
	<-s.stopped
	fmt.Fprintf(Output, "\r%s\r", strings.Repeat(" ", 80))
}

// StopWithSuccess stops the spinner and prints msg as a success line.
func (s *Spinner) StopWithSuccess(msg string) {
	s.Stop()
	Success(msg)
}

// UI helper functions.

// Success prints a green success message.
func Success(msg string) {
	fmt.Fprintf(Output, "%s%s✓%s %s\n", Bold, Green, Reset, msg)
}

// Error prints a red error message.
func Error(msg string) {
	fmt.Fprintf(Output, "%s%s✗%s %s\n", Bold, Red, Reset, msg)
}

// Info prints a blue info message.
func Info(msg string) {
	fmt.Fprintf(Output, "%s%si%s %s\n", Bold, Blue, Reset, msg)
}

// Warning prints a yellow warning message.
func Warning(msg string) {
	fmt.Fprintf(Output, "%s%s!%s %s\n", Bold, Yellow, Reset, msg)
}

// Header prints a bold header.
func Header(msg string) {
	fmt.Fprintf(Output, "\n%s%s%s\n", Bold, msg, Reset)
}

// Detail prints an indented detail line.
func Detail(label, value string) {
	fmt.Fprintf(Output, "  %s%s:%s %s\n", Dim, label, Reset, value)
}

// Divider prints a horizontal line.
func Divider() {
	fmt.Fprintf(Output, "%s%s%s\n", Dim, strings.Repeat("─", 60), Reset)
}

// Banner prints the welcome box with the given version.
func Banner(version string) {
	fmt.Fprintln(Output)
	fmt.Fprintf(Output, "  %s╭─────────────────────────────────╮%s\n", Dim, Reset)
	fmt.Fprintf(Output, "  %s│%s  SubMint %s%-23s%s%s│%s\n", Dim, Reset, Bold, "v"+version, Reset, Dim, Reset)
	fmt.Fprintf(Output, "  %s│%s  Subscription NFTs on Solana    %s│%s\n", Dim, Reset, Dim, Reset)
	fmt.Fprintf(Output, "  %s╰─────────────────────────────────╯%s\n", Dim, Reset)
	fmt.Fprintln(Output)
}

// WalletStatus prints the burner wallet line shown by serve and wallet show.
// A negative balance means it could not be read.
func WalletStatus(address string, sol float64, network string) {
	balance := Yellow + "unknown" + Reset
	switch {
	case sol >= 0.5:
		balance = fmt.Sprintf("%s%.4f SOL%s", Green, sol, Reset)
	case sol >= 0:
		balance = fmt.Sprintf("%s%.4f SOL%s", Yellow, sol, Reset)
	}
	fmt.Fprintf(Output, "  %sWallet:%s %s (%s) on %s\n", Dim, Reset, address, balance, network)
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// Table renders rows under headers with a rounded border.
func Table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Faint(true)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(Output, t.Render())
}

// Mark renders a check or cross.
func Mark(ok bool) string {
	if ok {
		return Green + "✓" + Reset
	}
	return Red + "✗" + Reset
}
