package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// Logo printed at the top of interactive commands
const Logo = `
  ╔══════════════════════════════════════════════╗
  ║  twdataset · topic dataset collector          ║
  ╚══════════════════════════════════════════════╝
`

// Color functions for terminal output
var (
	Cyan    = color.New(color.FgCyan).SprintFunc()
	Yellow  = color.New(color.FgYellow).SprintFunc()
	Red     = color.New(color.FgRed).SprintFunc()
	Green   = color.New(color.FgGreen).SprintFunc()
	Magenta = color.New(color.FgMagenta).SprintFunc()
	Dim     = color.New(color.Faint).SprintFunc()
)

var (
	mu        sync.Mutex
	out       io.Writer = os.Stdout
	quietMode bool
)

// SetOutput redirects all terminal output, mainly for tests
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetQuietMode suppresses everything but errors
func SetQuietMode(quiet bool) {
	mu.Lock()
	defer mu.Unlock()
	quietMode = quiet
}

// DisableColor turns colored output off
func DisableColor() {
	color.NoColor = true
}

func printf(force bool, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if quietMode && !force {
		return
	}
	fmt.Fprintf(out, format, args...)
}

// PrintLogo prints the banner
func PrintLogo() {
	printf(false, "%s", Cyan(Logo))
}

// PrintError prints an error message in red. Errors ignore quiet mode.
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		printf(true, "%s\n", Red(msg+": "+fmt.Sprintf("%v", args[0])))
		return
	}
	printf(true, "%s\n", Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	printf(false, "%s\n", Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	printf(false, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		printf(false, "%s\n", Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
		return
	}
	printf(false, "%s\n", Yellow(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	printf(false, "%s\n", Magenta(msg))
}
