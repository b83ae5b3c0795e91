// Package approval asks the operator before a command replaces an existing
// artifact.
package approval

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

type Result struct {
	Approved   bool
	UserAction string
}

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Overwrite asks whether path may be replaced. Non-interactive sessions are
// approved so scripted regeneration keeps working.
func Overwrite(path string) Result {
	if !IsInteractive() {
		return Result{Approved: true, UserAction: "auto_approve_non_interactive"}
	}
	return Ask(os.Stdin, os.Stderr, fmt.Sprintf("%s already exists. Overwrite?", path))
}

// Ask prompts on out until in yields a yes or no answer.
func Ask(in io.Reader, out io.Writer, question string) Result {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprintf(out, "%s [y/n]: ", question)
		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			return Result{Approved: false, UserAction: "error_reading_input"}
		}

		switch strings.TrimSpace(strings.ToLower(input)) {
		case "y", "yes":
			return Result{Approved: true, UserAction: "approve"}
		case "n", "no":
			return Result{Approved: false, UserAction: "deny"}
		default:
			if err != nil {
				return Result{Approved: false, UserAction: "error_reading_input"}
			}
			fmt.Fprintln(out, "Invalid input. Please enter 'y' or 'n'.")
		}
	}
}
