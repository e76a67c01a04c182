package cli

import "errors"

// ErrPromptCancelled indicates that the user aborted an interactive prompt.
var ErrPromptCancelled = errors.New("prompt cancelled")

// Prompter asks the user for input. Commands only talk to the terminal
// through it so tests can script the answers.
type Prompter interface {
	// Select returns the index and value of the chosen item.
	Select(label string, items []string, defaultValue string) (int, string, error)
	// Prompt reads a line of text. Pressing enter keeps defaultValue.
	Prompt(label string, defaultValue string) (string, error)
	Confirm(label string, defaultYes bool) (bool, error)
}
