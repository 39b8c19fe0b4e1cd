// Package interactive provides the survey menus of interactive mode.
package interactive

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
)

const exitChoice = "Exit"

// MenuOption is a menu item and the action it runs.
type MenuOption struct {
	Name        string
	Description string
	Action      func() error
}

var (
	// ErrExit is returned when the user leaves a menu.
	ErrExit = errors.New("exit")
	// ErrInvalidSelection is returned when the answer matches no option.
	ErrInvalidSelection = errors.New("invalid selection")
)

func menuChoices(options []MenuOption) ([]string, map[string]MenuOption) {
	choices := make([]string, 0, len(options)+1)
	byChoice := make(map[string]MenuOption, len(options))

	for _, opt := range options {
		choice := fmt.Sprintf("%s - %s", opt.Name, opt.Description)
		choices = append(choices, choice)
		byChoice[choice] = opt
	}

	return append(choices, exitChoice), byChoice
}

// ShowMenu asks for one of options and runs its action.
func ShowMenu(message string, options []MenuOption) error {
	choices, byChoice := menuChoices(options)

	var selected string
	if err := survey.AskOne(&survey.Select{Message: message, Options: choices}, &selected); err != nil {
		return ErrExit
	}

	return dispatch(selected, byChoice)
}

func dispatch(selected string, byChoice map[string]MenuOption) error {
	if selected == exitChoice {
		return ErrExit
	}

	if opt, ok := byChoice[selected]; ok {
		return opt.Action()
	}

	return ErrInvalidSelection
}

// SelectFromList asks for one of items.
func SelectFromList(message string, items []string) (string, error) {
	var selected string
	if err := survey.AskOne(&survey.Select{Message: message, Options: items}, &selected); err != nil {
		return "", fmt.Errorf("selecting: %w", err)
	}

	return selected, nil
}

// MultiSelect asks for any number of items. No selection means all.
func MultiSelect(message string, items []string) ([]string, error) {
	var selected []string
	if err := survey.AskOne(&survey.MultiSelect{Message: message, Options: items}, &selected); err != nil {
		return nil, fmt.Errorf("selecting: %w", err)
	}

	return selected, nil
}

// Input asks for a line of free text.
func Input(message, def string) (string, error) {
	answer := def
	if err := survey.AskOne(&survey.Input{Message: message, Default: def}, &answer); err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}

	return answer, nil
}

// PauseForEnter waits for the user to press Enter.
func PauseForEnter() {
	fmt.Println("\nPress Enter to continue...")
	_, _ = fmt.Scanln()
}

// Confirm asks a yes/no question. It defaults to no.
func Confirm(message string) bool {
	confirmed := false
	_ = survey.AskOne(&survey.Confirm{Message: message}, &confirmed)

	return confirmed
}
