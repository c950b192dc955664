package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
)

// wizardAnswers are the values collected by the init wizard.
type wizardAnswers struct {
	PluginPath string
	Action     string
	Columns    string
	Rows       string
	FillKeys   bool
}

func runWizard() (*Layout, error) {
	a := wizardAnswers{Columns: "5", Rows: "3", FillKeys: true}

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Plugin binary").
				Description("Path to the plugin executable").
				Value(&a.PluginPath).
				Validate(required),
			huh.NewInput().
				Title("Action UUID").
				Description("Bound to the keys created below").
				Placeholder("com.example.plugin.action").
				Value(&a.Action).
				Validate(required),
		),
		huh.NewGroup(
			huh.NewInput().Title("Columns").Value(&a.Columns).Validate(positive),
			huh.NewInput().Title("Rows").Value(&a.Rows).Validate(positive),
			huh.NewConfirm().Title("Bind the action to every key?").Value(&a.FillKeys),
		),
	).Run(); err != nil {
		return nil, err
	}

	return a.layout()
}

// layout turns the answers into a validated layout. With FillKeys unset
// only the top-left key is bound.
func (a wizardAnswers) layout() (*Layout, error) {
	cols, err := strconv.Atoi(a.Columns)
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	rows, err := strconv.Atoi(a.Rows)
	if err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	l := &Layout{
		Plugin: PluginSpec{Path: a.PluginPath},
		Device: DeviceSpec{Columns: cols, Rows: rows},
	}

	for r := range rows {
		for c := range cols {
			if !a.FillKeys && (r > 0 || c > 0) {
				break
			}
			l.Keys = append(l.Keys, Slot{Action: a.Action, Column: c, Row: r})
		}
	}

	l.fill()

	if err := l.Validate(); err != nil {
		return nil, err
	}

	return l, nil
}

func required(s string) error {
	if s == "" {
		return fmt.Errorf("required")
	}

	return nil
}

func positive(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive number")
	}

	return nil
}
