package prompt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formembed/pkg/builder"
	"github.com/goliatone/go-formembed/pkg/form"
	"github.com/goliatone/go-formembed/pkg/style"
)

// ErrNoForms is returned by SelectForm when there is nothing to choose.
var ErrNoForms = errors.New("prompt: no forms to choose from")

// NameSource asks for the display name of new forms.
type NameSource struct {
	Driver Driver
}

var _ builder.NameSource = NameSource{}

// RequestName implements builder.NameSource. The suggestion is offered as the
// default answer.
func (n NameSource) RequestName(ctx context.Context, suggestion string) (string, error) {
	name, err := n.Driver.Input(ctx, InputConfig{
		Message:   "Form name",
		Default:   suggestion,
		Help:      "The id and path are derived from the name and cannot change later.",
		Validator: validateName,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(name), nil
}

func validateName(value string) error {
	if form.DeriveID(value) == "" {
		return form.ErrNameRequired
	}
	return nil
}

// SelectForm lets the user pick one of records.
func SelectForm(ctx context.Context, driver Driver, records []form.Record) (form.Record, error) {
	if len(records) == 0 {
		return form.Record{}, ErrNoForms
	}
	options := make([]string, len(records))
	for i, record := range records {
		options[i] = fmt.Sprintf("%s (%s, %s)", record.Name, record.ID, record.Status)
	}
	idx, err := driver.Select(ctx, SelectConfig{
		Message:  "Form",
		Options:  options,
		PageSize: 10,
	})
	if err != nil {
		return form.Record{}, err
	}
	if idx < 0 || idx >= len(records) {
		return form.Record{}, fmt.Errorf("prompt: invalid selection %d", idx)
	}
	return records[idx], nil
}

// EditStyle walks through the style options starting from current.
func EditStyle(ctx context.Context, driver Driver, current style.Configuration) (style.Configuration, error) {
	cfg := current.Normalize()

	modes := style.WidthModes()
	options := make([]string, len(modes))
	defaultIdx := 0
	for i, mode := range modes {
		options[i] = string(mode)
		if mode == cfg.WidthMode {
			defaultIdx = i
		}
	}
	idx, err := driver.Select(ctx, SelectConfig{
		Message:      "Width",
		Options:      options,
		DefaultIndex: defaultIdx,
	})
	if err != nil {
		return current, err
	}
	if idx >= 0 && idx < len(modes) {
		cfg.WidthMode = modes[idx]
	}

	if cfg.WidthMode.Responsive() {
		raw, err := driver.Input(ctx, InputConfig{
			Message:   "Responsive breakpoint (px)",
			Default:   strconv.Itoa(cfg.BreakpointPx),
			Validator: validateBreakpoint,
		})
		if err != nil {
			return current, err
		}
		if px, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			cfg.BreakpointPx = px
		}
	}

	if cfg.ShowTitle, err = driver.Confirm(ctx, ConfirmConfig{
		Message: "Show form title",
		Default: cfg.ShowTitle,
	}); err != nil {
		return current, err
	}

	if cfg.CustomStyle, err = driver.TextArea(ctx, TextAreaConfig{
		Message: "Custom CSS",
		Default: cfg.CustomStyle,
		Help:    "Inserted verbatim after the container rule.",
	}); err != nil {
		return current, err
	}

	return cfg, cfg.Validate()
}

func validateBreakpoint(value string) error {
	px, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || px <= 0 {
		return fmt.Errorf("breakpoint must be a positive number of pixels")
	}
	return nil
}
