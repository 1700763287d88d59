package main

import (
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"golang.org/x/xerrors"

	"github.com/astromechza/pizza-relay/pkg/pizza"
)

func validSlices(ans interface{}) error {
	s, _ := ans.(string)
	n, err := strconv.Atoi(s)
	if err != nil {
		return xerrors.Errorf("%q is not a number", s)
	}
	if n < 0 {
		return xerrors.New("slices can't be negative")
	}
	return nil
}

// prompt asks for every field of the request interactively, using what is already in raw as defaults.
func prompt(raw *pizza.RawRequest) error {
	if err := survey.AskOne(&survey.Input{Message: "Name:", Default: raw.Name}, &raw.Name, survey.WithValidator(survey.Required)); err != nil {
		return err
	}

	slices := strconv.Itoa(raw.Slices)
	if err := survey.AskOne(&survey.Input{Message: "Slices (0 to remove):", Default: slices}, &slices, survey.WithValidator(validSlices)); err != nil {
		return err
	}
	raw.Slices, _ = strconv.Atoi(slices)
	if raw.IsDeletion() {
		return nil
	}

	if raw.Slices > 1 {
		if err := survey.AskOne(&survey.Confirm{Message: "Approximately?", Default: raw.Approx}, &raw.Approx); err != nil {
			return err
		}
	}

	return survey.AskOne(&survey.MultiSelect{
		Message:  "Toppings:",
		Options:  pizza.Toppings(),
		Default:  pizza.FilterToppings(raw.Toppings),
		PageSize: 14,
	}, &raw.Toppings)
}
