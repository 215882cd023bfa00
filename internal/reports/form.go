package reports

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ErrValidation marks user-input errors surfaced before any aggregation
// runs, as opposed to runtime faults.
var ErrValidation = errors.New("invalid report input")

// RunRequest is the raw, host-supplied form input for one report run.
type RunRequest struct {
	Organizer   string   `json:"organizer"`
	EventIDs    []string `json:"event_ids,omitempty"`
	DateFrom    string   `json:"date_from,omitempty"`
	DateTo      string   `json:"date_to,omitempty"`
	ProductName string   `json:"product_name,omitempty"`
	// MetaValues nil selects every value of the grouping attribute.
	MetaValues []string `json:"meta_values,omitempty"`
}

// FormData is the validated form input.
type FormData struct {
	DateFrom    Day
	DateTo      Day
	ProductName string
	MetaValues  []string
}

// ParseForm validates a raw run request. Dates parse leniently (free-text
// input is accepted); empty dates default to today and today+6 in loc. An
// unparsable value is a validation error, reported before any store read.
func ParseForm(req RunRequest, now time.Time, loc *time.Location) (FormData, error) {
	today := DayOf(now, loc)

	dateFrom, err := parseFormDay(req.DateFrom, today)
	if err != nil {
		return FormData{}, fmt.Errorf("%w: date_from: %v", ErrValidation, err)
	}

	defaultTo := DayOf(now.In(loc).AddDate(0, 0, 6), loc)
	dateTo, err := parseFormDay(req.DateTo, defaultTo)
	if err != nil {
		return FormData{}, fmt.Errorf("%w: date_to: %v", ErrValidation, err)
	}

	if req.ProductName != "" {
		if _, _, err := SplitProductToken(req.ProductName); err != nil {
			return FormData{}, fmt.Errorf("%w: product_name: %v", ErrValidation, err)
		}
	}

	return FormData{
		DateFrom:    dateFrom,
		DateTo:      dateTo,
		ProductName: req.ProductName,
		MetaValues:  req.MetaValues,
	}, nil
}

func parseFormDay(value string, fallback Day) (Day, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	t, err := dateparse.ParseAny(value)
	if err != nil {
		return Day{}, fmt.Errorf("unparsable date %q", value)
	}
	// The parsed wall-clock date is taken as-is; free-text dates carry no
	// zone of their own.
	return NewDay(t.Year(), t.Month(), t.Day()), nil
}

// FormField describes one configuration input of a report, returned to the
// host's form layer.
type FormField struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Label   string   `json:"label"`
	Default string   `json:"default,omitempty"`
	Choices []Choice `json:"choices,omitempty"`
}

// Choice is one selectable option of a choice field.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func dateFields(now time.Time, loc *time.Location) []FormField {
	return []FormField{
		{
			Name:    "date_from",
			Type:    "date",
			Label:   "Start date",
			Default: DayOf(now, loc).String(),
		},
		{
			Name:    "date_to",
			Type:    "date",
			Label:   "End date",
			Default: DayOf(now.In(loc).AddDate(0, 0, 6), loc).String(),
		},
	}
}
