package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormDefaults(t *testing.T) {
	now := time.Date(2024, time.March, 10, 15, 0, 0, 0, time.UTC)

	form, err := ParseForm(RunRequest{Organizer: "org1"}, now, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, NewDay(2024, time.March, 10), form.DateFrom)
	assert.Equal(t, NewDay(2024, time.March, 16), form.DateTo)
	assert.Empty(t, form.ProductName)
	assert.Nil(t, form.MetaValues)
}

func TestParseFormLenientDates(t *testing.T) {
	now := time.Date(2024, time.March, 10, 15, 0, 0, 0, time.UTC)

	// Free-text input in several common shapes resolves to the same day.
	for _, input := range []string{
		"2024-01-03",
		"01/03/2024",
		"January 3, 2024",
		"Jan 3 2024",
	} {
		form, err := ParseForm(RunRequest{DateFrom: input}, now, time.UTC)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, NewDay(2024, time.January, 3), form.DateFrom, "input %q", input)
	}
}

func TestParseFormUnparsableDateFailsValidation(t *testing.T) {
	now := time.Date(2024, time.March, 10, 15, 0, 0, 0, time.UTC)

	_, err := ParseForm(RunRequest{DateFrom: "not a date"}, now, time.UTC)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ParseForm(RunRequest{DateTo: "??"}, now, time.UTC)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseFormValidatesProductToken(t *testing.T) {
	now := time.Date(2024, time.March, 10, 15, 0, 0, 0, time.UTC)

	form, err := ParseForm(RunRequest{ProductName: "Day ticket#!#Adult"}, now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "Day ticket#!#Adult", form.ProductName)

	_, err = ParseForm(RunRequest{ProductName: "Day ticket"}, now, time.UTC)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestProductTokenRoundTrip(t *testing.T) {
	token := ProductToken("Day ticket", "Adult")
	assert.Equal(t, "Day ticket#!#Adult", token)

	name, value, err := SplitProductToken(token)
	require.NoError(t, err)
	assert.Equal(t, "Day ticket", name)
	assert.Equal(t, "Adult", value)

	// Products without variations carry the plain sentinel.
	plain := ProductToken("Entrance", "")
	assert.Equal(t, "Entrance#!#-", plain)
	name, value, err = SplitProductToken(plain)
	require.NoError(t, err)
	assert.Equal(t, "Entrance", name)
	assert.Equal(t, ProductTokenPlain, value)
}

func TestDateFieldsDefaults(t *testing.T) {
	now := time.Date(2024, time.March, 10, 15, 0, 0, 0, time.UTC)

	fields := dateFields(now, time.UTC)
	require.Len(t, fields, 2)
	assert.Equal(t, "date_from", fields[0].Name)
	assert.Equal(t, "2024-03-10", fields[0].Default)
	assert.Equal(t, "date_to", fields[1].Name)
	assert.Equal(t, "2024-03-16", fields[1].Default)
}
