package domain

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateRange(t *testing.T) {
	r, err := ParseDateRange("2024-06-01", "2024-06-30")
	require.NoError(t, err)
	assert.True(t, r.Contains(civil.Date{Year: 2024, Month: 6, Day: 1}))
	assert.True(t, r.Contains(civil.Date{Year: 2024, Month: 6, Day: 30}))
	assert.False(t, r.Contains(civil.Date{Year: 2024, Month: 7, Day: 1}))

	_, err = ParseDateRange("2024-06-30", "2024-06-01")
	assert.True(t, errors.Is(err, ErrInvalidWindow))

	_, err = ParseDateRange("June 1", "2024-06-01")
	assert.True(t, errors.Is(err, ErrInvalidWindow))
}

func TestLastNDays(t *testing.T) {
	now := time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)

	r, err := LastNDays(now, 60, DefaultStartDaysAgo)
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2024, Month: 4, Day: 12}, r.Start)
	assert.Equal(t, civil.Date{Year: 2024, Month: 6, Day: 10}, r.End)

	r, err = LastNDays(now, 60, 0)
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2024, Month: 6, Day: 10}, r.Start, "zero means the window starts today")
	assert.Equal(t, r.Start, r.End)

	r, err = LastNDays(now, 60, 2)
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2024, Month: 6, Day: 8}, r.Start)

	_, err = LastNDays(now, 0, DefaultStartDaysAgo)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestMonthOf(t *testing.T) {
	r := MonthOf(civil.Date{Year: 2024, Month: 2, Day: 17})
	assert.Equal(t, civil.Date{Year: 2024, Month: 2, Day: 1}, r.Start)
	assert.Equal(t, civil.Date{Year: 2024, Month: 2, Day: 29}, r.End)

	prev := MonthOf(civil.Date{Year: 2024, Month: 1, Day: 5}).PreviousMonth()
	assert.Equal(t, civil.Date{Year: 2023, Month: 12, Day: 1}, prev.Start)
	assert.Equal(t, civil.Date{Year: 2023, Month: 12, Day: 31}, prev.End)
}
