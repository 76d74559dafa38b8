package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanior/course-booking-api/internal/models"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
)

func bangkok(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Asia/Bangkok")
	require.NoError(t, err)
	return loc
}

func TestParseCourseScheduleForms(t *testing.T) {
	cases := map[string]string{
		"object with list":   `{"monday":["10:00-12:00"],"Wednesday":["18:00-19:00","19:00-20:00"]}`,
		"object with string": `{"monday":"10:00-12:00","wednesday":["18:00-19:00","19:00-20:00"]}`,
		"double encoded":     `"{\"monday\":[\"10:00-12:00\"],\"wednesday\":[\"18:00-19:00\",\"19:00-20:00\"]}"`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			schedule, err := ParseCourseSchedule(raw)
			require.NoError(t, err)
			assert.Equal(t, []string{"10:00-12:00"}, schedule["monday"])
			assert.Len(t, schedule["wednesday"], 2)
		})
	}
}

func TestParseCourseScheduleMalformedIsConfigurationError(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"funday":["10:00-11:00"]}`, `{"monday":42}`, `{"monday":["12:00-10:00"]}`, `"\"still a string\""`} {
		_, err := ParseCourseSchedule(raw)
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, appErrors.ErrScheduleMisconfig), raw)
		assert.Equal(t, 500, appErrors.FromError(err).Status)
	}
}

func TestValidateSlotsAcceptsEveryPublishedSlot(t *testing.T) {
	schedule, err := ParseCourseSchedule(`{"monday":["10:00-12:00","13:00-14:00"],"thursday":["08:00-09:00"]}`)
	require.NoError(t, err)
	loc := bangkok(t)
	monday := time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC)

	for day, ranges := range schedule {
		for _, r := range ranges {
			slot := models.Slot{DayOfWeek: day, StartTime: r[:5], EndTime: r[6:]}
			slots := []models.Slot{slot}
			if day != "monday" {
				slots = append(slots, models.Slot{DayOfWeek: "monday", StartTime: "10:00", EndTime: "12:00"})
			}
			_, _, err := ValidateSlots(schedule, slots, monday, loc)
			assert.NoError(t, err, slot.String())
		}
	}
}

func TestValidateSlotsNamesOffendingSlot(t *testing.T) {
	schedule, err := ParseCourseSchedule(`{"monday":["10:00-12:00"]}`)
	require.NoError(t, err)

	_, _, err = ValidateSlots(schedule, []models.Slot{{DayOfWeek: "Tuesday", StartTime: "09:00", EndTime: "10:00"}}, time.Date(2025, 7, 8, 0, 0, 0, 0, time.UTC), bangkok(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, err.Error(), "tuesday 09:00-10:00")
}

func TestValidateSlotsComputesFirstSession(t *testing.T) {
	schedule, err := ParseCourseSchedule(`{"monday":["13:00-14:00","10:00-12:00"],"friday":"17:00-18:00"}`)
	require.NoError(t, err)
	loc := bangkok(t)

	slots, first, err := ValidateSlots(schedule, []models.Slot{
		{DayOfWeek: "monday", StartTime: "13:00", EndTime: "14:00"},
		{DayOfWeek: "MONDAY", StartTime: "10:00", EndTime: "12:00"},
		{DayOfWeek: "friday", StartTime: "17:00", EndTime: "18:00"},
	}, time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC), loc)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, "monday", slots[1].DayOfWeek)
	assert.Equal(t, time.Date(2025, 7, 7, 10, 0, 0, 0, loc), first)
}

func TestValidateSlotsRejectsStartDateOffSchedule(t *testing.T) {
	schedule, err := ParseCourseSchedule(`{"monday":["10:00-12:00"]}`)
	require.NoError(t, err)

	_, _, err = ValidateSlots(schedule, []models.Slot{{DayOfWeek: "monday", StartTime: "10:00", EndTime: "12:00"}}, time.Date(2025, 7, 8, 0, 0, 0, 0, time.UTC), bangkok(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, err.Error(), "tuesday")
}

func TestValidateSlotsRejectsDuplicates(t *testing.T) {
	schedule, err := ParseCourseSchedule(`{"monday":["10:00-12:00"]}`)
	require.NoError(t, err)
	slot := models.Slot{DayOfWeek: "monday", StartTime: "10:00", EndTime: "12:00"}

	_, _, err = ValidateSlots(schedule, []models.Slot{slot, slot}, time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC), bangkok(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than once")
}

func TestParseLegacySlot(t *testing.T) {
	slot, err := ParseLegacySlot("Wednesday:19:00-20:00")
	require.NoError(t, err)
	assert.Equal(t, models.Slot{DayOfWeek: "wednesday", StartTime: "19:00", EndTime: "20:00"}, slot)

	for _, raw := range []string{"wednesday", "wednesday:19:00", "noday:19:00-20:00"} {
		_, err := ParseLegacySlot(raw)
		assert.True(t, errors.Is(err, appErrors.ErrValidation), raw)
	}
}
