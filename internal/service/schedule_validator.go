package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/seanior/course-booking-api/internal/models"
	appErrors "github.com/seanior/course-booking-api/pkg/errors"
)

// WeeklySchedule maps a lowercase day name to its published "HH:MM-HH:MM" ranges.
type WeeklySchedule map[string][]string

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Offers reports whether the schedule publishes exactly this slot.
func (s WeeklySchedule) Offers(slot models.Slot) bool {
	want := slot.StartTime + "-" + slot.EndTime
	for _, r := range s[slot.DayOfWeek] {
		if r == want {
			return true
		}
	}
	return false
}

// ParseCourseSchedule normalises a stored course schedule. The text may be a
// JSON object or a JSON string holding that object. Day values may be a
// single range or a list of ranges. Anything unrecoverable is a course
// configuration error.
func ParseCourseSchedule(raw string) (WeeklySchedule, error) {
	text := strings.TrimSpace(raw)
	for depth := 0; depth < 3; depth++ {
		if text == "" {
			return nil, misconfigured(nil, "course schedule is empty")
		}
		if text[0] != '"' {
			break
		}
		var inner string
		if err := json.Unmarshal([]byte(text), &inner); err != nil {
			return nil, misconfigured(err, "course schedule is not valid JSON")
		}
		text = strings.TrimSpace(inner)
	}

	var days map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &days); err != nil {
		return nil, misconfigured(err, "course schedule is not a JSON object")
	}

	schedule := make(WeeklySchedule, len(days))
	for key, value := range days {
		day := strings.ToLower(strings.TrimSpace(key))
		if _, ok := weekdays[day]; !ok {
			return nil, misconfigured(nil, fmt.Sprintf("course schedule has unknown day %q", key))
		}

		var ranges []string
		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			ranges = []string{single}
		} else if err := json.Unmarshal(value, &ranges); err != nil {
			return nil, misconfigured(err, fmt.Sprintf("course schedule for %s must be a range or a list of ranges", day))
		}

		for _, r := range ranges {
			start, end, err := parseRange(r)
			if err != nil {
				return nil, misconfigured(err, fmt.Sprintf("course schedule for %s has invalid range %q", day, r))
			}
			schedule[day] = append(schedule[day], start+"-"+end)
		}
	}
	if len(schedule) == 0 {
		return nil, misconfigured(nil, "course schedule publishes no days")
	}
	return schedule, nil
}

// ValidateSlots checks every slot against the published schedule and returns
// the first session time: startDate at the earliest selected slot on that
// weekday, in loc. The returned slots are normalised.
func ValidateSlots(schedule WeeklySchedule, slots []models.Slot, startDate time.Time, loc *time.Location) ([]models.Slot, time.Time, error) {
	if len(slots) == 0 {
		return nil, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "at least one slot must be selected")
	}
	if loc == nil {
		loc = time.UTC
	}

	normalised := make([]models.Slot, 0, len(slots))
	seen := make(map[string]struct{}, len(slots))
	for _, slot := range slots {
		n, err := normaliseSlot(slot)
		if err != nil {
			return nil, time.Time{}, err
		}
		key := n.String()
		if _, dup := seen[key]; dup {
			return nil, time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("slot %s is selected more than once", key))
		}
		seen[key] = struct{}{}
		if !schedule.Offers(n) {
			return nil, time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("slot %s is not offered by this course", key))
		}
		normalised = append(normalised, n)
	}

	y, m, d := startDate.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)
	dayName := strings.ToLower(day.Weekday().String())

	var starts []string
	for _, slot := range normalised {
		if slot.DayOfWeek == dayName {
			starts = append(starts, slot.StartTime)
		}
	}
	if len(starts) == 0 {
		return nil, time.Time{}, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("start date %s is a %s, which is not one of the selected days", day.Format("2006-01-02"), dayName))
	}
	sort.Strings(starts)
	clock, _ := time.Parse("15:04", starts[0])
	first := time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, loc)

	return normalised, first, nil
}

// ParseLegacySlot converts the deprecated "day:HH:MM-HH:MM" selection into a
// slot.
func ParseLegacySlot(raw string) (models.Slot, error) {
	day, rng, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || day == "" || rng == "" {
		return models.Slot{}, appErrors.Clone(appErrors.ErrValidation, `selected slot must look like "dayname:HH:MM-HH:MM"`)
	}
	start, end, ok := strings.Cut(rng, "-")
	if !ok {
		return models.Slot{}, appErrors.Clone(appErrors.ErrValidation, `selected slot must look like "dayname:HH:MM-HH:MM"`)
	}
	return normaliseSlot(models.Slot{DayOfWeek: day, StartTime: start, EndTime: end})
}

func normaliseSlot(slot models.Slot) (models.Slot, error) {
	day := strings.ToLower(strings.TrimSpace(slot.DayOfWeek))
	if _, ok := weekdays[day]; !ok {
		return models.Slot{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day of week %q", slot.DayOfWeek))
	}
	start, end, err := parseRange(slot.StartTime + "-" + slot.EndTime)
	if err != nil {
		return models.Slot{}, appErrors.Validation(err, fmt.Sprintf("slot %s %s-%s has an invalid time range", day, slot.StartTime, slot.EndTime))
	}
	return models.Slot{DayOfWeek: day, StartTime: start, EndTime: end}, nil
}

func parseRange(raw string) (string, string, error) {
	startRaw, endRaw, ok := strings.Cut(strings.TrimSpace(raw), "-")
	if !ok {
		return "", "", fmt.Errorf("range %q must be HH:MM-HH:MM", raw)
	}
	start, err := time.Parse("15:04", strings.TrimSpace(startRaw))
	if err != nil {
		return "", "", fmt.Errorf("start time %q: %w", startRaw, err)
	}
	end, err := time.Parse("15:04", strings.TrimSpace(endRaw))
	if err != nil {
		return "", "", fmt.Errorf("end time %q: %w", endRaw, err)
	}
	if !end.After(start) {
		return "", "", fmt.Errorf("range %q ends before it starts", raw)
	}
	return start.Format("15:04"), end.Format("15:04"), nil
}

func misconfigured(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrScheduleMisconfig.Code, appErrors.ErrScheduleMisconfig.Status, message)
}
