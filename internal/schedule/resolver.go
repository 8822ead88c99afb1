// Package schedule resolves class templates into concrete occurrences.
// Everything here is pure and deterministic: the same template and
// reference instant always yield the same occurrence, there is no I/O
// and no reading of the wall clock.  All instants are UTC and weekday
// numbering follows Go's time.Weekday (Sunday = 0).
package schedule

import (
    "time"

    "github.com/fitdesk/class-booking/internal/model"
)

// Next returns the next occurrence of the template at or after now.
// For WEEKLY templates it advances to the template's weekday, rolling a
// full week forward when today's start time has already passed.  For
// ONE_TIME templates whose instant is already behind now it reports
// ok=false ("no future occurrence"); callers treat that as unbookable,
// not as an error.
func Next(tmpl *model.ClassTemplate, now time.Time) (model.Occurrence, bool) {
    now = now.UTC()
    r := tmpl.Recurrence
    switch r.Kind {
    case model.RecurrenceOneTime:
        occ := occurrenceOn(tmpl, r.Date)
        if occ.StartsAt.Before(now) {
            return model.Occurrence{}, false
        }
        return occ, true
    case model.RecurrenceWeekly:
        // Smallest non-negative day offset landing on the template's
        // weekday; same weekday with a passed start time rolls +7.
        today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
        offset := (int(r.DayOfWeek) - int(now.Weekday()) + 7) % 7
        occ := occurrenceOn(tmpl, today.AddDate(0, 0, offset))
        if occ.StartsAt.Before(now) {
            occ = occurrenceOn(tmpl, today.AddDate(0, 0, offset+7))
        }
        return occ, true
    }
    return model.Occurrence{}, false
}

// At validates a caller-supplied start instant against the template's
// recurrence rule and, when it matches, returns the fully resolved
// occurrence.  WEEKLY templates accept any week's instance on the right
// weekday and start time; ONE_TIME templates accept exactly their one
// instant.  ok=false means the instant is not an occurrence of this
// template at all.
func At(tmpl *model.ClassTemplate, startsAt time.Time) (model.Occurrence, bool) {
    startsAt = startsAt.UTC()
    if startsAt.Second() != 0 || startsAt.Nanosecond() != 0 {
        return model.Occurrence{}, false
    }
    r := tmpl.Recurrence
    minute := startsAt.Hour()*60 + startsAt.Minute()
    if minute != r.StartMinute {
        return model.Occurrence{}, false
    }
    day := time.Date(startsAt.Year(), startsAt.Month(), startsAt.Day(), 0, 0, 0, 0, time.UTC)
    switch r.Kind {
    case model.RecurrenceOneTime:
        if !day.Equal(dateOnly(r.Date)) {
            return model.Occurrence{}, false
        }
        return occurrenceOn(tmpl, day), true
    case model.RecurrenceWeekly:
        if startsAt.Weekday() != r.DayOfWeek {
            return model.Occurrence{}, false
        }
        return occurrenceOn(tmpl, day), true
    }
    return model.Occurrence{}, false
}

// occurrenceOn builds the occurrence of tmpl on the given calendar day.
func occurrenceOn(tmpl *model.ClassTemplate, day time.Time) model.Occurrence {
    day = dateOnly(day)
    r := tmpl.Recurrence
    starts := day.Add(time.Duration(r.StartMinute) * time.Minute)
    ends := day.Add(time.Duration(r.EndMinute) * time.Minute)
    return model.Occurrence{TemplateID: tmpl.ID, StartsAt: starts, EndsAt: ends}
}

// dateOnly truncates an instant to midnight UTC.
func dateOnly(t time.Time) time.Time {
    t = t.UTC()
    return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
