package schedule

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/fitdesk/class-booking/internal/model"
)

func weeklyTemplate(day time.Weekday, startMinute, endMinute int) *model.ClassTemplate {
    return &model.ClassTemplate{
        ID:       42,
        Name:     "Spin",
        Capacity: 20,
        Recurrence: model.Recurrence{
            Kind:        model.RecurrenceWeekly,
            DayOfWeek:   day,
            StartMinute: startMinute,
            EndMinute:   endMinute,
        },
    }
}

func oneTimeTemplate(date time.Time, startMinute, endMinute int) *model.ClassTemplate {
    return &model.ClassTemplate{
        ID:       42,
        Name:     "Open Day",
        Capacity: 20,
        Recurrence: model.Recurrence{
            Kind:        model.RecurrenceOneTime,
            Date:        date,
            StartMinute: startMinute,
            EndMinute:   endMinute,
        },
    }
}

func TestNextWeekly(t *testing.T) {
    // 2026-09-02 is a Wednesday.
    tests := []struct {
        name       string
        day        time.Weekday
        now        time.Time
        wantStarts time.Time
    }{
        {
            name:       "later this week",
            day:        time.Friday,
            now:        time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC),
            wantStarts: time.Date(2026, 9, 4, 18, 0, 0, 0, time.UTC),
        },
        {
            name:       "weekday wraps around the week boundary",
            day:        time.Monday,
            now:        time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC),
            wantStarts: time.Date(2026, 9, 7, 18, 0, 0, 0, time.UTC),
        },
        {
            name:       "same day, start still ahead",
            day:        time.Wednesday,
            now:        time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC),
            wantStarts: time.Date(2026, 9, 2, 18, 0, 0, 0, time.UTC),
        },
        {
            name:       "same day, start already passed, rolls a week",
            day:        time.Wednesday,
            now:        time.Date(2026, 9, 2, 19, 30, 0, 0, time.UTC),
            wantStarts: time.Date(2026, 9, 9, 18, 0, 0, 0, time.UTC),
        },
        {
            name:       "day after the class rolls almost a week",
            day:        time.Wednesday,
            now:        time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC),
            wantStarts: time.Date(2026, 9, 9, 18, 0, 0, 0, time.UTC),
        },
        {
            name:       "exactly at start time books today",
            day:        time.Wednesday,
            now:        time.Date(2026, 9, 2, 18, 0, 0, 0, time.UTC),
            wantStarts: time.Date(2026, 9, 2, 18, 0, 0, 0, time.UTC),
        },
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            tmpl := weeklyTemplate(tt.day, 18*60, 19*60)
            occ, ok := Next(tmpl, tt.now)
            require.True(t, ok)
            assert.Equal(t, tt.wantStarts, occ.StartsAt)
            assert.Equal(t, tt.wantStarts.Add(time.Hour), occ.EndsAt)
            assert.Equal(t, tmpl.ID, occ.TemplateID)
        })
    }
}

func TestNextWeeklyDeterministic(t *testing.T) {
    tmpl := weeklyTemplate(time.Sunday, 9*60, 10*60+30)
    now := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)
    first, ok := Next(tmpl, now)
    require.True(t, ok)
    second, ok := Next(tmpl, now)
    require.True(t, ok)
    assert.Equal(t, first, second)
}

func TestNextOneTime(t *testing.T) {
    date := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
    tmpl := oneTimeTemplate(date, 18*60, 19*60)

    t.Run("future date resolves", func(t *testing.T) {
        occ, ok := Next(tmpl, time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC))
        require.True(t, ok)
        assert.Equal(t, time.Date(2026, 9, 10, 18, 0, 0, 0, time.UTC), occ.StartsAt)
        assert.Equal(t, time.Date(2026, 9, 10, 19, 0, 0, 0, time.UTC), occ.EndsAt)
    })

    t.Run("past date reports no future occurrence", func(t *testing.T) {
        _, ok := Next(tmpl, time.Date(2026, 9, 10, 18, 1, 0, 0, time.UTC))
        assert.False(t, ok)
    })
}

func TestAtWeekly(t *testing.T) {
    tmpl := weeklyTemplate(time.Wednesday, 18*60, 19*60)
    tests := []struct {
        name     string
        startsAt time.Time
        wantOK   bool
    }{
        {"matching instance this week", time.Date(2026, 9, 2, 18, 0, 0, 0, time.UTC), true},
        {"matching instance three weeks out", time.Date(2026, 9, 23, 18, 0, 0, 0, time.UTC), true},
        {"wrong weekday", time.Date(2026, 9, 3, 18, 0, 0, 0, time.UTC), false},
        {"wrong start time", time.Date(2026, 9, 2, 18, 30, 0, 0, time.UTC), false},
        {"sub-minute precision rejected", time.Date(2026, 9, 2, 18, 0, 30, 0, time.UTC), false},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            occ, ok := At(tmpl, tt.startsAt)
            assert.Equal(t, tt.wantOK, ok)
            if tt.wantOK {
                assert.Equal(t, tt.startsAt, occ.StartsAt)
                assert.Equal(t, tt.startsAt.Add(time.Hour), occ.EndsAt)
            }
        })
    }
}

func TestAtOneTime(t *testing.T) {
    date := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
    tmpl := oneTimeTemplate(date, 18*60, 19*60)

    occ, ok := At(tmpl, time.Date(2026, 9, 10, 18, 0, 0, 0, time.UTC))
    require.True(t, ok)
    assert.Equal(t, time.Date(2026, 9, 10, 19, 0, 0, 0, time.UTC), occ.EndsAt)

    _, ok = At(tmpl, time.Date(2026, 9, 11, 18, 0, 0, 0, time.UTC))
    assert.False(t, ok)
}
