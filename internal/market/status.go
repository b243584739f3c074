package market

import (
	"time"

	"github.com/scmhub/calendar"
)

// Clock reports NYSE session state.
type Clock struct {
	cal *calendar.Calendar
	loc *time.Location
}

// NewClock loads the xnys calendar. If it is unavailable, weekdays
// 09:30-16:00 New York time are assumed.
func NewClock() *Clock {
	c := &Clock{cal: calendar.GetCalendar("xnys")}
	if c.cal != nil {
		c.loc = c.cal.Loc
	}
	if c.loc == nil {
		c.loc, _ = time.LoadLocation("America/New_York")
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	return c
}

func (c *Clock) isBusinessDay(t time.Time) bool {
	t = t.In(c.loc)
	if c.cal != nil {
		return c.cal.IsBusinessDay(t)
	}
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// IsOpen reports whether the market is in its regular session at t.
func (c *Clock) IsOpen(t time.Time) bool {
	t = t.In(c.loc)
	if c.cal != nil {
		return c.cal.IsOpen(t)
	}
	if !c.isBusinessDay(t) {
		return false
	}
	mins := t.Hour()*60 + t.Minute()
	return mins >= 9*60+30 && mins < 16*60
}

// NextOpen returns the next regular-session open strictly after t.
func (c *Clock) NextOpen(t time.Time) time.Time {
	local := t.In(c.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 9, 30, 0, 0, c.loc)
	for i := 0; i < 15; i++ {
		if day.After(local) && c.isBusinessDay(day) {
			return day
		}
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// Status describes the session at now.
func (c *Clock) Status(now time.Time) Status {
	local := now.In(c.loc)
	st := Status{
		IsOpen:     c.IsOpen(now),
		Exchange:   "XNYS",
		Timezone:   c.loc.String(),
		Now:        local.Format(time.RFC3339),
		IsBusiness: c.isBusinessDay(now),
	}
	if !st.IsOpen {
		st.NextOpen = c.NextOpen(now).Format(time.RFC3339)
	}
	return st
}
