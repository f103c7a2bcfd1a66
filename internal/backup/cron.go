package backup

import (
	"github.com/robfig/cron/v3"
	"time"
	"warden/internal/types"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Cron is a parsed five-field expression evaluated in a fixed location.
type Cron struct {
	expr     string
	schedule *cron.SpecSchedule
}

func ParseCron(expression string, loc *time.Location) (*Cron, error) {
	parsed, err := cronParser.Parse(expression)
	if err != nil {
		return nil, types.Invalid("invalid cron expression %q: %s", expression, err.Error())
	}

	spec, ok := parsed.(*cron.SpecSchedule)
	if !ok {
		return nil, types.Invalid("unsupported cron expression %q", expression)
	}
	if loc == nil {
		loc = time.UTC
	}
	spec.Location = loc

	c := &Cron{expr: expression, schedule: spec}
	if c.schedule.Next(time.Now()).IsZero() {
		return nil, types.Invalid("cron expression %q never fires", expression)
	}
	return c, nil
}

// ValidateCron reports whether expression is a valid five-field cron expression.
func ValidateCron(expression string) error {
	_, err := ParseCron(expression, time.UTC)
	return err
}

func (c *Cron) String() string {
	return c.expr
}

// Next returns the first instant strictly after t that satisfies the expression.
func (c *Cron) Next(t time.Time) time.Time {
	return c.schedule.Next(t).UTC()
}

// Matches reports whether t is itself a firing instant.
func (c *Cron) Matches(t time.Time) bool {
	if t.Second() != 0 || t.Nanosecond() != 0 {
		return false
	}
	return c.schedule.Next(t.Add(-time.Second)).Equal(t)
}

// Period returns the gap between the two firing instants that follow t.
func (c *Cron) Period(t time.Time) time.Duration {
	first := c.schedule.Next(t)
	return c.schedule.Next(first).Sub(first)
}
