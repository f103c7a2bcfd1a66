package backup

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math/rand"
	"testing"
	"time"
	"warden/internal/types"
)

func TestParseCron(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{name: "every minute", expr: "* * * * *"},
		{name: "daily at two", expr: "0 2 * * *"},
		{name: "list", expr: "0,30 1,13 * * *"},
		{name: "range", expr: "0 9-17 * * 1-5"},
		{name: "step", expr: "*/15 * * * *"},
		{name: "range with step", expr: "0 0-23/6 * * *"},
		{name: "four fields", expr: "0 2 * *", wantErr: true},
		{name: "six fields", expr: "0 0 2 * * *", wantErr: true},
		{name: "out of range", expr: "61 * * * *", wantErr: true},
		{name: "garbage", expr: "every day", wantErr: true},
		{name: "descriptor", expr: "@daily", wantErr: true},
		{name: "never fires", expr: "0 0 30 2 *", wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseCron(test.expr, time.UTC)
			if test.wantErr {
				assert.ErrorIs(t, err, types.ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCron_Next(t *testing.T) {
	c, err := ParseCron("0 2 * * *", time.UTC)
	require.NoError(t, err)

	at := time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 2, 2, 0, 0, 0, time.UTC), c.Next(at))
	assert.Equal(t, at, c.Next(at.Add(-time.Nanosecond)))
	assert.True(t, c.Matches(at))
	assert.False(t, c.Matches(at.Add(time.Minute)))
	assert.Equal(t, 24*time.Hour, c.Period(at))
}

func TestCron_NextInLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	c, err := ParseCron("0 2 * * *", loc)
	require.NoError(t, err)

	got := c.Next(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
}

// next_run is always strictly after the reference instant and satisfies the expression.
func TestCron_NextIsStrictlyAfterAndMatches(t *testing.T) {
	exprs := []string{"* * * * *", "*/7 * * * *", "0 2 * * *", "15 3,15 * * 1-5", "0 0 1 */2 *", "5 4 * * 0"}
	rnd := rand.New(rand.NewSource(7))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, expr := range exprs {
		c, err := ParseCron(expr, time.UTC)
		require.NoError(t, err)
		for i := 0; i < 200; i++ {
			ref := base.Add(time.Duration(rnd.Int63n(int64(365 * 24 * time.Hour))))
			next := c.Next(ref)
			assert.True(t, next.After(ref), "%s: %s not after %s", expr, next, ref)
			assert.True(t, c.Matches(next), "%s: %s does not match", expr, next)
		}
	}
}
