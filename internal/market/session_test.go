package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// 2025-03-09 is a Sunday, a trading day on the default calendar.
// 2025-03-14 is a Friday, a weekend day in Nepal.
func npt(cal Calendar, day, hour, min, sec int) time.Time {
	return time.Date(2025, 3, day, hour, min, sec, 0, cal.Location)
}

func TestClassifySessions(t *testing.T) {
	cal := DefaultCalendar()

	tests := []struct {
		name     string
		at       time.Time
		session  Session
		strategy Strategy
		bucket   string
	}{
		{"one second before open", npt(cal, 9, 10, 59, 59), SessionPreOpen, StrategyHistorical, "16:00:00"},
		{"exactly at open", npt(cal, 9, 11, 0, 0), SessionRegular, StrategyLive, "11:00:00"},
		{"mid session truncates to bucket", npt(cal, 9, 12, 7, 42), SessionRegular, StrategyLive, "12:05:00"},
		{"exactly at close", npt(cal, 9, 15, 0, 0), SessionRegular, StrategyLive, "15:00:00"},
		{"one second after close", npt(cal, 9, 15, 0, 1), SessionClosing, StrategyClosing, "15:30:00"},
		{"end of closing window", npt(cal, 9, 17, 0, 0), SessionClosing, StrategyClosing, "15:30:00"},
		{"after the closing window", npt(cal, 9, 17, 0, 1), SessionAfterHours, StrategyHistorical, "16:00:00"},
		{"friday is not a trading day", npt(cal, 14, 12, 0, 0), SessionNonTrading, StrategyHistorical, "16:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := cal.Classify(tt.at)
			assert.Equal(t, tt.session, snap.Session)
			assert.Equal(t, tt.strategy, snap.Strategy)
			assert.Equal(t, tt.bucket, snap.BucketTime.String())
		})
	}
}

func TestClassifyTradingDayFlag(t *testing.T) {
	cal := DefaultCalendar()

	sunday := cal.Classify(npt(cal, 9, 12, 0, 0))
	assert.True(t, sunday.IsTradingDay)

	friday := cal.Classify(npt(cal, 14, 12, 0, 0))
	assert.False(t, friday.IsTradingDay)

	saturday := cal.Classify(npt(cal, 15, 12, 0, 0))
	assert.False(t, saturday.IsTradingDay)
}

func TestClassifyDateIsMidnightLocal(t *testing.T) {
	cal := DefaultCalendar()
	snap := cal.Classify(npt(cal, 9, 14, 33, 7))

	assert.Equal(t, "2025-03-09", snap.Date.Format("2006-01-02"))
	assert.Equal(t, 0, snap.Date.Hour())
	assert.Equal(t, cal.Location, snap.Date.Location())
}

func TestClassifyNormalizesForeignTimezones(t *testing.T) {
	cal := DefaultCalendar()

	// 05:30 UTC on Sunday is 11:15 NPT, inside the regular session.
	utc := time.Date(2025, 3, 9, 5, 30, 0, 0, time.UTC)
	snap := cal.Classify(utc)

	assert.Equal(t, SessionRegular, snap.Session)
	assert.Equal(t, "11:15:00", snap.BucketTime.String())
	assert.Equal(t, "2025-03-09", snap.Date.Format("2006-01-02"))
}
