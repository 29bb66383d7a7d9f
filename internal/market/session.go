package market

import "time"

// Session is the market-hours state for a given moment.
type Session string

const (
	SessionPreOpen    Session = "pre_open"
	SessionRegular    Session = "regular"
	SessionClosing    Session = "closing"
	SessionAfterHours Session = "after_hours"
	SessionNonTrading Session = "non_trading"
)

// Strategy selects which data source a scrape cycle should use.
type Strategy string

const (
	StrategyLive       Strategy = "live"
	StrategyClosing    Strategy = "closing"
	StrategyHistorical Strategy = "historical"
)

// Snapshot is the classification of one moment against the trading calendar.
type Snapshot struct {
	Session      Session
	Strategy     Strategy
	IsTradingDay bool
	Date         time.Time // midnight in the market timezone
	BucketTime   TimeOfDay
}

// Classify maps a timestamp onto the session state machine and derives the
// source strategy and bucket time for a scrape cycle. Both the open and close
// boundaries are inclusive for the regular session.
func (c Calendar) Classify(now time.Time) Snapshot {
	local := now.In(c.Location)
	date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.Location)
	tod := TimeOfDayFrom(local)

	snap := Snapshot{
		IsTradingDay: c.TradingDays[local.Weekday()],
		Date:         date,
	}

	if !snap.IsTradingDay {
		snap.Session = SessionNonTrading
	} else {
		switch {
		case tod < c.Open:
			snap.Session = SessionPreOpen
		case tod <= c.Close:
			snap.Session = SessionRegular
		case tod <= c.Close.Add(c.ClosingWindow):
			snap.Session = SessionClosing
		default:
			snap.Session = SessionAfterHours
		}
	}

	switch snap.Session {
	case SessionRegular:
		snap.Strategy = StrategyLive
		snap.BucketTime = tod.Truncate(c.BucketInterval)
	case SessionClosing:
		snap.Strategy = StrategyClosing
		snap.BucketTime = c.ClosingBucket
	default:
		snap.Strategy = StrategyHistorical
		snap.BucketTime = c.HistoricalBucket
	}
	return snap
}
