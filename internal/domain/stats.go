package domain

// DailyStats aggregates donation activity for one calendar day.
type DailyStats struct {
	Day              string
	Created          int64
	Completed        int64
	Failed           int64
	CompletedNPRCent int64
	CompletedUSDCent int64
}
