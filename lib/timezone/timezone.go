package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Asia/Seoul")
	if err != nil {
		// KST is a fixed offset with no DST so this is equivalent
		Location = time.FixedZone("KST", 9*60*60)
	}
}

// force timezone to be KST regardless of where the server ends up,
// otherwise date arithmetic based on <time.Time>.Year()/Month()/Day()/Hour()
// drifts relative to the upstream service's match timestamps
func Now() time.Time {
	return time.Now().In(Location)
}

// FloorHour truncates t to the top of its hour, keeping the location.
func FloorHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// NextHour returns the top-of-hour instant strictly after t.
func NextHour(t time.Time) time.Time {
	return FloorHour(t).Add(time.Hour)
}
