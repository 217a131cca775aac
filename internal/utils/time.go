package utils

import (
	"time"
)

// UnixTimeToTime converts a Unix timestamp to a UTC time.Time, zero stays zero
func UnixTimeToTime(unixTime int64) time.Time {
	if unixTime == 0 {
		return time.Time{}
	}
	return time.Unix(unixTime, 0).UTC()
}
