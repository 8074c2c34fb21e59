// Package model holds the data types shared by every component of the
// backup pipeline: sites, files, history events, ignores and the
// generation timestamp that ties a run together.
package model

import (
	"strconv"
	"time"
)

// TimePoint is a monotonic microsecond-precision timestamp. One value is
// assigned per process run and reused for every mutation that run makes;
// it also names the generation's archive on disk.
type TimePoint int64

// Now returns the current time as a TimePoint.
func Now() TimePoint {
	return TimePoint(time.Now().UnixMicro())
}

// String renders the TimePoint as the decimal form used for archive
// filenames (<backup.path>/<siteID>/<timePoint>.tar.gz).
func (t TimePoint) String() string {
	return strconv.FormatInt(int64(t), 10)
}

// Time converts the TimePoint back to a time.Time in UTC.
func (t TimePoint) Time() time.Time {
	return time.UnixMicro(int64(t)).UTC()
}

// TimePointFromTime converts a UTC-normalized time.Time to a TimePoint,
// used by the restore planner to turn a parsed --restore datetime into
// the microsecond form loadTreeAt expects.
func TimePointFromTime(t time.Time) TimePoint {
	return TimePoint(t.UnixMicro())
}
