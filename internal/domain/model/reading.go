package model

import "time"

// Reading is a persisted location sample. ID is assigned by the store and
// CapturedAtMillis is epoch milliseconds taken from the wall clock at the
// moment the sample passed the collection schedule.
type Reading struct {
	ID               int64
	Latitude         float64
	Longitude        float64
	CapturedAtMillis int64
	DeviceID         string
}

// CapturedAt returns the capture instant as a time.Time in UTC.
func (r Reading) CapturedAt() time.Time {
	return time.UnixMilli(r.CapturedAtMillis).UTC()
}

// Fix is a single position delivered by a location source.
type Fix struct {
	Latitude  float64
	Longitude float64
	Time      time.Time
}
