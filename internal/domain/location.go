package domain

import "time"

// LocationSample is an append-only GPS reading for an active booking.
type LocationSample struct {
	ID              string
	BookingID       string
	Lat             float64
	Lng             float64
	OutsideGeofence bool
	RecordedAt      time.Time
}
