package domain

import "time"

// ManifestRow is a single row of a daily trip manifest.
// It is a flat, denormalized view: rider name and group snapshot are repeated
// per trip so the manifest can be printed or loaded into a spreadsheet as-is.
type ManifestRow struct {
	TripID         string
	PickupTime     time.Time
	RiderName      string // client full name or group display name
	PickupAddress  string
	DropoffAddress string
	TripType       TripType
	Status         TripStatus
	Recurring      bool
	Notes          string
}
