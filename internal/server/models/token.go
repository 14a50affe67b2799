package models

import "time"

// RefreshToken is the persisted half of a client token pair. UID is stable
// across rotations; Signature and Expires change on every refresh.
type RefreshToken struct {
	UID       string
	ClientUID string
	Signature string
	IssuedAt  time.Time
	Expires   time.Time
}

// DeviceToken is a long-lived credential binding a device to its owner.
// At most one row exists per device.
type DeviceToken struct {
	UID       string
	DeviceUID string
	ClientUID string
	Signature string
	IssuedAt  time.Time
	Expires   time.Time
}

// DeviceAccessToken is a short-lived credential derived from exactly one
// DeviceToken. At most one unexpired row exists per device token.
type DeviceAccessToken struct {
	UID            string
	DeviceTokenUID string
	DeviceUID      string
	Signature      string
	IssuedAt       time.Time
	Expires        time.Time
}
