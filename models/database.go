package models

import "gorm.io/gorm"

// DeviceFingerprint binds an attendee to the browser fingerprint they
// registered with, so a scan from an unknown device is refused before the
// pipeline runs.
type DeviceFingerprint struct {
	gorm.Model
	AttendeeID         string `json:"attendeeId" gorm:"index"`
	BrowserFingerprint string `json:"browserFingerprint"`
}
