package models

// StartMessage is the first frame the presenter sends on the session socket.
type StartMessage struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// InitMessage is the first frame an attendee sends on the scan socket.
// ClientTime is a string to avoid overflow in lossy JSON number handling.
type InitMessage struct {
	AttendeeID         string `json:"attendeeId"`
	BrowserFingerprint string `json:"browserFingerprint"`
	ClientTime         string `json:"clientTime"` // unix millis
}

// ScanMessage carries one decoded QR payload plus the attendee's sampled
// location and a freshly captured face image.
type ScanMessage struct {
	Token     string  `json:"token"` // decoded QR string, still serialized JSON
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	LiveImage string  `json:"liveImage"` // base64
}

// CaptureMessage carries the recapture after a retry offer.
type CaptureMessage struct {
	LiveImage string `json:"liveImage"`
}

// TimetableEntryRequest is the create/update body for timetable CRUD.
type TimetableEntryRequest struct {
	Day             string `json:"day" binding:"required,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	StartTime       string `json:"startTime" binding:"required,hhmm"`
	Subject         string `json:"subject" binding:"required"`
	DurationMinutes int    `json:"durationMinutes" binding:"omitempty,min=1,max=600"`
}

// OverrideRequest is a presenter-initiated manual attendance mark.
type OverrideRequest struct {
	AttendeeID   string `json:"attendeeId" binding:"required"`
	AttendeeName string `json:"attendeeName" binding:"required"`
	Subject      string `json:"subject" binding:"required"`
	Date         string `json:"date" binding:"required,datetime=2006-01-02"`
	Status       string `json:"status" binding:"required"` // StatusPresent or StatusAbsent, checked by the handler
}

// DeleteManyRequest names the record ids to delete in one batch call.
type DeleteManyRequest struct {
	IDs []string `json:"ids"`
}

// PurgeRequest names the subjects whose records should be purged.
type PurgeRequest struct {
	Subjects []string `json:"subjects" binding:"required,min=1"`
}
