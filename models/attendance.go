package models

// Attendance statuses.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
)

// AttendanceRecord is one attendance mark. Records are append-only: created
// by the verification pipeline or a presenter override, never mutated,
// deleted individually, in batches, or by subject-scoped purge. Duplicate
// marks for the same subject/day are permitted; downstream aggregation owns
// dedup, not the ledger.
type AttendanceRecord struct {
	ID           string `json:"id" firestore:"id,omitempty"`
	AttendeeID   string `json:"attendeeId" firestore:"attendeeId"`
	AttendeeName string `json:"attendeeName" firestore:"attendeeName"`
	Subject      string `json:"subject" firestore:"subject"`
	Date         string `json:"date" firestore:"date"` // "YYYY-MM-DD"
	Status       string `json:"status" firestore:"status"`
}

// VerificationResult is the biometric matcher's verdict. The matching
// algorithm itself is external; the pipeline only consumes this.
type VerificationResult struct {
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"` // in [0,1]
}
