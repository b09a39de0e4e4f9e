package models

// TimetableEntry is one scheduled class, owned by the presenter who created
// it and scoped to their department. ID is immutable once created.
type TimetableEntry struct {
	ID              string `json:"id" firestore:"id,omitempty"`
	Day             string `json:"day" firestore:"day"`             // "Monday" .. "Sunday"
	StartTime       string `json:"startTime" firestore:"startTime"` // "HH:MM"
	Subject         string `json:"subject" firestore:"subject"`
	DurationMinutes int    `json:"durationMinutes" firestore:"durationMinutes"`
	OwnerID         string `json:"ownerId" firestore:"ownerId"`
	OwnerName       string `json:"ownerName" firestore:"ownerName"`
	DepartmentID    string `json:"departmentId" firestore:"departmentId"`
}

// ScheduleStatus reports which class is in session and which one starts
// next. A nil ID means "none".
type ScheduleStatus struct {
	CurrentID *string `json:"currentId"`
	NextID    *string `json:"nextId"`
}
