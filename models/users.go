package models

// Role tags the two kinds of users the protocol knows about. Each role gets
// its own typed accessor set instead of duck-typed optional fields.
type Role string

const (
	RolePresenter Role = "presenter"
	RoleAttendee  Role = "attendee"
)

// Presenter is the directory view of a session presenter.
type Presenter struct {
	ID         string   `json:"id" firestore:"id,omitempty"`
	Name       string   `json:"name" firestore:"name"`
	Department string   `json:"department" firestore:"department"`
	Subjects   []string `json:"subjects" firestore:"subjects"`
}

// Attendee is the directory view of an attendee, including the stored
// reference face sample the matcher compares against.
type Attendee struct {
	ID            string `json:"id" firestore:"id,omitempty"`
	Name          string `json:"name" firestore:"name"`
	Department    string `json:"department" firestore:"department"`
	ReferenceFace string `json:"referenceFace" firestore:"referenceFace"` // base64 image
}
