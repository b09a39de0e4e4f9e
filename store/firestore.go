// Package store holds the Firestore-backed external collaborators: the
// user directory, the timetable collection and the attendance ledger.
package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Rahul-7375/attendance-cist/config"
	"github.com/Rahul-7375/attendance-cist/models"
)

const (
	usersCollection      = "users"
	timetableCollection  = "timetable"
	attendanceCollection = "attendance"
)

// NewClient dials Firestore through the Firebase app so the same
// credentials file covers every collection.
func NewClient(ctx context.Context, cfg config.FirestoreConfig) (*firestore.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return client, nil
}

// mapErr folds transport errors into the protocol's error kinds so callers
// can scope them to the data feed that failed.
func mapErr(err error) error {
	switch status.Code(err) {
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %v", models.ErrPermissionDenied, err)
	case codes.NotFound:
		return err
	default:
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
}

// Directory reads user documents. The core never writes here.
type Directory struct {
	client *firestore.Client
}

func NewDirectory(client *firestore.Client) *Directory {
	return &Directory{client: client}
}

func (d *Directory) get(ctx context.Context, id string, wantRole models.Role) (map[string]interface{}, error) {
	doc, err := d.client.Collection(usersCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	data := doc.Data()
	if role, _ := data["role"].(string); role != string(wantRole) {
		return nil, fmt.Errorf("user %s is not a %s", id, wantRole)
	}
	return data, nil
}

func (d *Directory) GetPresenter(ctx context.Context, id string) (models.Presenter, error) {
	data, err := d.get(ctx, id, models.RolePresenter)
	if err != nil {
		return models.Presenter{}, err
	}
	p := models.Presenter{ID: id}
	p.Name, _ = data["name"].(string)
	p.Department, _ = data["department"].(string)
	if raw, ok := data["subjects"].([]interface{}); ok {
		for _, s := range raw {
			if subject, ok := s.(string); ok {
				p.Subjects = append(p.Subjects, subject)
			}
		}
	}
	return p, nil
}

func (d *Directory) GetAttendee(ctx context.Context, id string) (models.Attendee, error) {
	data, err := d.get(ctx, id, models.RoleAttendee)
	if err != nil {
		return models.Attendee{}, err
	}
	a := models.Attendee{ID: id}
	a.Name, _ = data["name"].(string)
	a.Department, _ = data["department"].(string)
	a.ReferenceFace, _ = data["referenceFace"].(string)
	return a, nil
}

// Timetable is the department-scoped timetable collection.
type Timetable struct {
	client *firestore.Client
}

func NewTimetable(client *firestore.Client) *Timetable {
	return &Timetable{client: client}
}

func (t *Timetable) ListByDepartment(ctx context.Context, departmentID string) ([]models.TimetableEntry, error) {
	iter := t.client.Collection(timetableCollection).
		Where("departmentId", "==", departmentID).Documents(ctx)
	defer iter.Stop()

	var entries []models.TimetableEntry
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapErr(err)
		}
		var e models.TimetableEntry
		if err := doc.DataTo(&e); err != nil {
			return nil, fmt.Errorf("decode timetable entry %s: %w", doc.Ref.ID, err)
		}
		e.ID = doc.Ref.ID
		entries = append(entries, e)
	}
	return entries, nil
}

func (t *Timetable) Create(ctx context.Context, entry models.TimetableEntry) (models.TimetableEntry, error) {
	ref := t.client.Collection(timetableCollection).NewDoc()
	entry.ID = ref.ID
	if _, err := ref.Set(ctx, entry); err != nil {
		return models.TimetableEntry{}, mapErr(err)
	}
	return entry, nil
}

func (t *Timetable) Update(ctx context.Context, entry models.TimetableEntry) error {
	if _, err := t.client.Collection(timetableCollection).Doc(entry.ID).Set(ctx, entry); err != nil {
		return mapErr(err)
	}
	return nil
}

func (t *Timetable) Get(ctx context.Context, id string) (models.TimetableEntry, error) {
	doc, err := t.client.Collection(timetableCollection).Doc(id).Get(ctx)
	if err != nil {
		return models.TimetableEntry{}, mapErr(err)
	}
	var e models.TimetableEntry
	if err := doc.DataTo(&e); err != nil {
		return models.TimetableEntry{}, fmt.Errorf("decode timetable entry %s: %w", id, err)
	}
	e.ID = doc.Ref.ID
	return e, nil
}

func (t *Timetable) Delete(ctx context.Context, id string) error {
	if _, err := t.client.Collection(timetableCollection).Doc(id).Delete(ctx); err != nil {
		return mapErr(err)
	}
	return nil
}

// Attendance implements ledger.Store over the attendance collection.
type Attendance struct {
	client *firestore.Client
}

func NewAttendance(client *firestore.Client) *Attendance {
	return &Attendance{client: client}
}

func (a *Attendance) Insert(ctx context.Context, rec models.AttendanceRecord) error {
	if _, err := a.client.Collection(attendanceCollection).Doc(rec.ID).Set(ctx, rec); err != nil {
		return mapErr(err)
	}
	return nil
}

// DeleteBatch commits one write batch. Callers keep batches at or under the
// store's 500-write commit limit.
func (a *Attendance) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	batch := a.client.Batch()
	for _, id := range ids {
		batch.Delete(a.client.Collection(attendanceCollection).Doc(id))
	}
	if _, err := batch.Commit(ctx); err != nil {
		return mapErr(err)
	}
	return nil
}

func (a *Attendance) ListAll(ctx context.Context) ([]models.AttendanceRecord, error) {
	iter := a.client.Collection(attendanceCollection).Documents(ctx)
	defer iter.Stop()
	return collectRecords(iter)
}

func (a *Attendance) QueryByAttendee(ctx context.Context, attendeeID string) ([]models.AttendanceRecord, error) {
	iter := a.client.Collection(attendanceCollection).
		Where("attendeeId", "==", attendeeID).
		OrderBy("date", firestore.Desc).Documents(ctx)
	defer iter.Stop()
	return collectRecords(iter)
}

func collectRecords(iter *firestore.DocumentIterator) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapErr(err)
		}
		var rec models.AttendanceRecord
		if err := doc.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("decode attendance record %s: %w", doc.Ref.ID, err)
		}
		rec.ID = doc.Ref.ID
		records = append(records, rec)
	}
	return records, nil
}
