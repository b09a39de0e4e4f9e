// Package memory holds a mutex-guarded in-memory attendance store. It backs
// the test suites and doubles as a fixture with injectable batch failures.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Rahul-7375/attendance-cist/models"
)

// AttendanceStore keeps records in insertion order so batch composition is
// deterministic under test.
type AttendanceStore struct {
	mu      sync.Mutex
	order   []string
	records map[string]models.AttendanceRecord

	// FailDelete, when set, is consulted per batch; a non-nil return fails
	// that batch without touching it.
	FailDelete func(ids []string) error

	deleteCalls int
}

func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{records: make(map[string]models.AttendanceRecord)}
}

func (s *AttendanceStore) Insert(_ context.Context, rec models.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; !exists {
		s.order = append(s.order, rec.ID)
	}
	s.records[rec.ID] = rec
	return nil
}

func (s *AttendanceStore) DeleteBatch(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	if s.FailDelete != nil {
		if err := s.FailDelete(ids); err != nil {
			return err
		}
	}
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

func (s *AttendanceStore) ListAll(_ context.Context) ([]models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AttendanceRecord, 0, len(s.records))
	for _, id := range s.order {
		if rec, ok := s.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *AttendanceStore) QueryByAttendee(_ context.Context, attendeeID string) ([]models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AttendanceRecord
	for _, id := range s.order {
		if rec, ok := s.records[id]; ok && rec.AttendeeID == attendeeID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

// Len reports how many records remain.
func (s *AttendanceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// DeleteCalls reports how many batch commits were issued.
func (s *AttendanceStore) DeleteCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteCalls
}

// Has reports whether a record id is still present.
func (s *AttendanceStore) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[id]
	return ok
}
