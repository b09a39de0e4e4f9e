// Package ledger implements batched create/delete operations against the
// external attendance store.
package ledger

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Rahul-7375/attendance-cist/models"
)

// Store is the external attendance collection. Implementations must be
// idempotent-safe at the granularity of a single record id.
type Store interface {
	Insert(ctx context.Context, rec models.AttendanceRecord) error
	DeleteBatch(ctx context.Context, ids []string) error
	ListAll(ctx context.Context) ([]models.AttendanceRecord, error)
	QueryByAttendee(ctx context.Context, attendeeID string) ([]models.AttendanceRecord, error)
}

// Ops wraps a Store with the ledger's batching and purge semantics.
type Ops struct {
	store     Store
	batchSize int
}

func New(store Store, batchSize int) *Ops {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Ops{store: store, batchSize: batchSize}
}

// Insert creates a single record. Duplicate marks for the same subject/day
// are permitted by design; downstream aggregation handles them.
func (o *Ops) Insert(ctx context.Context, rec models.AttendanceRecord) error {
	if err := o.store.Insert(ctx, rec); err != nil {
		return fmt.Errorf("insert attendance record: %w", err)
	}
	return nil
}

// DeleteOne removes a single record by id.
func (o *Ops) DeleteOne(ctx context.Context, id string) error {
	return o.DeleteMany(ctx, []string{id})
}

// DeleteMany removes the given records in store-sized batches. An empty set
// is a no-op, not an error.
func (o *Ops) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	for _, batch := range chunk(ids, o.batchSize) {
		if err := o.store.DeleteBatch(ctx, batch); err != nil {
			return fmt.Errorf("delete batch: %w", err)
		}
	}
	return nil
}

// ListByAttendee returns an attendee's records, most recent date first.
func (o *Ops) ListByAttendee(ctx context.Context, attendeeID string) ([]models.AttendanceRecord, error) {
	return o.store.QueryByAttendee(ctx, attendeeID)
}

// PurgeBySubjects deletes every record whose subject is in subjects. The
// whole ledger is read and filtered client-side — membership queries cap
// out on large sets server-side — then matches are deleted in fixed-size
// batches issued concurrently. Batches that fail are reported per-batch;
// batches that succeed are not rolled back. Returns the number of records
// in committed batches.
func (o *Ops) PurgeBySubjects(ctx context.Context, subjects []string) (int, error) {
	if len(subjects) == 0 {
		return 0, nil
	}
	members := make(map[string]struct{}, len(subjects))
	for _, s := range subjects {
		members[s] = struct{}{}
	}

	all, err := o.store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list ledger: %w", err)
	}

	var matched []string
	for _, rec := range all {
		if _, ok := members[rec.Subject]; ok {
			matched = append(matched, rec.ID)
		}
	}
	if len(matched) == 0 {
		return 0, nil
	}

	batches := chunk(matched, o.batchSize)
	batchErrs := make([]error, len(batches))

	var g errgroup.Group
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			// Record per-batch outcomes instead of failing the group: every
			// batch must be attempted and settle before we report.
			batchErrs[i] = o.store.DeleteBatch(ctx, batch)
			return nil
		})
	}
	_ = g.Wait()

	deleted := 0
	var result *multierror.Error
	for i, err := range batchErrs {
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("batch %d of %d (%d records): %w", i+1, len(batches), len(batches[i]), err))
			continue
		}
		deleted += len(batches[i])
	}
	log.Info().Int("matched", len(matched)).Int("deleted", deleted).Int("batches", len(batches)).
		Msg("subject purge settled")
	return deleted, result.ErrorOrNil()
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	return append(out, ids)
}
