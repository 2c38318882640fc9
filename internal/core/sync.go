package core

import (
	"context"
	"errors"
	"fmt"
)

// DefaultSyncBatchSize is the number of records sent per upsert call.
const DefaultSyncBatchSize = 50

// PropertyUpserter writes a batch of property records, inserting new file
// numbers and overwriting existing ones. A batch is applied atomically.
type PropertyUpserter interface {
	UpsertPropertyFiles(ctx context.Context, recs []PropertyFileRecord) error
}

// SyncResult reports how far a bulk sync got.
type SyncResult struct {
	Records   int `json:"records"`   // records submitted for sync
	Batches   int `json:"batches"`   // batches the records were split into
	Committed int `json:"committed"` // batches the store accepted
	Written   int `json:"written"`   // records in committed batches
}

// BatchError is returned when a batch fails. Batches before Batch are
// committed and batches after it were never sent.
type BatchError struct {
	Batch int // zero-based index of the failed batch
	Start int // index of the first record in the batch
	End   int // index one past the last record in the batch
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("sync batch %d (records %d-%d): %v", e.Batch+1, e.Start+1, e.End, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// ErrEmptyFileNo is returned when a record has no file number.
var ErrEmptyFileNo = errors.New("property file has no file number")

// BulkSync maps files to store shape and upserts them in sequential batches
// of batchSize (DefaultSyncBatchSize when batchSize <= 0).
//
// The first failing batch stops the run and is returned as a *BatchError.
// Earlier batches are not rolled back. Context cancellation is checked
// before every batch.
func BulkSync(ctx context.Context, up PropertyUpserter, files []PropertyFile, batchSize int) (SyncResult, error) {
	if batchSize <= 0 {
		batchSize = DefaultSyncBatchSize
	}

	recs := make([]PropertyFileRecord, 0, len(files))
	for i, f := range files {
		rec := ToStore(f)
		if rec.FileNo == "" {
			return SyncResult{Records: len(files)}, fmt.Errorf("record %d: %w", i+1, ErrEmptyFileNo)
		}
		recs = append(recs, rec)
	}

	result := SyncResult{
		Records: len(recs),
		Batches: (len(recs) + batchSize - 1) / batchSize,
	}

	for start := 0; start < len(recs); start += batchSize {
		end := min(start+batchSize, len(recs))
		batch := start / batchSize

		if err := ctx.Err(); err != nil {
			return result, &BatchError{Batch: batch, Start: start, End: end, Err: err}
		}

		if err := up.UpsertPropertyFiles(ctx, recs[start:end]); err != nil {
			return result, &BatchError{Batch: batch, Start: start, End: end, Err: err}
		}

		result.Committed++
		result.Written += end - start
	}

	return result, nil
}
