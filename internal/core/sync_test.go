package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

// recordingUpserter records every batch and fails on call failOn (1-based).
type recordingUpserter struct {
	calls  [][]PropertyFileRecord
	failOn int
	err    error
	cancel context.CancelFunc
}

func (r *recordingUpserter) UpsertPropertyFiles(ctx context.Context, recs []PropertyFileRecord) error {
	batch := make([]PropertyFileRecord, len(recs))
	copy(batch, recs)
	r.calls = append(r.calls, batch)
	if len(r.calls) == r.failOn {
		return r.err
	}
	if r.cancel != nil && len(r.calls) == 1 {
		r.cancel()
	}
	return nil
}

func makeFiles(n int) []PropertyFile {
	files := make([]PropertyFile, n)
	for i := range files {
		files[i] = PropertyFile{
			FileNo:    fmt.Sprintf("F-%03d", i+1),
			OwnerCNIC: "12345-6789012-3",
			PlotValue: decimal.NewFromInt(int64(1000 * (i + 1))),
		}
	}
	return files
}

func TestBulkSync_BatchCount(t *testing.T) {
	tests := []struct {
		n           int
		wantBatches int
		wantLast    int
	}{
		{0, 0, 0},
		{1, 1, 1},
		{50, 1, 50},
		{51, 2, 1},
		{120, 3, 20},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d records", tt.n), func(t *testing.T) {
			up := &recordingUpserter{}
			res, err := BulkSync(context.Background(), up, makeFiles(tt.n), 0)
			if err != nil {
				t.Fatalf("BulkSync() error = %v", err)
			}
			if len(up.calls) != tt.wantBatches {
				t.Errorf("upsert calls = %d, want %d", len(up.calls), tt.wantBatches)
			}
			if res.Batches != tt.wantBatches || res.Committed != tt.wantBatches {
				t.Errorf("result = %+v, want %d batches committed", res, tt.wantBatches)
			}
			if res.Written != tt.n {
				t.Errorf("Written = %d, want %d", res.Written, tt.n)
			}
			if tt.wantBatches > 0 {
				if got := len(up.calls[len(up.calls)-1]); got != tt.wantLast {
					t.Errorf("last batch size = %d, want %d", got, tt.wantLast)
				}
			}
		})
	}
}

func TestBulkSync_PreservesOrderAndMaps(t *testing.T) {
	up := &recordingUpserter{}
	files := makeFiles(7)

	if _, err := BulkSync(context.Background(), up, files, 3); err != nil {
		t.Fatalf("BulkSync() error = %v", err)
	}

	var seen []string
	for _, batch := range up.calls {
		for _, rec := range batch {
			seen = append(seen, rec.FileNo)
			if rec.OwnerCNICNormalized.String != "1234567890123" {
				t.Errorf("%s: owner_cnic_normalized = %q", rec.FileNo, rec.OwnerCNICNormalized.String)
			}
		}
	}
	for i, f := range files {
		if seen[i] != f.FileNo {
			t.Errorf("record %d = %s, want %s", i, seen[i], f.FileNo)
		}
	}
	if len(up.calls) != 3 {
		t.Errorf("upsert calls = %d, want 3", len(up.calls))
	}
}

func TestBulkSync_AbortsOnFailure(t *testing.T) {
	storeErr := errors.New("connection reset by peer")
	up := &recordingUpserter{failOn: 2, err: storeErr}

	res, err := BulkSync(context.Background(), up, makeFiles(175), DefaultSyncBatchSize)
	if err == nil {
		t.Fatal("BulkSync() error = nil, want failure")
	}

	if len(up.calls) != 2 {
		t.Errorf("upsert calls = %d, want 2 (no calls after the failure)", len(up.calls))
	}
	if res.Committed != 1 || res.Written != 50 {
		t.Errorf("result = %+v, want 1 batch / 50 records committed", res)
	}
	if res.Batches != 4 {
		t.Errorf("Batches = %d, want 4", res.Batches)
	}

	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("error %v is not a *BatchError", err)
	}
	if batchErr.Batch != 1 || batchErr.Start != 50 || batchErr.End != 100 {
		t.Errorf("BatchError = %+v, want batch 1 records 50-100", batchErr)
	}
	if !errors.Is(err, storeErr) {
		t.Error("BatchError does not unwrap to the store error")
	}
	if got := MapError(err).Code; got != "SYNC001" {
		t.Errorf("MapError code = %q, want SYNC001", got)
	}
}

func TestBulkSync_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	up := &recordingUpserter{cancel: cancel}

	res, err := BulkSync(ctx, up, makeFiles(120), 50)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("BulkSync() error = %v, want context.Canceled", err)
	}
	if len(up.calls) != 1 || res.Committed != 1 {
		t.Errorf("calls = %d, committed = %d, want 1 and 1", len(up.calls), res.Committed)
	}
}

func TestBulkSync_RejectsMissingFileNo(t *testing.T) {
	up := &recordingUpserter{}
	files := makeFiles(3)
	files[2].FileNo = "  "

	_, err := BulkSync(context.Background(), up, files, 0)
	if !errors.Is(err, ErrEmptyFileNo) {
		t.Fatalf("BulkSync() error = %v, want ErrEmptyFileNo", err)
	}
	if len(up.calls) != 0 {
		t.Errorf("upsert calls = %d, want 0", len(up.calls))
	}
}
