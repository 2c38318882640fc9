package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/jackc/pgx/v5"
)

const propertyFileColumns = `file_no, currency_no, plot_size, plot_value, balance, receivable,
	total_receivable, payment_received, surcharge, overdue, owner_name, owner_cnic,
	owner_cnic_normalized, father_name, cell_no, reg_date, address, plot_no, block,
	park, corner, main_boulevard, transactions, uploaded_statement_url,
	uploaded_statement_name, last_notified`

// upsertPropertyFileSQL writes every column; the statement and notification
// columns are kept when the incoming record has none.
const upsertPropertyFileSQL = `
	INSERT INTO property_files (` + propertyFileColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		$17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
	ON CONFLICT (file_no) DO UPDATE SET
		currency_no = EXCLUDED.currency_no,
		plot_size = EXCLUDED.plot_size,
		plot_value = EXCLUDED.plot_value,
		balance = EXCLUDED.balance,
		receivable = EXCLUDED.receivable,
		total_receivable = EXCLUDED.total_receivable,
		payment_received = EXCLUDED.payment_received,
		surcharge = EXCLUDED.surcharge,
		overdue = EXCLUDED.overdue,
		owner_name = EXCLUDED.owner_name,
		owner_cnic = EXCLUDED.owner_cnic,
		owner_cnic_normalized = EXCLUDED.owner_cnic_normalized,
		father_name = EXCLUDED.father_name,
		cell_no = EXCLUDED.cell_no,
		reg_date = EXCLUDED.reg_date,
		address = EXCLUDED.address,
		plot_no = EXCLUDED.plot_no,
		block = EXCLUDED.block,
		park = EXCLUDED.park,
		corner = EXCLUDED.corner,
		main_boulevard = EXCLUDED.main_boulevard,
		transactions = EXCLUDED.transactions,
		uploaded_statement_url = COALESCE(EXCLUDED.uploaded_statement_url, property_files.uploaded_statement_url),
		uploaded_statement_name = COALESCE(EXCLUDED.uploaded_statement_name, property_files.uploaded_statement_name),
		last_notified = COALESCE(EXCLUDED.last_notified, property_files.last_notified),
		updated_at = now()`

func scanPropertyFile(row pgx.Row) (*core.PropertyFileRecord, error) {
	var r core.PropertyFileRecord
	err := row.Scan(
		&r.FileNo, &r.CurrencyNo, &r.PlotSize, &r.PlotValue, &r.Balance, &r.Receivable,
		&r.TotalReceivable, &r.PaymentReceived, &r.Surcharge, &r.Overdue, &r.OwnerName, &r.OwnerCNIC,
		&r.OwnerCNICNormalized, &r.FatherName, &r.CellNo, &r.RegDate, &r.Address, &r.PlotNo, &r.Block,
		&r.Park, &r.Corner, &r.MainBoulevard, &r.Transactions, &r.UploadedStatementURL,
		&r.UploadedStatementName, &r.LastNotified,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func propertyFileArgs(r core.PropertyFileRecord) []any {
	return []any{
		r.FileNo, r.CurrencyNo, r.PlotSize, r.PlotValue, r.Balance, r.Receivable,
		r.TotalReceivable, r.PaymentReceived, r.Surcharge, r.Overdue, r.OwnerName, r.OwnerCNIC,
		r.OwnerCNICNormalized, r.FatherName, r.CellNo, r.RegDate, r.Address, r.PlotNo, r.Block,
		r.Park, r.Corner, r.MainBoulevard, string(r.Transactions), r.UploadedStatementURL,
		r.UploadedStatementName, r.LastNotified,
	}
}

func (s *Store) queryFiles(ctx context.Context, query string, args ...any) ([]core.PropertyFile, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []core.PropertyFileRecord
	for rows.Next() {
		r, err := scanPropertyFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan property file: %w", err)
		}
		recs = append(recs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return core.ToViews(recs), nil
}

// FetchUserFiles returns the files owned by cnic, matched on the
// normalized CNIC. A CNIC without digits owns nothing.
func (s *Store) FetchUserFiles(ctx context.Context, cnic string) ([]core.PropertyFile, error) {
	normalized := core.NormalizeCNIC(cnic)
	if normalized == "" {
		return []core.PropertyFile{}, nil
	}
	files, err := s.queryFiles(ctx,
		`SELECT `+propertyFileColumns+` FROM property_files WHERE owner_cnic_normalized = $1 ORDER BY file_no`,
		normalized)
	if err != nil {
		return nil, fmt.Errorf("fetch user files: %w", err)
	}
	return files, nil
}

// FetchAllFiles returns every property file ordered by file number.
func (s *Store) FetchAllFiles(ctx context.Context) ([]core.PropertyFile, error) {
	files, err := s.queryFiles(ctx, `SELECT `+propertyFileColumns+` FROM property_files ORDER BY file_no`)
	if err != nil {
		return nil, fmt.Errorf("fetch all files: %w", err)
	}
	return files, nil
}

// GetFile returns one file, or core.ErrFileNotFound.
func (s *Store) GetFile(ctx context.Context, fileNo string) (*core.PropertyFile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+propertyFileColumns+` FROM property_files WHERE file_no = $1`, fileNo)
	r, err := scanPropertyFile(row)
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", fileNo, notFound(err, core.ErrFileNotFound))
	}
	f := core.ToView(*r)
	return &f, nil
}

// UpsertPropertyFiles writes one batch in a single transaction, keyed on
// file_no. Either every record in the batch is applied or none is.
func (s *Store) UpsertPropertyFiles(ctx context.Context, recs []core.PropertyFileRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	batch := &pgx.Batch{}
	for _, r := range recs {
		batch.Queue(upsertPropertyFileSQL, propertyFileArgs(r)...)
	}

	br := tx.SendBatch(ctx, batch)
	for _, r := range recs {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("upsert %s: %w", r.FileNo, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// UpdateLastNotified stamps a file with the time its owner was notified.
func (s *Store) UpdateLastNotified(ctx context.Context, fileNo string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE property_files SET last_notified = $2, updated_at = now() WHERE file_no = $1`,
		fileNo, core.NotifiedAt(at))
	if err != nil {
		return fmt.Errorf("update last notified %s: %w", fileNo, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update last notified %s: %w", fileNo, core.ErrFileNotFound)
	}
	return nil
}

// SetStatement records an uploaded statement document on a file.
func (s *Store) SetStatement(ctx context.Context, fileNo, url, name string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE property_files SET uploaded_statement_url = $2, uploaded_statement_name = $3, updated_at = now()
		 WHERE file_no = $1`,
		fileNo, url, name)
	if err != nil {
		return fmt.Errorf("set statement %s: %w", fileNo, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set statement %s: %w", fileNo, core.ErrFileNotFound)
	}
	return nil
}
