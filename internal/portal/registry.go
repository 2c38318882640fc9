package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/JonMunkholm/RegistryPortal/internal/logging"
	"github.com/google/uuid"
)

// ImportData is a registry handed to ImportDatabase. A nil set is left
// untouched.
type ImportData struct {
	Users []core.User         `json:"users"`
	Files []core.PropertyFile `json:"files"`
}

// ImportDatabase pins the session to imported data. A destructive import
// replaces the session's users and all-files sets with the given ones;
// otherwise entries are merged in by file number and email. Admin only.
func (s *Service) ImportDatabase(ctx context.Context, sess *Session, data ImportData, destructive bool) (SessionState, error) {
	sess.mu.Lock()
	if err := sess.requireAdmin(); err != nil {
		sess.mu.Unlock()
		return SessionState{}, err
	}
	s.importLocked(sess, data, destructive)
	s.audit(ctx, sess, core.AuditLogParams{
		Action:       core.ActionImport,
		RowsAffected: len(data.Users) + len(data.Files),
		Details: map[string]any{
			"users":       len(data.Users),
			"files":       len(data.Files),
			"destructive": destructive,
		},
	})
	sess.mu.Unlock()
	return sess.State(), nil
}

func (s *Service) importLocked(sess *Session, data ImportData, destructive bool) {
	sess.pinned = true
	if destructive {
		if data.Users != nil {
			sess.users = cloneUsers(data.Users)
		}
		if data.Files != nil {
			sess.allFiles = cloneFiles(data.Files)
		}
		return
	}
	sess.users = mergeUsers(sess.users, data.Users)
	sess.allFiles = mergeFiles(sess.allFiles, data.Files)
}

func mergeFiles(dst, src []core.PropertyFile) []core.PropertyFile {
	pos := make(map[string]int, len(dst))
	for i, f := range dst {
		pos[f.FileNo] = i
	}
	for _, f := range src {
		if i, ok := pos[f.FileNo]; ok {
			dst[i] = f
			continue
		}
		pos[f.FileNo] = len(dst)
		dst = append(dst, f)
	}
	return dst
}

func mergeUsers(dst, src []core.User) []core.User {
	pos := make(map[string]int, len(dst))
	for i, u := range dst {
		pos[strings.ToLower(u.Email)] = i
	}
	for _, u := range src {
		key := strings.ToLower(u.Email)
		if i, ok := pos[key]; ok {
			if u.ID == "" {
				u.ID = dst[i].ID
			}
			dst[i] = u
			continue
		}
		pos[key] = len(dst)
		dst = append(dst, u)
	}
	return dst
}

// CSVImport is one uploaded CSV file.
type CSVImport struct {
	TableKey    string
	FileName    string
	Body        io.Reader
	Destructive bool
	// Push also writes the accepted records to the backend.
	Push bool
}

// CSVImportReport is the outcome of ImportCSV.
type CSVImportReport struct {
	Result *core.ImportResult `json:"result"`
	Sync   *core.SyncResult   `json:"sync,omitempty"`
	Pinned bool               `json:"pinned"`
}

// ImportCSV parses an uploaded CSV, pins the session to the accepted
// records and, when asked, pushes them to the backend. Invalid rows are
// skipped and reported with their line numbers. Admin only.
func (s *Service) ImportCSV(ctx context.Context, sess *Session, in CSVImport) (*CSVImportReport, error) {
	if err := s.checkAdmin(sess); err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	res, err := core.ParseImport(ctx, in.TableKey, in.FileName, in.Body, s.opts.MaxImportSize)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if in.Push {
		if err := s.resolveUserIDs(ctx, sess.users, res.Users); err != nil {
			return nil, err
		}
	}
	s.importLocked(sess, ImportData{Users: res.Users, Files: res.Files}, in.Destructive)

	report := &CSVImportReport{Result: res, Pinned: true}
	params := core.AuditLogParams{
		Action:       core.ActionImport,
		Target:       in.TableKey,
		RowsAffected: res.Accepted,
		Details: map[string]any{
			"file":        in.FileName,
			"total":       res.TotalRows,
			"skipped":     res.Skipped,
			"destructive": in.Destructive,
			"push":        in.Push,
		},
	}

	if in.Push {
		pushed, err := s.pushImport(ctx, sess, res)
		report.Sync = pushed
		if err != nil {
			params.Reason = err.Error()
			s.audit(ctx, sess, params)
			return report, err
		}
	}
	s.audit(ctx, sess, params)

	logging.FromContext(ctx).Info("import complete",
		"table", in.TableKey,
		"file", in.FileName,
		"accepted", res.Accepted,
		"skipped", res.Skipped,
		"duration", res.Duration,
	)
	return report, nil
}

func (s *Service) pushImport(ctx context.Context, sess *Session, res *core.ImportResult) (*core.SyncResult, error) {
	if len(res.Files) > 0 {
		result, err := s.bulkSync(ctx, res.Files)
		return &result, err
	}
	for i, u := range res.Users {
		if err := s.backend.UpsertProfile(ctx, core.UserToProfile(u)); err != nil {
			return &core.SyncResult{Records: len(res.Users), Written: i}, fmt.Errorf("push user %s: %w", u.Email, err)
		}
		res.Users[i] = u
		sess.users = mergeUsers(sess.users, []core.User{u})
	}
	return &core.SyncResult{Records: len(res.Users), Written: len(res.Users)}, nil
}

// resolveUserIDs gives every user without a valid ID the ID already held
// for its email, first in the session and then in the backend, and mints
// one only for addresses seen nowhere.
func (s *Service) resolveUserIDs(ctx context.Context, known, users []core.User) error {
	byEmail := make(map[string]string, len(known))
	for _, u := range known {
		if _, err := uuid.Parse(u.ID); err == nil {
			byEmail[strings.ToLower(u.Email)] = u.ID
		}
	}
	for i := range users {
		u := &users[i]
		if _, err := uuid.Parse(u.ID); err == nil {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(u.Email))
		if id, ok := byEmail[key]; ok && key != "" {
			u.ID = id
			continue
		}
		p, err := s.backend.FindProfileByEmail(ctx, key)
		switch {
		case err == nil:
			u.ID = p.ID
		case errors.Is(err, core.ErrUserNotFound):
			u.ID = uuid.NewString()
		default:
			return fmt.Errorf("resolve user %s: %w", u.Email, err)
		}
		if key != "" {
			byEmail[key] = u.ID
		}
	}
	return nil
}

// ResetDatabase drops pinned data: the session gets the seed users and
// files back, leaves pinned mode and syncs again. Admin only.
func (s *Service) ResetDatabase(ctx context.Context, sess *Session) (SessionState, error) {
	sess.mu.Lock()
	if err := sess.requireAdmin(); err != nil {
		sess.mu.Unlock()
		return SessionState{}, err
	}
	sess.users = cloneUsers(s.opts.Seed.Users)
	sess.allFiles = cloneFiles(s.opts.Seed.Files)
	sess.pinned = false
	s.syncLocked(ctx, sess)
	s.audit(ctx, sess, core.AuditLogParams{Action: core.ActionReset, Target: "session"})
	sess.mu.Unlock()
	return sess.State(), nil
}

// SyncToCloud upserts the session's all-files set to the backend in
// batches. A failed batch stops the run; earlier batches stay written.
// Admin only.
func (s *Service) SyncToCloud(ctx context.Context, sess *Session) (core.SyncResult, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.requireAdmin(); err != nil {
		return core.SyncResult{}, err
	}

	result, err := s.bulkSync(ctx, sess.allFiles)
	params := core.AuditLogParams{
		Action:       core.ActionBulkSync,
		Target:       "property_files",
		RowsAffected: result.Written,
		Details: map[string]any{
			"records":   result.Records,
			"batches":   result.Batches,
			"committed": result.Committed,
		},
	}
	if err != nil {
		params.Reason = err.Error()
	}
	s.audit(ctx, sess, params)
	return result, err
}

func (s *Service) bulkSync(ctx context.Context, files []core.PropertyFile) (core.SyncResult, error) {
	if s.opts.SyncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.SyncTimeout)
		defer cancel()
	}
	result, err := core.BulkSync(ctx, s.backend, files, s.opts.SyncBatchSize)
	if err != nil {
		logging.FromContext(ctx).Error("cloud sync failed",
			"records", result.Records,
			"committed_batches", result.Committed,
			"error", err,
		)
		return result, err
	}
	logging.FromContext(ctx).Info("cloud sync complete",
		"records", result.Records,
		"batches", result.Batches,
	)
	return result, nil
}

func (s *Service) checkAdmin(sess *Session) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.requireAdmin()
}

// Layouts lists the registered CSV import layouts.
func (s *Service) Layouts() []core.TableInfo {
	defs := core.All()
	out := make([]core.TableInfo, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Info)
	}
	return out
}

// Template returns an empty CSV with the header row of a layout.
func (s *Service) Template(tableKey string) ([]byte, error) {
	def, ok := core.Get(tableKey)
	if !ok {
		return nil, fmt.Errorf("unknown layout %q", tableKey)
	}
	return core.TemplateCSV(def), nil
}
