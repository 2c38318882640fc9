package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/JonMunkholm/RegistryPortal/internal/logging"
	"github.com/shopspring/decimal"
)

// SyncOutcome says what a record sync did.
type SyncOutcome string

const (
	SyncSkipped SyncOutcome = "pinned" // session is pinned, nothing fetched
	SyncFresh   SyncOutcome = "synced" // cached set replaced from the backend
	SyncCached  SyncOutcome = "cached" // backend unreachable or empty, cache kept
)

// SyncPropertyRecords refreshes the session's cached files from the
// backend. Admins get every file, clients the files they own. Read failures
// keep the cached set.
func (s *Service) SyncPropertyRecords(ctx context.Context, sess *Session) (SyncOutcome, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.requireAuthorized(); err != nil {
		return "", err
	}
	return s.syncLocked(ctx, sess), nil
}

func (s *Service) syncLocked(ctx context.Context, sess *Session) SyncOutcome {
	if sess.pinned {
		return SyncSkipped
	}
	log := logging.FromContext(ctx)

	if sess.user.Role.IsAdmin() {
		files, err := s.backend.FetchAllFiles(ctx)
		if err != nil {
			log.Warn("registry sync suspended, using local cache", "error", err)
			return SyncCached
		}
		if len(files) == 0 {
			return SyncCached
		}
		sess.allFiles = files
		return SyncFresh
	}

	files, err := s.backend.FetchUserFiles(ctx, sess.user.CNIC)
	if err != nil {
		log.Warn("registry sync suspended, using local cache", "error", err)
		return SyncCached
	}
	sess.userFiles = files
	return SyncFresh
}

// Summary totals the files on a dashboard.
type Summary struct {
	Files           int             `json:"files"`
	PlotValue       decimal.Decimal `json:"plotValue"`
	PaymentReceived decimal.Decimal `json:"paymentReceived"`
	Balance         decimal.Decimal `json:"balance"`
	Overdue         decimal.Decimal `json:"overdue"`
}

// Dashboard is what the signed-in user sees first.
type Dashboard struct {
	User    core.User           `json:"user"`
	Pinned  bool                `json:"pinned"`
	Files   []core.PropertyFile `json:"files"`
	Summary Summary             `json:"summary"`
}

// Dashboard returns the files visible to the session: the all-files set
// for admins and the user-files set for clients.
func (s *Service) Dashboard(ctx context.Context, sess *Session) (Dashboard, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.requireAuthorized(); err != nil {
		return Dashboard{}, err
	}
	files := cloneFiles(sess.visibleFiles())
	return Dashboard{
		User:    sess.user,
		Pinned:  sess.pinned,
		Files:   files,
		Summary: summarize(files),
	}, nil
}

func summarize(files []core.PropertyFile) Summary {
	sum := Summary{Files: len(files)}
	for _, f := range files {
		sum.PlotValue = sum.PlotValue.Add(f.PlotValue)
		sum.PaymentReceived = sum.PaymentReceived.Add(f.PaymentReceived)
		sum.Balance = sum.Balance.Add(f.Balance)
		sum.Overdue = sum.Overdue.Add(f.Overdue)
	}
	return sum
}

// ListFiles returns the admin's all-files set, optionally filtered by a
// case-insensitive search over file number, owner name and CNIC.
func (s *Service) ListFiles(ctx context.Context, sess *Session, search string) ([]core.PropertyFile, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.requireAdmin(); err != nil {
		return nil, err
	}
	search = strings.ToLower(strings.TrimSpace(search))
	out := make([]core.PropertyFile, 0, len(sess.allFiles))
	for _, f := range sess.allFiles {
		if search == "" || fileMatches(f, search) {
			out = append(out, f)
		}
	}
	return out, nil
}

func fileMatches(f core.PropertyFile, term string) bool {
	if strings.Contains(strings.ToLower(f.FileNo), term) ||
		strings.Contains(strings.ToLower(f.OwnerName), term) {
		return true
	}
	// Only CNIC-shaped terms are compared against the owner CNIC.
	if strings.Trim(term, "0123456789- ") != "" {
		return false
	}
	digits := core.NormalizeCNIC(term)
	return digits != "" && strings.Contains(core.NormalizeCNIC(f.OwnerCNIC), digits)
}

// GetFile returns one file the session may see. Admins may see any file;
// clients only files owned by their normalized CNIC. Files that exist but
// belong to someone else are reported as not found.
func (s *Service) GetFile(ctx context.Context, sess *Session, fileNo string) (core.PropertyFile, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.requireAuthorized(); err != nil {
		return core.PropertyFile{}, err
	}

	for _, f := range sess.visibleFiles() {
		if f.FileNo == fileNo {
			return f, nil
		}
	}
	if sess.pinned && sess.user.Role.IsAdmin() {
		return core.PropertyFile{}, fmt.Errorf("get file %s: %w", fileNo, core.ErrFileNotFound)
	}

	f, err := s.backend.GetFile(ctx, fileNo)
	if err != nil {
		return core.PropertyFile{}, err
	}
	if !sess.user.Role.IsAdmin() && !f.OwnedBy(sess.user.CNIC) {
		return core.PropertyFile{}, fmt.Errorf("get file %s: %w", fileNo, core.ErrFileNotFound)
	}
	return *f, nil
}

// UpdateLastNotified stamps a file with the current time. Admin only.
func (s *Service) UpdateLastNotified(ctx context.Context, sess *Session, fileNo string) (core.PropertyFile, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.requireAdmin(); err != nil {
		return core.PropertyFile{}, err
	}

	at := core.NotifiedAt(s.now())
	err := s.backend.UpdateLastNotified(ctx, fileNo, at)
	if err != nil && !(sess.pinned && errors.Is(err, core.ErrFileNotFound) && sess.hasFile(fileNo)) {
		return core.PropertyFile{}, err
	}
	sess.updateCachedFile(fileNo, func(f *core.PropertyFile) { f.LastNotified = &at })
	s.audit(ctx, sess, core.AuditLogParams{Action: core.ActionNotify, Target: fileNo, RowsAffected: 1})

	return s.cachedOrFetched(ctx, sess, fileNo)
}

// AttachStatement stores an uploaded statement document and records its
// URL and name on the file. Admin only.
func (s *Service) AttachStatement(ctx context.Context, sess *Session, fileNo, name string, r io.Reader) (core.PropertyFile, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.requireAdmin(); err != nil {
		return core.PropertyFile{}, err
	}
	if _, err := s.backend.GetFile(ctx, fileNo); err != nil {
		return core.PropertyFile{}, err
	}

	url, err := s.objects.PutStatement(ctx, fileNo, name, r)
	if err != nil {
		return core.PropertyFile{}, fmt.Errorf("store statement: %w", err)
	}
	if err := s.backend.SetStatement(ctx, fileNo, url, name); err != nil {
		return core.PropertyFile{}, err
	}
	sess.updateCachedFile(fileNo, func(f *core.PropertyFile) {
		f.UploadedStatementURL = url
		f.UploadedStatementName = name
	})
	s.audit(ctx, sess, core.AuditLogParams{
		Action:       core.ActionStatementUpload,
		Target:       fileNo,
		RowsAffected: 1,
		Details:      map[string]any{"name": name, "url": url},
	})

	return s.cachedOrFetched(ctx, sess, fileNo)
}

func (s *Session) hasFile(fileNo string) bool {
	for _, f := range s.allFiles {
		if f.FileNo == fileNo {
			return true
		}
	}
	return false
}

func (s *Service) cachedOrFetched(ctx context.Context, sess *Session, fileNo string) (core.PropertyFile, error) {
	for _, f := range sess.visibleFiles() {
		if f.FileNo == fileNo {
			return f, nil
		}
	}
	f, err := s.backend.GetFile(ctx, fileNo)
	if err != nil {
		return core.PropertyFile{}, err
	}
	return *f, nil
}
