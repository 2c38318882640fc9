// Package portaltest provides in-memory collaborators for portal.Service.
package portaltest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/RegistryPortal/internal/auth"
	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/google/uuid"
)

// Code is the one-time code the fake authenticator accepts.
const Code = "123456"

// Backend is an in-memory record store.
type Backend struct {
	mu sync.Mutex

	files    map[string]core.PropertyFile
	profiles map[string]core.Profile
	audit    []core.AuditEntry

	// UpsertCalls counts UpsertPropertyFiles calls.
	UpsertCalls int
	// FailUpsertCall makes the n-th UpsertPropertyFiles call (1-based) fail.
	FailUpsertCall int
	// FetchErr is returned by FetchAllFiles and FetchUserFiles when set.
	FetchErr error
}

// NewBackend returns an empty Backend.
func NewBackend() *Backend {
	return &Backend{
		files:    make(map[string]core.PropertyFile),
		profiles: make(map[string]core.Profile),
	}
}

// AddFiles stores files as if they had been synced earlier.
func (b *Backend) AddFiles(files ...core.PropertyFile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, f := range files {
		b.files[f.FileNo] = core.ToView(core.ToStore(f))
	}
}

// AddUser stores a profile for u.
func (b *Backend) AddUser(u core.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profiles[u.ID] = core.UserToProfile(u)
}

// FileCount returns the number of stored files.
func (b *Backend) FileCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.files)
}

// AuditActions returns the recorded audit actions in order.
func (b *Backend) AuditActions() []core.AuditAction {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]core.AuditAction, 0, len(b.audit))
	for _, e := range b.audit {
		out = append(out, e.Action)
	}
	return out
}

func (b *Backend) UpsertPropertyFiles(_ context.Context, recs []core.PropertyFileRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.UpsertCalls++
	if b.FailUpsertCall > 0 && b.UpsertCalls == b.FailUpsertCall {
		return errors.New("duplicate key value violates unique constraint")
	}
	for _, r := range recs {
		b.files[r.FileNo] = core.ToView(r)
	}
	return nil
}

func (b *Backend) InsertAudit(_ context.Context, e core.AuditEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.audit = append(b.audit, e)
	return nil
}

func (b *Backend) ListAudit(_ context.Context, f core.AuditLogFilter) ([]core.AuditEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]core.AuditEntry, 0, len(b.audit))
	for i := len(b.audit) - 1; i >= 0; i-- {
		e := b.audit[i]
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (b *Backend) sortedFiles(keep func(core.PropertyFile) bool) []core.PropertyFile {
	out := make([]core.PropertyFile, 0, len(b.files))
	for _, f := range b.files {
		if keep(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileNo < out[j].FileNo })
	return out
}

func (b *Backend) FetchUserFiles(_ context.Context, cnic string) ([]core.PropertyFile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FetchErr != nil {
		return nil, b.FetchErr
	}
	normalized := core.NormalizeCNIC(cnic)
	return b.sortedFiles(func(f core.PropertyFile) bool {
		return normalized != "" && core.NormalizeCNIC(f.OwnerCNIC) == normalized
	}), nil
}

func (b *Backend) FetchAllFiles(_ context.Context) ([]core.PropertyFile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FetchErr != nil {
		return nil, b.FetchErr
	}
	return b.sortedFiles(func(core.PropertyFile) bool { return true }), nil
}

func (b *Backend) GetFile(_ context.Context, fileNo string) (*core.PropertyFile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.files[fileNo]
	if !ok {
		return nil, fmt.Errorf("get file %s: %w", fileNo, core.ErrFileNotFound)
	}
	return &f, nil
}

func (b *Backend) UpdateLastNotified(_ context.Context, fileNo string, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.files[fileNo]
	if !ok {
		return fmt.Errorf("update last notified %s: %w", fileNo, core.ErrFileNotFound)
	}
	at = core.NotifiedAt(at)
	f.LastNotified = &at
	b.files[fileNo] = f
	return nil
}

func (b *Backend) SetStatement(_ context.Context, fileNo, url, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.files[fileNo]
	if !ok {
		return fmt.Errorf("set statement %s: %w", fileNo, core.ErrFileNotFound)
	}
	f.UploadedStatementURL, f.UploadedStatementName = url, name
	b.files[fileNo] = f
	return nil
}

func (b *Backend) GetProfile(_ context.Context, id string) (*core.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.profiles[id]
	if !ok {
		return nil, fmt.Errorf("get profile %s: %w", id, core.ErrUserNotFound)
	}
	return &p, nil
}

func (b *Backend) FindProfileByCNIC(_ context.Context, cnic string) (*core.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.profiles {
		if core.SameCNIC(p.CNIC.String, cnic) {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("find profile by cnic: %w", core.ErrUserNotFound)
}

func (b *Backend) FindProfileByEmail(_ context.Context, email string) (*core.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.profiles {
		if email != "" && strings.EqualFold(p.Email.String, strings.TrimSpace(email)) {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("find profile by email: %w", core.ErrUserNotFound)
}

func (b *Backend) UpsertProfile(_ context.Context, p core.Profile) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profiles[p.ID] = p
	return nil
}

func (b *Backend) ListProfiles(_ context.Context, search string) ([]core.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	term := strings.ToLower(search)
	out := make([]core.Profile, 0, len(b.profiles))
	for _, p := range b.profiles {
		if term == "" || strings.Contains(strings.ToLower(p.Name.String+" "+p.Email.String+" "+p.CNIC.String), term) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name.String < out[j].Name.String })
	return out, nil
}

func (b *Backend) DeleteProfile(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.profiles[id]; !ok {
		return fmt.Errorf("delete profile %s: %w", id, core.ErrUserNotFound)
	}
	delete(b.profiles, id)
	return nil
}

// Auth is an in-memory authenticator. Every issued code is Code.
type Auth struct {
	mu sync.Mutex

	identities map[string]*auth.Identity // by email
	passwords  map[string]string
	pending    map[string]auth.OTPPurpose
	sessions   map[string]*auth.Session
	seq        int
}

// NewAuth returns an empty Auth.
func NewAuth() *Auth {
	return &Auth{
		identities: make(map[string]*auth.Identity),
		passwords:  make(map[string]string),
		pending:    make(map[string]auth.OTPPurpose),
		sessions:   make(map[string]*auth.Session),
	}
}

// AddIdentity registers a confirmed identity with password.
func (a *Auth) AddIdentity(id, email, password string, meta auth.Metadata) {
	a.mu.Lock()
	defer a.mu.Unlock()
	email = strings.ToLower(email)
	a.identities[email] = &auth.Identity{ID: id, Email: email, Metadata: meta, CreatedAt: time.Now()}
	a.passwords[email] = password
}

// PendingCode reports whether a code is waiting for email.
func (a *Auth) PendingCode(email string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.pending[strings.ToLower(email)]
	return ok
}

func (a *Auth) SignUp(_ context.Context, email, password string, meta auth.Metadata) (*auth.Identity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	email = strings.ToLower(email)
	if _, ok := a.identities[email]; ok {
		return nil, core.ErrIdentityExists
	}
	for _, id := range a.identities {
		if meta.CNIC != "" && core.SameCNIC(id.Metadata.CNIC, meta.CNIC) {
			return nil, core.ErrIdentityExists
		}
	}
	id := &auth.Identity{ID: uuid.NewString(), Email: email, Metadata: meta, CreatedAt: time.Now()}
	a.identities[email] = id
	a.passwords[email] = password
	a.pending[email] = auth.OTPSignup
	return id, nil
}

func (a *Auth) SignIn(_ context.Context, email, password string) (*auth.Identity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	email = strings.ToLower(email)
	id, ok := a.identities[email]
	if !ok || a.passwords[email] != password {
		return nil, core.ErrInvalidCredentials
	}
	return id, nil
}

func (a *Auth) SendLoginChallenge(_ context.Context, email string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	email = strings.ToLower(email)
	if _, ok := a.identities[email]; !ok {
		return core.ErrUserNotFound
	}
	a.pending[email] = auth.OTPEmail
	return nil
}

func (a *Auth) VerifyOTP(_ context.Context, email, code string, purpose auth.OTPPurpose) (*auth.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	email = strings.ToLower(email)
	want, ok := a.pending[email]
	if !ok || want != purpose {
		return nil, core.ErrOTPInvalid
	}
	if code != Code {
		return nil, core.ErrOTPInvalid
	}
	delete(a.pending, email)

	id := a.identities[email]
	a.seq++
	sess := &auth.Session{
		Token:     fmt.Sprintf("token-%d", a.seq),
		UserID:    id.ID,
		Email:     id.Email,
		ExpiresAt: time.Now().Add(time.Hour),
		Identity:  id,
	}
	a.sessions[sess.Token] = sess
	return sess, nil
}

func (a *Auth) GetSession(_ context.Context, token string) (*auth.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sess, ok := a.sessions[token]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (a *Auth) SignOut(_ context.Context, token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, token)
	return nil
}

func (a *Auth) CheckCnicExists(_ context.Context, cnic string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range a.identities {
		if core.SameCNIC(id.Metadata.CNIC, cnic) && core.NormalizeCNIC(cnic) != "" {
			return true, nil
		}
	}
	return false, nil
}

// Mailbox is an in-memory notice board and message store.
type Mailbox struct {
	mu       sync.Mutex
	notices  []core.Notice
	messages []core.Message
}

func (m *Mailbox) ListNotices(context.Context) ([]core.Notice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Notice, 0, len(m.notices))
	for i := len(m.notices) - 1; i >= 0; i-- {
		out = append(out, m.notices[i])
	}
	return out, nil
}

func (m *Mailbox) PublishNotice(_ context.Context, n core.Notice) (core.Notice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now().UTC()
	m.notices = append(m.notices, n)
	return n, nil
}

func (m *Mailbox) ListMessages(_ context.Context, userID string) ([]core.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Message, 0)
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].AddressedTo(userID) {
			out = append(out, m.messages[i])
		}
	}
	return out, nil
}

func (m *Mailbox) SendMessage(_ context.Context, msg core.Message) (core.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now().UTC()
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *Mailbox) MarkRead(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.messages {
		if m.messages[i].ID != id {
			continue
		}
		if !m.messages[i].AddressedTo(userID) {
			return core.ErrForbidden
		}
		m.messages[i].Read = true
		return nil
	}
	return core.ErrMessageNotFound
}

// Objects keeps statement documents in memory.
type Objects struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func (o *Objects) PutStatement(_ context.Context, fileNo, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Data == nil {
		o.Data = make(map[string][]byte)
	}
	url := "/statements/" + fileNo + "-" + name
	o.Data[url] = data
	return url, nil
}
