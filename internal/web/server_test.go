package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/RegistryPortal/internal/auth"
	"github.com/JonMunkholm/RegistryPortal/internal/config"
	"github.com/JonMunkholm/RegistryPortal/internal/core"
	"github.com/JonMunkholm/RegistryPortal/internal/portal"
	"github.com/JonMunkholm/RegistryPortal/internal/portal/portaltest"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Helpers
// ============================================================================

const cookieName = "portal_session"

// statementDir serves the in-memory statement objects from a temp dir.
type statementDir struct {
	dir     string
	objects *portaltest.Objects
}

func (d *statementDir) KeyFromURL(u string) (string, bool) {
	key, ok := strings.CutPrefix(u, "/statements/")
	if !ok {
		return "", false
	}
	return key, true
}

func (d *statementDir) Dir() string { return d.dir }

type testEnv struct {
	srv     *Server
	backend *portaltest.Backend
	auth    *portaltest.Auth
	objects *portaltest.Objects
	dir     string
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{RequestTimeout: 5 * time.Second},
		Auth:    config.AuthConfig{CookieName: cookieName},
		Import:  config.ImportConfig{MaxFileSize: 1 << 20},
		Storage: config.StorageConfig{MaxStatementSize: 1 << 20},
	}
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	env := &testEnv{
		backend: portaltest.NewBackend(),
		auth:    portaltest.NewAuth(),
		objects: &portaltest.Objects{},
		dir:     t.TempDir(),
	}
	svc := portal.NewService(portal.Deps{
		Backend: env.backend,
		Auth:    env.auth,
		Mailbox: &portaltest.Mailbox{},
		Objects: env.objects,
	}, portal.Options{})
	env.srv = NewServer(svc, cfg, &statementDir{dir: env.dir, objects: env.objects})
	t.Cleanup(func() { _ = env.srv.Shutdown(t.Context()) })
	return env
}

func (e *testEnv) addUser(role core.Role, cnic string) (email string) {
	id := uuid.NewString()
	email = strings.ToLower(string(role)) + "-" + id[:8] + "@example.com"
	e.auth.AddIdentity(id, email, "password1", auth.Metadata{})
	e.backend.AddUser(core.User{
		ID:     id,
		Name:   "User " + id[:4],
		Email:  email,
		CNIC:   cnic,
		Role:   role,
		Status: core.StatusActive,
	})
	return email
}

// signIn walks the password and code steps over HTTP and returns the token.
func (e *testEnv) signIn(t *testing.T, role core.Role, cnic string) string {
	t.Helper()
	email := e.addUser(role, cnic)

	rec := e.do(t, http.MethodPost, "/api/auth/signin", "", map[string]string{"email": email, "password": "password1"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/auth/verify", "", map[string]string{"email": email, "code": portaltest.Code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp verifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, path, token, name string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Code
}

func propertyFile(fileNo, cnic string) core.PropertyFile {
	return core.PropertyFile{
		FileNo:       fileNo,
		OwnerName:    "Owner " + fileNo,
		OwnerCNIC:    cnic,
		PlotValue:    decimal.NewFromInt(1000),
		Balance:      decimal.NewFromInt(400),
		Transactions: []core.Transaction{},
	}
}

// ============================================================================
// Auth Tests
// ============================================================================

func TestHealth(t *testing.T) {
	env := newTestEnv(t, testConfig())
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestProtectedRoutes_RequireSession(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodGet, "/api/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH004", errorCode(t, rec))

	rec = env.do(t, http.MethodGet, "/api/dashboard", "token-unknown", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignInFlow(t *testing.T) {
	env := newTestEnv(t, testConfig())
	email := env.addUser(core.RoleClient, "35202-1111111-1")

	rec := env.do(t, http.MethodPost, "/api/auth/signin", "", map[string]string{"email": email, "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH001", errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/api/auth/signin", "", map[string]string{"email": email, "password": "password1"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/verify", "", map[string]string{"email": email, "code": "000000"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "OTP001", errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/api/auth/verify", "", map[string]string{"email": email, "code": portaltest.Code})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp verifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.State.Authorized)
	assert.Equal(t, core.RoleClient, resp.State.User.Role)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, cookieName, cookies[0].Name)
	assert.Equal(t, resp.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	// The cookie alone authenticates.
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(cookies[0])
	sessRec := httptest.NewRecorder()
	env.srv.Router().ServeHTTP(sessRec, req)
	assert.Equal(t, http.StatusOK, sessRec.Code)
	assert.Contains(t, sessRec.Body.String(), email)
}

func TestSignOut(t *testing.T) {
	env := newTestEnv(t, testConfig())
	token := env.signIn(t, core.RoleClient, "35202-1111111-1")

	rec := env.do(t, http.MethodPost, "/api/auth/signout", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)

	rec = env.do(t, http.MethodGet, "/api/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "not-an-email",
		"password": "password1",
		"name":     "Ayesha",
		"cnic":     "35202-1234567-1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "REQ001", errorCode(t, rec))

	body := map[string]string{
		"email":    "ayesha@example.com",
		"password": "password1",
		"name":     "Ayesha",
		"cnic":     "35202-1234567-1",
		"role":     "ADMIN",
	}
	rec = env.do(t, http.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var user core.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, core.RoleClient, user.Role)
	assert.True(t, env.auth.PendingCode("ayesha@example.com"))

	rec = env.do(t, http.MethodPost, "/api/auth/register", "", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "AUTH002", errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/api/auth/check-cnic", "", map[string]string{"cnic": "3520212345671"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"exists":true}`, rec.Body.String())
}

func TestAuthRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, AuthLimit: 2}
	env := newTestEnv(t, cfg)

	body := map[string]string{"email": "nobody@example.com", "password": "x"}
	for range 2 {
		rec := env.do(t, http.MethodPost, "/api/auth/signin", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/api/auth/signin", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE001", errorCode(t, rec))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Other routes use the general limit.
	rec = env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ============================================================================
// Record Tests
// ============================================================================

func TestClientRecords(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.backend.AddFiles(
		propertyFile("F-1", "35202-1111111-1"),
		propertyFile("F-2", "35202-2222222-2"),
	)
	token := env.signIn(t, core.RoleClient, "3520211111111")

	rec := env.do(t, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dash portal.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dash))
	require.Len(t, dash.Files, 1)
	assert.Equal(t, "F-1", dash.Files[0].FileNo)
	assert.True(t, decimal.NewFromInt(1000).Equal(dash.Summary.PlotValue))

	rec = env.do(t, http.MethodGet, "/api/files/F-1", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/files/F-2", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "DB007", errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/api/sync", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"synced"`)
}

func TestAdminRoutes_ForbiddenForClients(t *testing.T) {
	env := newTestEnv(t, testConfig())
	token := env.signIn(t, core.RoleClient, "35202-1111111-1")

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/files"},
		{http.MethodPost, "/api/registry/reset"},
		{http.MethodGet, "/api/users"},
		{http.MethodGet, "/api/audit"},
	} {
		rec := env.do(t, tc.method, tc.path, token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, tc.path)
		assert.Equal(t, "AUTH006", errorCode(t, rec), tc.path)
	}
}

func TestAdminListFiles(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.backend.AddFiles(
		propertyFile("A-1", "35202-1111111-1"),
		propertyFile("B-2", "35202-2222222-2"),
	)
	token := env.signIn(t, core.RoleAdmin, "35202-9999999-9")

	rec := env.do(t, http.MethodGet, "/api/files?q=b-2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var files []core.PropertyFile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	require.Len(t, files, 1)
	assert.Equal(t, "B-2", files[0].FileNo)
}

func TestNotifyAndStatementDocument(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.backend.AddFiles(propertyFile("F-1", "35202-1111111-1"))
	admin := env.signIn(t, core.RoleAdmin, "35202-9999999-9")

	rec := env.do(t, http.MethodPost, "/api/files/F-1/notify", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lastNotified")

	rec = env.upload(t, "/api/files/F-1/document", admin, "march.pdf", []byte("%PDF-1.4"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var f core.PropertyFile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	assert.Equal(t, "march.pdf", f.UploadedStatementName)

	// Mirror the stored object where the download handler looks for it.
	key, ok := (&statementDir{}).KeyFromURL(f.UploadedStatementURL)
	require.True(t, ok)
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, key), env.objects.Data[f.UploadedStatementURL], 0o600))

	client := env.signIn(t, core.RoleClient, "35202-1111111-1")
	rec = env.do(t, http.MethodGet, "/api/files/F-1/document", client, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.4", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "march.pdf")

	other := env.signIn(t, core.RoleClient, "35202-2222222-2")
	rec = env.do(t, http.MethodGet, "/api/files/F-1/document", other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatementPage(t *testing.T) {
	env := newTestEnv(t, testConfig())
	f := propertyFile("F-1", "35202-1111111-1")
	f.OwnerName = "<script>alert(1)</script>"
	f.Transactions = []core.Transaction{{
		Date:        "2024-01-05",
		Description: "Installment",
		Credit:      decimal.NewFromInt(250),
		Balance:     decimal.NewFromInt(750),
	}}
	env.backend.AddFiles(f)
	token := env.signIn(t, core.RoleClient, "35202-1111111-1")

	rec := env.do(t, http.MethodGet, "/files/F-1/statement", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, body, "Account statement: F-1")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "250.00")
	assert.Contains(t, body, "1000.00")
}

// ============================================================================
// Registry Tests
// ============================================================================

func TestImportCSVAndTemplate(t *testing.T) {
	env := newTestEnv(t, testConfig())
	token := env.signIn(t, core.RoleAdmin, "35202-9999999-9")

	rec := env.do(t, http.MethodGet, "/api/layouts", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "property_files")

	rec = env.do(t, http.MethodGet, "/api/layouts/property_files/template", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	header := strings.TrimSpace(rec.Body.String())
	require.NotEmpty(t, header)

	rec = env.do(t, http.MethodGet, "/api/layouts/nope/template", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "IMP006", errorCode(t, rec))

	rec = env.upload(t, "/api/registry/import/property_files", token, "files.csv", []byte(header+"\n"), map[string]string{"push": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "REQ001", errorCode(t, rec))

	rec = env.upload(t, "/api/registry/import/property_files", token, "files.csv", []byte(""), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportDatabaseAndReset(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.backend.AddFiles(propertyFile("F-1", "35202-1111111-1"))
	token := env.signIn(t, core.RoleAdmin, "35202-9999999-9")

	rec := env.do(t, http.MethodPost, "/api/registry/import", token, map[string]any{
		"files":       []core.PropertyFile{propertyFile("L-1", "35202-3333333-3"), propertyFile("L-2", "35202-3333333-3")},
		"destructive": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var state portal.SessionState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.True(t, state.Pinned)
	assert.Equal(t, 2, state.Files)

	rec = env.do(t, http.MethodPost, "/api/sync", token, nil)
	assert.Contains(t, rec.Body.String(), `"outcome":"pinned"`)

	rec = env.do(t, http.MethodPost, "/api/registry/cloud-sync", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, env.backend.FileCount())

	rec = env.do(t, http.MethodPost, "/api/registry/reset", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.False(t, state.Pinned)
}

func TestCloudSyncBatchFailure(t *testing.T) {
	env := newTestEnv(t, testConfig())
	token := env.signIn(t, core.RoleAdmin, "35202-9999999-9")

	files := make([]core.PropertyFile, 0, 60)
	for i := range 60 {
		files = append(files, propertyFile("F-"+uuid.NewString()[:6]+"-"+string(rune('a'+i%26)), "35202-3333333-3"))
	}
	rec := env.do(t, http.MethodPost, "/api/registry/import", token, map[string]any{"files": files, "destructive": true})
	require.Equal(t, http.StatusOK, rec.Code)

	env.backend.FailUpsertCall = 2
	rec = env.do(t, http.MethodPost, "/api/registry/cloud-sync", token, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "SYNC001", errorCode(t, rec))
}

// ============================================================================
// Users, Inbox and Audit Tests
// ============================================================================

func TestUserAdministration(t *testing.T) {
	env := newTestEnv(t, testConfig())
	admin := env.signIn(t, core.RoleAdmin, "35202-9999999-9")
	clientEmail := env.addUser(core.RoleClient, "35202-1111111-1")

	rec := env.do(t, http.MethodGet, "/api/users?q="+clientEmail, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []core.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 1)
	id := users[0].ID

	rec = env.do(t, http.MethodPatch, "/api/users/"+id, admin, map[string]string{"role": "OWNER"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/users/"+id, admin, map[string]string{"status": "Suspended"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"Suspended"`)

	rec = env.do(t, http.MethodDelete, "/api/users/"+id, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/audit?limit=10", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)

	rec = env.do(t, http.MethodGet, "/api/audit?since=yesterday", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuspendedUserLosesAccess(t *testing.T) {
	env := newTestEnv(t, testConfig())
	admin := env.signIn(t, core.RoleAdmin, "35202-9999999-9")
	client := env.signIn(t, core.RoleClient, "35202-1111111-1")

	rec := env.do(t, http.MethodGet, "/api/session", client, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state portal.SessionState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))

	rec = env.do(t, http.MethodPatch, "/api/users/"+state.User.ID, admin, map[string]string{"status": "Suspended"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/dashboard", client, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "AUTH008", errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/api/auth/signin", "", map[string]string{"email": state.User.Email, "password": "password1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "AUTH008", errorCode(t, rec))
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t, testConfig())
	token := env.signIn(t, core.RoleClient, "35202-1111111-1")

	rec := env.do(t, http.MethodPatch, "/api/profile", token, map[string]string{"name": "Bilal", "phone": "0300-1234567"})
	require.Equal(t, http.StatusOK, rec.Code)
	var user core.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "Bilal", user.Name)
	assert.Equal(t, core.RoleClient, user.Role)
}

func TestNoticesAndMessages(t *testing.T) {
	env := newTestEnv(t, testConfig())
	admin := env.signIn(t, core.RoleAdmin, "35202-9999999-9")
	client := env.signIn(t, core.RoleClient, "35202-1111111-1")

	rec := env.do(t, http.MethodPost, "/api/notices", client, map[string]string{"title": "Hi", "body": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/notices", admin, map[string]string{"title": "Dues", "body": "Pay by Friday", "category": "billing"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/notices", client, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Pay by Friday")

	rec = env.do(t, http.MethodPost, "/api/messages", client, map[string]any{"recipients": []string{}, "subject": "s", "body": "b"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/messages", client, map[string]any{"recipients": []string{"ALL"}, "subject": "s", "body": "b"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/messages", admin, map[string]any{"recipients": []string{"all"}, "subject": "Meeting", "body": "Sunday"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var msg core.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))

	rec = env.do(t, http.MethodGet, "/api/messages", client, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Meeting")

	rec = env.do(t, http.MethodPost, "/api/messages/"+msg.ID+"/read", client, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/messages/missing/read", client, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrInvalidCredentials, http.StatusUnauthorized},
		{core.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("open session: %w", core.ErrAccountSuspended), http.StatusForbidden},
		{core.ErrIdentityExists, http.StatusConflict},
		{core.ErrFileNotFound, http.StatusNotFound},
		{auth.ErrTooManyAttempts, http.StatusTooManyRequests},
		{core.ErrTooManyImports, http.StatusServiceUnavailable},
		{auth.ErrWeakPassword, http.StatusBadRequest},
		{portal.ErrNoRecipients, http.StatusBadRequest},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
