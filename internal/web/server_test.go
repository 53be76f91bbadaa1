package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saltyorg/ipldash/internal/auth"
	"github.com/saltyorg/ipldash/internal/database"
	"github.com/saltyorg/ipldash/internal/metrics"
	"github.com/saltyorg/ipldash/internal/stats"
	"github.com/saltyorg/ipldash/internal/web/middleware"
)

func newTestServer(t *testing.T) (http.Handler, *auth.AuthService) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	require.NoError(t, db.InitializeDefaults())
	require.NoError(t, db.SeedDemo())

	registry := metrics.NewRegistry()
	observer := metrics.NewService(registry)

	authService := auth.NewAuthService(db, observer)
	statsService := stats.NewService(db, stats.Options{Observer: observer})

	srv, err := NewServer(db, authService, statsService, Options{IsDev: true, Gatherer: registry})
	require.NoError(t, err)
	return srv.Handler(), authService
}

func postForm(h http.Handler, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name && c.Value != "" {
			return c
		}
	}
	return nil
}

func login(t *testing.T, h http.Handler, role, username, password string) *http.Cookie {
	t.Helper()

	rec := postForm(h, "/login", url.Values{
		"username": {username},
		"password": {password},
		"role":     {role},
	}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	cookie := findCookie(rec, middleware.SessionCookieName)
	require.NotNil(t, cookie, "login should set a session cookie")
	return cookie
}

func registerAndLogin(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()

	rec := postForm(h, "/register", url.Values{
		"username":         {"alice"},
		"password":         {"correct horse"},
		"confirm_password": {"correct horse"},
	}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	return login(t, h, auth.RoleUser, "alice", "correct horse")
}

func TestServer_RequiresSession(t *testing.T) {
	h, _ := newTestServer(t)

	for _, path := range []string{"/", "/reports/toss-impact", "/api/years", "/admin", "/charts/toss-impact.svg"} {
		t.Run(path, func(t *testing.T) {
			rec := get(h, path, nil)
			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, "/login", rec.Header().Get("Location"))
		})
	}
}

func TestServer_LoginPage(t *testing.T) {
	h, _ := newTestServer(t)

	rec := get(h, "/login", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="role"`)
	assert.Contains(t, body, `action="/register"`)
}

func TestServer_RegisterValidationFlash(t *testing.T) {
	h, _ := newTestServer(t)

	rec := postForm(h, "/register", url.Values{
		"username":         {"alice"},
		"password":         {"password1"},
		"confirm_password": {"password2"},
	}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	flash := findCookie(rec, "flash_err")
	require.NotNil(t, flash)
	assert.Equal(t, "Passwords do not match. Please re-enter.", flash.Value)
}

func TestServer_LoginFailureIsGeneric(t *testing.T) {
	h, authService := newTestServer(t)
	require.NoError(t, authService.CreateAdmin("root", "admin-password"))

	tests := []struct {
		name     string
		role     string
		username string
		password string
	}{
		{"wrong password", auth.RoleAdmin, "root", "nope-nope"},
		{"wrong role", auth.RoleUser, "root", "admin-password"},
		{"unknown user", auth.RoleUser, "nobody", "whatever1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForm(h, "/login", url.Values{
				"username": {tt.username},
				"password": {tt.password},
				"role":     {tt.role},
			}, nil)
			require.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, "/login", rec.Header().Get("Location"))
			assert.Nil(t, findCookie(rec, middleware.SessionCookieName))

			flash := findCookie(rec, "flash_err")
			require.NotNil(t, flash)
			assert.Equal(t, "Invalid username, password or role", flash.Value)
		})
	}
}

func TestServer_LoginRequiresBothFields(t *testing.T) {
	h, _ := newTestServer(t)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"missing password", "alice", ""},
		{"missing username", "", "correct horse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForm(h, "/login", url.Values{
				"username": {tt.username},
				"password": {tt.password},
				"role":     {auth.RoleUser},
			}, nil)
			require.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Nil(t, findCookie(rec, middleware.SessionCookieName))

			flash := findCookie(rec, "flash_err")
			require.NotNil(t, flash)
			assert.Equal(t, "Please enter both username and password.", flash.Value)
		})
	}
}

func TestServer_DashboardListsReports(t *testing.T) {
	h, _ := newTestServer(t)
	cookie := registerAndLogin(t, h)

	rec := get(h, "/", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "/reports/toss-impact")
	assert.Contains(t, body, "alice (User)")
	assert.NotContains(t, body, "/reports/all-users")
	assert.NotContains(t, body, `href="/admin"`)
}

func TestServer_ReportPages(t *testing.T) {
	h, _ := newTestServer(t)
	cookie := registerAndLogin(t, h)

	tests := []struct {
		name     string
		path     string
		status   int
		contains []string
	}{
		{
			name:     "fixed report with chart",
			path:     "/reports/toss-impact",
			status:   http.StatusOK,
			contains: []string{"Matches Won by Winning Toss", `src="/charts/toss-impact.svg"`},
		},
		{
			name:     "required year defaults to latest",
			path:     "/reports/top-batsmen",
			status:   http.StatusOK,
			contains: []string{"Top 10 Scoring Batsmen in a Year (2022)", "MS Dhoni"},
		},
		{
			name:     "records all years",
			path:     "/records/batting?year=all&limit=20",
			status:   http.StatusOK,
			contains: []string{"All Batting Records (All Years)", "V Kohli"},
		},
		{
			name:     "year without data",
			path:     "/reports/top-batsmen?year=2015",
			status:   http.StatusOK,
			contains: []string{"No data found"},
		},
		{
			name:     "malformed year",
			path:     "/reports/top-batsmen?year=abc",
			status:   http.StatusBadRequest,
			contains: []string{"Invalid selection"},
		},
		{
			name:     "limit outside the menu",
			path:     "/records/bowling?limit=7",
			status:   http.StatusBadRequest,
			contains: []string{"Invalid selection"},
		},
		{
			name:   "unknown report",
			path:   "/reports/nope",
			status: http.StatusNotFound,
		},
		{
			name:   "admin report hidden from the report route",
			path:   "/reports/all-users",
			status: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(h, tt.path, cookie)
			assert.Equal(t, tt.status, rec.Code)
			for _, want := range tt.contains {
				assert.Contains(t, rec.Body.String(), want)
			}
		})
	}
}

func TestServer_ChartSVG(t *testing.T) {
	h, _ := newTestServer(t)
	cookie := registerAndLogin(t, h)

	rec := get(h, "/charts/toss-impact.svg", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Body.String(), "<svg")

	rec = get(h, "/charts/batting-records.svg", cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code, "reports without a chart have no image")
}

func TestServer_API(t *testing.T) {
	h, _ := newTestServer(t)
	cookie := registerAndLogin(t, h)

	rec := get(h, "/api/years", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var years struct {
		Years []int `json:"years"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &years))
	assert.Equal(t, []int{2021, 2022}, years.Years)

	rec = get(h, "/api/reports/toss-impact", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var report struct {
		Report string      `json:"report"`
		Table  stats.Table `json:"table"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "toss-impact", report.Report)
	require.Len(t, report.Table.Rows, 2)

	rec = get(h, "/api/matches?source=umpires", cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(h, "/api/reports/all-users", cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_AdminAccess(t *testing.T) {
	h, authService := newTestServer(t)
	userCookie := registerAndLogin(t, h)
	require.NoError(t, authService.CreateAdmin("root", "admin-password"))

	rec := get(h, "/admin", userCookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = postForm(h, "/admin/cache/clear", url.Values{}, userCookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminCookie := login(t, h, auth.RoleAdmin, "root", "admin-password")
	rec = get(h, "/admin", adminCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "All Users")
	assert.Contains(t, body, "alice")
	assert.Contains(t, body, "sqlite")
	assert.NotContains(t, body, "$2a$")

	rec = postForm(h, "/admin/cache/clear", url.Values{}, adminCookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))
}

func TestServer_AdminSettings(t *testing.T) {
	h, authService := newTestServer(t)
	require.NoError(t, authService.CreateAdmin("root", "admin-password"))
	adminCookie := login(t, h, auth.RoleAdmin, "root", "admin-password")

	rec := postForm(h, "/admin/settings", url.Values{
		"min_password_length": {"10"},
		"session_hours":       {"24"},
		"default_limit":       {"40"},
		"cache_ttl_seconds":   {"60"},
	}, adminCookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.NotNil(t, findCookie(rec, "flash"))

	assert.False(t, authService.RegistrationEnabled(), "unchecked box disables registration")

	rec = postForm(h, "/admin/settings", url.Values{
		"min_password_length": {"10"},
		"session_hours":       {"24"},
		"default_limit":       {"33"},
		"cache_ttl_seconds":   {"60"},
	}, adminCookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.NotNil(t, findCookie(rec, "flash_err"))
}

func TestServer_LogoutEndsSession(t *testing.T) {
	h, _ := newTestServer(t)
	cookie := registerAndLogin(t, h)

	rec := get(h, "/logout", cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = get(h, "/", cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestServer_HealthAndMetrics(t *testing.T) {
	h, _ := newTestServer(t)
	registerAndLogin(t, h)

	rec := get(h, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = get(h, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ipldash_logins_total{result="ok",role="User"} 1`)
}
