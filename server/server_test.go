package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jrsteele09/myoutlet-admin/backend"
	"github.com/jrsteele09/myoutlet-admin/backend/fakebackend"
	"github.com/jrsteele09/myoutlet-admin/internal/config"
	"github.com/jrsteele09/myoutlet-admin/internal/metrics"
	"github.com/jrsteele09/myoutlet-admin/kvstore/memory"
	"github.com/jrsteele09/myoutlet-admin/restaurants"
	"github.com/jrsteele09/myoutlet-admin/server"
	"github.com/jrsteele09/myoutlet-admin/server/authflowrepo"
	"github.com/jrsteele09/myoutlet-admin/sessions"
	"github.com/stretchr/testify/require"
)

const ownerEmail = "owner@example.com"

type testFixture struct {
	fake     *fakebackend.Backend
	ts       *httptest.Server
	client   *http.Client
	manager  *sessions.Manager
	authFlow *authflowrepo.InMemoryRepo
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		fake:     fakebackend.New(t),
		authFlow: authflowrepo.NewInMemoryRepo(),
	}

	// The OAuth redirect URI is built from the base URL, so the listener has to exist first.
	var srv *server.Server
	f.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.ServeHTTP(w, r)
	}))
	t.Cleanup(f.ts.Close)

	env := "TEST"
	mode := config.SignInModeBroker
	cfg, err := config.Load(config.LoaderOptions{FlagOverrides: config.FlagOverrides{
		Env:        &env,
		BaseURL:    &f.ts.URL,
		BackendURL: &f.fake.URL,
		SignInMode: &mode,
	}})
	require.NoError(t, err)

	m := metrics.New()
	authAPI := backend.NewAuthAPI(cfg.GetBackendURL())
	f.manager = sessions.NewManager(memory.New(), authAPI, sessions.Options{
		BackendURL: cfg.GetBackendURL(),
		Routes:     server.GuardRoutes(cfg),
		Metrics:    m,
	})
	t.Cleanup(f.manager.Close)
	srv = server.New(cfg, f.manager, authAPI, f.authFlow, m)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	f.client = &http.Client{Jar: jar}
	return f
}

// noFollow returns a client sharing the fixture's cookies that stops at the first redirect.
func (f *testFixture) noFollow() *http.Client {
	return &http.Client{
		Jar: f.client.Jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (f *testFixture) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := f.client.Get(f.ts.URL + path)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (f *testFixture) postForm(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := f.client.PostForm(f.ts.URL+path, form)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

// signIn runs the broker sign-in from the landing page and returns where it ended.
func (f *testFixture) signIn(t *testing.T) *http.Response {
	t.Helper()
	resp, _ := f.get(t, server.RouteAuthGoogle)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return resp
}

func (f *testFixture) withStore(t *testing.T) restaurants.Store {
	t.Helper()
	return f.fake.AddStore(ownerEmail, restaurants.Store{
		Name:      "Spice Route",
		Subdomain: "spice-route",
		Currency:  "INR",
		Language:  "en",
		IsActive:  true,
	})
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHealth(t *testing.T) {
	f := setupTestFixture(t)

	resp, body := f.get(t, server.RouteHealth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, body)
}

func TestMetricsEndpoint(t *testing.T) {
	f := setupTestFixture(t)
	f.get(t, server.RouteIndex)

	resp, body := f.get(t, server.RouteMetrics)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "myoutlet_admin_live_sessions 1")
}

func TestOpenAPIDocs(t *testing.T) {
	f := setupTestFixture(t)

	resp, body := f.get(t, server.RouteAPISpec)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, server.RouteAPIStoreSearch)

	resp, body = f.get(t, server.RouteAPIDocs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "swagger-ui")
}

func TestStaticAssets(t *testing.T) {
	f := setupTestFixture(t)

	resp, body := f.get(t, "/static/css/app.css")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, ".topbar")
	require.NotEmpty(t, resp.Header.Get("Cache-Control"))
	require.True(t, resp.Uncompressed, "css is served gzipped")
}

func TestAnonymousLanding(t *testing.T) {
	f := setupTestFixture(t)

	resp, body := f.get(t, server.RouteIndex)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "Continue with Google")
	require.Equal(t, "SAMEORIGIN", resp.Header.Get("X-Frame-Options"))
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	u, _ := url.Parse(f.ts.URL)
	cookies := f.client.Jar.Cookies(u)
	require.Len(t, cookies, 1)
	require.Equal(t, "myoutlet_session", cookies[0].Name)
}

func TestAnonymousProtectedPagesRedirectToEntry(t *testing.T) {
	f := setupTestFixture(t)

	for _, path := range []string{server.RouteDashboard, server.RouteDashboardTables, server.RouteRegister} {
		resp, err := f.noFollow().Get(f.ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
		require.Equal(t, server.RouteIndex, resp.Header.Get("Location"), path)
	}
}

func TestSignInWithoutStoreGoesToRegister(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.signIn(t)
	require.Equal(t, server.RouteRegister, resp.Request.URL.Path)

	// Dashboard stays closed until a store exists.
	resp, _ = f.get(t, server.RouteDashboard)
	require.Equal(t, server.RouteRegister, resp.Request.URL.Path)
}

func TestSignInWithStoreGoesToDashboard(t *testing.T) {
	f := setupTestFixture(t)
	f.withStore(t)

	resp := f.signIn(t)
	require.Equal(t, server.RouteDashboard, resp.Request.URL.Path)

	resp, body := f.get(t, server.RouteDashboard)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "Spice Route")
	require.Contains(t, body, "https://spice-route.")

	// A full session never sees the landing or registration pages.
	resp, _ = f.get(t, server.RouteIndex)
	require.Equal(t, server.RouteDashboard, resp.Request.URL.Path)
	resp, _ = f.get(t, server.RouteRegister)
	require.Equal(t, server.RouteDashboard, resp.Request.URL.Path)
}

func TestRedirectWithForeignStateIsRejected(t *testing.T) {
	f := setupTestFixture(t)
	f.get(t, server.RouteIndex)

	access, refresh := f.fake.SignIn(ownerEmail)
	q := url.Values{}
	q.Set("access_token", access)
	q.Set("user", f.fake.User(ownerEmail, refresh))
	q.Set("state", "never-issued")

	resp, body := f.get(t, "/auth/google/redirect?"+q.Encode())
	require.Equal(t, server.RouteIndex, resp.Request.URL.Path)
	require.Contains(t, body, "Sign-in failed")

	resp, _ = f.get(t, server.RouteDashboard)
	require.Equal(t, server.RouteIndex, resp.Request.URL.Path)
}

func TestRedirectWithoutStateIsRejected(t *testing.T) {
	f := setupTestFixture(t)
	f.withStore(t)
	f.get(t, server.RouteIndex)

	access, refresh := f.fake.SignIn(ownerEmail)
	q := url.Values{}
	q.Set("access_token", access)
	q.Set("user", f.fake.User(ownerEmail, refresh))

	resp, body := f.get(t, "/auth/google/redirect?"+q.Encode())
	require.Equal(t, server.RouteIndex, resp.Request.URL.Path)
	require.Contains(t, body, "Sign-in failed")

	resp, _ = f.get(t, server.RouteDashboard)
	require.Equal(t, server.RouteIndex, resp.Request.URL.Path)
}

func TestBackendActionAfterRevokedRefreshSignsOutSilently(t *testing.T) {
	f := setupTestFixture(t)
	f.withStore(t)
	f.signIn(t)

	f.fake.ExpireAccessTokens()
	f.fake.RevokeRefreshTokens()
	resp, body := f.postForm(t, server.RouteDashboardTables, url.Values{"table_name": {"T1"}, "seat_count": {"4"}})
	require.Equal(t, server.RouteIndex, resp.Request.URL.Path)
	require.Empty(t, resp.Request.URL.RawQuery)
	require.NotContains(t, body, "alert-error")
}

func TestRegisterShowsFailedStoreLookup(t *testing.T) {
	f := setupTestFixture(t)
	f.fake.FailStoreLookups()

	resp := f.signIn(t)
	require.Equal(t, server.RouteRegister, resp.Request.URL.Path)

	resp, body := f.get(t, server.RouteRegister)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "couldn&#39;t load your existing restaurants")
	require.Contains(t, body, "Sign out owner")
}

func TestRegisterCreatesStore(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t)

	resp, body := f.get(t, server.RouteRegister)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `name="restaurantName"`)

	resp, body = f.postForm(t, server.RouteRegister, url.Values{
		"restaurantName": {"Curry House"},
		"currency":       {"inr"},
		"language":       {"en"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, server.RouteDashboard, resp.Request.URL.Path)
	require.Contains(t, body, "Curry House")
	require.Contains(t, body, "https://curry-house.")
}

func TestRegisterValidationErrors(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t)

	resp, body := f.postForm(t, server.RouteRegister, url.Values{
		"restaurantName": {""},
		"currency":       {"XX"},
		"language":       {"en"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Contains(t, body, "restaurant name is required")
	require.Contains(t, body, "choose a valid currency")
	require.Zero(t, f.fake.Requests("/store"))
}

func TestTables(t *testing.T) {
	f := setupTestFixture(t)
	store := f.withStore(t)
	f.signIn(t)

	resp, body := f.postForm(t, server.RouteDashboardTables, url.Values{"table_name": {"Patio 1"}, "seat_count": {"4"}})
	require.Equal(t, server.RouteDashboardTables, resp.Request.URL.Path)
	require.Contains(t, body, "Patio 1")

	tables := f.fake.Tables(store.ID)
	require.Len(t, tables, 1)
	id := tables[0].ID

	f.postForm(t, "/dashboard/tables/"+id, url.Values{"table_name": {"Patio 2"}, "seat_count": {"6"}})
	tables = f.fake.Tables(store.ID)
	require.Equal(t, "Patio 2", tables[0].TableName)
	require.Equal(t, 6, tables[0].SeatCount)

	resp, body = f.postForm(t, server.RouteDashboardTables, url.Values{"table_name": {"Bar"}, "seat_count": {"0"}})
	require.Equal(t, server.RouteDashboardTables, resp.Request.URL.Path)
	require.Contains(t, body, "seat count must be between 1 and 100")
	require.Len(t, f.fake.Tables(store.ID), 1)

	f.postForm(t, "/dashboard/tables/"+id+"/delete", nil)
	require.Empty(t, f.fake.Tables(store.ID))
}

func TestQRCodes(t *testing.T) {
	f := setupTestFixture(t)
	store := f.withStore(t)
	f.signIn(t)
	f.postForm(t, server.RouteDashboardTables, url.Values{"table_name": {"Window"}, "seat_count": {"2"}})
	table := f.fake.Tables(store.ID)[0]

	pngMagic := "\x89PNG\r\n\x1a\n"
	for _, path := range []string{server.RouteDashboardStoreQR, "/dashboard/tables/" + table.ID + "/qr.png"} {
		resp, body := f.get(t, path)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		require.Equal(t, "image/png", resp.Header.Get("Content-Type"), path)
		require.True(t, strings.HasPrefix(body, pngMagic), path)
	}

	resp, _ := f.get(t, "/dashboard/tables/unknown/qr.png")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGallery(t *testing.T) {
	f := setupTestFixture(t)
	store := f.withStore(t)
	f.signIn(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "naan.jpg")
	require.NoError(t, err)
	_, _ = part.Write([]byte("jpeg bytes"))
	require.NoError(t, mw.Close())

	resp, err := f.client.Post(f.ts.URL+server.RouteDashboardGallery, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	body := readBody(t, resp)
	require.Equal(t, server.RouteDashboardGallery, resp.Request.URL.Path)
	require.Contains(t, body, "naan.jpg")

	images := f.fake.Gallery(store.ID)
	require.Len(t, images, 1)

	f.postForm(t, server.RouteDashboardGalleryDel, url.Values{"key": {images[0].Key}})
	require.Empty(t, f.fake.Gallery(store.ID))
}

func TestStorePages(t *testing.T) {
	f := setupTestFixture(t)
	f.withStore(t)
	f.signIn(t)

	resp, body := f.get(t, server.RouteDashboardSettings)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "spice-route")
	require.Contains(t, body, "₹")

	for _, path := range []string{server.RouteDashboardMenu, server.RouteDashboardSubscribe} {
		resp, _ := f.get(t, path)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		require.Equal(t, path, resp.Request.URL.Path)
	}
}

func TestStoreSearchAPI(t *testing.T) {
	f := setupTestFixture(t)
	f.fake.AddStore("other@example.com", restaurants.Store{Name: "Spice Garden", Subdomain: "spice-garden"})

	resp, _ := f.get(t, server.RouteAPIStoreSearch+"?q=spice")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	f.signIn(t)

	resp, body := f.get(t, server.RouteAPIStoreSearch+"?q=s")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `[]`, body)

	resp, body = f.get(t, server.RouteAPIStoreSearch+"?q=spice")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var results []struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Subdomain string `json:"subdomain"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &results))
	require.Len(t, results, 1)
	require.Equal(t, "Spice Garden", results[0].Name)
}

func TestExpiredAccessTokenIsRefreshed(t *testing.T) {
	f := setupTestFixture(t)
	f.withStore(t)
	f.signIn(t)

	f.fake.ExpireAccessTokens()
	resp, _ := f.get(t, server.RouteDashboardTables)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, server.RouteDashboardTables, resp.Request.URL.Path)
	require.Equal(t, 1, f.fake.RefreshCalls())
}

func TestRejectedRefreshSignsOut(t *testing.T) {
	f := setupTestFixture(t)
	f.withStore(t)
	f.signIn(t)

	f.fake.ExpireAccessTokens()
	f.fake.RevokeRefreshTokens()
	resp, body := f.get(t, server.RouteDashboardTables)
	require.Equal(t, server.RouteIndex, resp.Request.URL.Path)
	require.Empty(t, resp.Request.URL.RawQuery)
	require.NotContains(t, body, "alert-error")
	require.Contains(t, body, "Continue with Google")

	resp, _ = f.get(t, server.RouteDashboard)
	require.Equal(t, server.RouteIndex, resp.Request.URL.Path)
}

func TestLogout(t *testing.T) {
	f := setupTestFixture(t)
	f.withStore(t)
	f.signIn(t)
	require.Equal(t, 1, f.manager.Len())

	resp, body := f.postForm(t, server.RouteAuthLogout, nil)
	require.Equal(t, server.RouteIndex, resp.Request.URL.Path)
	require.Contains(t, body, "Continue with Google")

	resp, _ = f.get(t, server.RouteDashboard)
	require.Equal(t, server.RouteIndex, resp.Request.URL.Path)
}
