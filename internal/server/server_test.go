package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FahimFBA/crowdcredit/internal/api/tabledata"
	"github.com/FahimFBA/crowdcredit/internal/api/userauth"
	"github.com/FahimFBA/crowdcredit/internal/metrics"
	"github.com/FahimFBA/crowdcredit/internal/query"
	"github.com/FahimFBA/crowdcredit/internal/store"
	"github.com/FahimFBA/crowdcredit/supabase/client"
)

// newTestServer runs the full router against a scripted Supabase double.
func newTestServer(t *testing.T, backend http.HandlerFunc) (*Server, *store.Store) {
	t.Helper()
	if backend == nil {
		backend = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}
	}
	upstream := httptest.NewServer(backend)
	t.Cleanup(upstream.Close)

	sb, err := client.New(client.Config{URL: upstream.URL, AnonKey: "anon", HTTPClient: upstream.Client()})
	require.NoError(t, err)

	st := store.New(store.Options{})
	cache := query.NewCache(nil, nil)
	srv := New(Options{Addr: ":0"},
		st,
		userauth.NewService(sb, cache, userauth.Config{AppDomainURL: "https://app.example.com"}),
		tabledata.NewService(sb, cache),
		metrics.New("crowdcredit_test"),
	)
	return srv, st
}

func TestGuards_AnonymousRedirectedToLogin(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, path := range []string{"/dashboard", "/profile", "/settings", "/crowdfunding", "/crowdfunding/p1"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, "/login", rec.Header().Get("Location"), path)
	}
}

func TestGuards_SignedInRedirectedFromAuthPages(t *testing.T) {
	srv, st := newTestServer(t, nil)
	st.LoginSuccess("uid-1", "user@example.com")

	for _, path := range []string{"/login", "/signup", "/password-reset"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, "/profile", rec.Header().Get("Location"), path)
	}
}

func TestPageState_CarriesThemeAndIdentity(t *testing.T) {
	srv, st := newTestServer(t, nil)
	st.SetTheme(store.ThemeDark)
	st.LoginSuccess("uid-1", "user@example.com")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/p1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var state struct {
		Route    string            `json:"route"`
		Theme    string            `json:"theme"`
		SignedIn bool              `json:"signed_in"`
		Params   map[string]string `json:"params"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))

	assert.Equal(t, "/dashboard/p1", state.Route)
	assert.Equal(t, "dark", state.Theme)
	assert.True(t, state.SignedIn)
	assert.Equal(t, "p1", state.Params["id"])
}

func TestAPI_ListCrowdFunding(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/crowd_funding", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":"p1","creator_id":"u1","title":"Bakery","target_amount":1000}]`))
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/crowdfunding", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Bakery"`)
}

func TestAPI_DeleteNotOwnerMapsTo403(t *testing.T) {
	srv, st := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	st.LoginSuccess("uid-1", "user@example.com")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/crowdfunding/p1", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_MissingRowMapsTo404(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotAcceptable)
		_, _ = w.Write([]byte(`{"message":"no rows"}`))
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/loans/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_BackendStatusPassesThrough(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid login credentials"}`))
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"user@example.com","password":"wrong"}`))
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid login credentials")
}

func TestAPI_InvalidBodyIs400(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader("{not json"))
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_UploadRequiresSession(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/profile/picture", strings.NewReader("img"))
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_UnknownAddressMapsTo404(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v1/users":
			w.WriteHeader(http.StatusNotAcceptable)
			_, _ = w.Write([]byte(`{"message":"no rows"}`))
		case "/rest/v1/auth_users_database":
			_, _ = w.Write([]byte(`[]`))
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/password-reset",
		strings.NewReader(`{"email":"stranger@example.com"}`))
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "contact Admin")
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPageViews_CountedOnEveryGuardVariant(t *testing.T) {
	srv, st := newTestServer(t, nil)

	for _, path := range []string{"/", "/login", "/signup"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
	st.LoginSuccess("uid-1", "user@example.com")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// views are recorded off the request goroutine
	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		body := rec.Body.String()
		for _, path := range []string{"/", "/login", "/signup", "/dashboard"} {
			if !strings.Contains(body, `page_views_total{path="`+path+`"} 1`) {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond)
}
