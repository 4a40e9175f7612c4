package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		URL:        srv.URL,
		AnonKey:    "anon-key",
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return c, srv
}

func TestNew_RequiresURLAndKey(t *testing.T) {
	_, err := New(Config{AnonKey: "k"})
	assert.Error(t, err)

	_, err = New(Config{URL: "http://localhost"})
	assert.Error(t, err)
}

func TestQueryBuilder_Get(t *testing.T) {
	var gotPath, gotQuery, gotAuth, gotKey string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("apikey")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"p1"},{"id":"p2"}]`))
	})

	var rows []struct {
		ID string `json:"id"`
	}
	err := c.From("crowd_funding").
		Select("*, contributions:crowd_funding_contributions(*)").
		Eq("creator_id", "u1").
		Order("created_at", false).
		Limit(10).
		Get(context.Background(), &rows)
	require.NoError(t, err)

	assert.Equal(t, "/rest/v1/crowd_funding", gotPath)
	assert.Contains(t, gotQuery, "creator_id=eq.u1")
	assert.Contains(t, gotQuery, "order=created_at.desc")
	assert.Contains(t, gotQuery, "limit=10")
	assert.Equal(t, "Bearer anon-key", gotAuth)
	assert.Equal(t, "anon-key", gotKey)
	assert.Len(t, rows, 2)
}

func TestQueryBuilder_SingleNotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.pgrst.object+json", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusNotAcceptable)
		_, _ = w.Write([]byte(`{"message":"JSON object requested, multiple (or no) rows returned"}`))
	})

	var row struct{}
	err := c.From("crowd_funding").Eq("id", "missing").Single().Get(context.Background(), &row)
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestQueryBuilder_DeleteReturnsAffectedCount(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		if r.URL.Query().Get("creator_id") == "eq.owner" {
			_, _ = w.Write([]byte(`[{"id":"p1"}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	n, err := c.From("crowd_funding").Eq("id", "p1").Eq("creator_id", "owner").Delete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.From("crowd_funding").Eq("id", "p1").Eq("creator_id", "intruder").Delete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestQueryBuilder_UpdateCountsRows(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		body, _ := json.Marshal([]map[string]string{{"id": "p1"}})
		_, _ = w.Write(body)
	})

	n, err := c.From("loan-table").Eq("id", "p1").Update(context.Background(), map[string]string{"status": "closed"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestResponse_ErrorExtractsBackendMessage(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"message field", `{"message":"duplicate key"}`, "duplicate key"},
		{"msg field", `{"msg":"invalid email"}`, "invalid email"},
		{"error field", `{"error":"bad grant"}`, "bad grant"},
		{"no body", ``, http.StatusText(http.StatusBadRequest)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := &Response{StatusCode: http.StatusBadRequest, Body: []byte(tc.body)}
			err := resp.Error()
			require.Error(t, err)

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
			assert.Contains(t, apiErr.Error(), tc.want)
		})
	}
}

func TestClient_UsesSessionTokenWhenSignedIn(t *testing.T) {
	var gotAuth string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	})
	c.auth.setSession(SignedIn, &Session{AccessToken: "user-token"})

	var rows []struct{}
	require.NoError(t, c.From("users").Get(context.Background(), &rows))
	assert.Equal(t, "Bearer user-token", gotAuth)
}
