package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/bifrost/internal/server"
	"github.com/leapstack-labs/bifrost/pkg/bifrost"
	"github.com/leapstack-labs/bifrost/pkg/dialects/sqlite"
	"github.com/leapstack-labs/bifrost/pkg/log"
	"github.com/leapstack-labs/bifrost/pkg/safesql"
)

func testServer(t *testing.T) http.Handler {
	t.Helper()
	pol := &safesql.PolicyFuncs{
		SelectAllowedFunc: func(c safesql.FqColumn) bool {
			return !strings.HasSuffix(c.Column, "_id")
		},
		CondAllowedFunc: func(safesql.FqColumn) bool { return true },
		JoinsFunc: func() []safesql.JoinCondition {
			return []safesql.JoinCondition{safesql.AnyJoin}
		},
		MaxLimitFunc: func() (int, bool) { return 20, true },
	}
	b := bifrost.Mocked(sqlite.SQLite, pol)
	return server.New(b, log.Discard(), ":0").Router()
}

func postJSON(t *testing.T, h http.Handler, path string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestQueryEndpoint(t *testing.T) {
	h := testServer(t)

	// The mocked bifrost echoes the "question" through as SQL
	rec := postJSON(t, h, "/api/query", map[string]any{
		"question": "SELECT t.title FROM t WHERE t.id = :id LIMIT 20",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		SQL string `json:"sql"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.SQL, "t.title")
}

func TestQueryEndpointRequiresQuestion(t *testing.T) {
	h := testServer(t)
	rec := postJSON(t, h, "/api/query", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckEndpointTypedError(t *testing.T) {
	h := testServer(t)

	rec := postJSON(t, h, "/api/check", map[string]any{
		"sql": "SELECT * FROM t1",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "IllegalSelectedColumn", resp.Kind)
	assert.Contains(t, resp.Error, `"*"`)
}

func TestCheckEndpointRepairControl(t *testing.T) {
	h := testServer(t)

	// With repair (the default) an excessive limit is tightened
	rec := postJSON(t, h, "/api/check", map[string]any{
		"sql": "SELECT t.title FROM t WHERE t.id = :id LIMIT 40",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "LIMIT 20")

	// With repair disabled the same statement is rejected
	rec = postJSON(t, h, "/api/check", map[string]any{
		"sql":    "SELECT t.title FROM t WHERE t.id = :id LIMIT 40",
		"repair": false,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
