package api

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illegalcall/avocatel/internal/payments"
)

const selectMarkersSQL = "SELECT session_id, event_id, user_id, credits, source, processed_at FROM processed_payments WHERE user_id = $1 ORDER BY processed_at DESC"

func adminToken(t *testing.T, env *testEnv) string {
	t.Helper()
	resp := env.do(t, jsonRequest("POST", "/api/admin/login", `{"email":"ops@example.com","password":"hunter2"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, ok := decodeJSON(t, resp)["token"].(string)
	require.True(t, ok)
	return token
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, httptest.NewRequest("GET", "/api/admin/profiles/u1", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "missing token")

	req := httptest.NewRequest("GET", "/api/admin/profiles/u1", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp = env.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminProfile(t *testing.T) {
	env := setupTestServer(t)
	token := adminToken(t, env)
	now := time.Now()

	env.mock.ExpectQuery(regexp.QuoteMeta(selectProfileSQL)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(profileColumns).AddRow("u1", 13, "ro", false, now))
	env.mock.ExpectQuery(regexp.QuoteMeta(selectMarkersSQL)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(markerColumns).AddRow("cs_1", "evt_1", "u1", 10, "webhook", now))

	req := httptest.NewRequest("GET", "/api/admin/profiles/u1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := env.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeJSON(t, resp)
	assert.Equal(t, float64(13), result["profile"].(map[string]interface{})["credits"])
	assert.Len(t, result["payments"], 1)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestAdminProfileNotFound(t *testing.T) {
	env := setupTestServer(t)
	token := adminToken(t, env)

	env.mock.ExpectQuery(regexp.QuoteMeta(selectProfileSQL)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(profileColumns))

	req := httptest.NewRequest("GET", "/api/admin/profiles/ghost", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := env.do(t, req)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminReplay(t *testing.T) {
	env := setupTestServer(t)
	token := adminToken(t, env)
	env.gateway.addSession(paidSession("cs_1"))
	env.gateway.addSession(&payments.CheckoutSession{ID: "cs_open", Status: payments.StatusOpen, PaymentStatus: payments.PaymentUnpaid})

	replay := func(sessionID string) *http.Response {
		req := httptest.NewRequest("POST", "/api/admin/reconciliations/"+sessionID+"/replay", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		return env.do(t, req)
	}

	t.Run("applies a missed payment", func(t *testing.T) {
		expectApply(env.mock, "cs_1", "u1", 3, 10)

		resp := replay("cs_1")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		result := decodeJSON(t, resp)
		assert.Equal(t, "applied", result["outcome"])
		assert.Equal(t, float64(13), result["balance"])
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("unpaid session", func(t *testing.T) {
		resp := replay("cs_open")
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("unknown session", func(t *testing.T) {
		resp := replay("cs_missing")
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})
}
