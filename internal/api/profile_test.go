package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	insertProfileSQL = "INSERT INTO profiles (id, credits, language, is_lawyer) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING"
	debitCreditSQL   = "UPDATE profiles SET credits = credits - 1 WHERE id = $1 AND credits > 0 RETURNING credits"
	profileExistsSQL = "SELECT COUNT(*) FROM profiles WHERE id = $1"
)

func TestGetProfileRequiresSession(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, httptest.NewRequest("GET", "/api/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/api/profile", nil)
	req.AddCookie(&http.Cookie{Name: "avocatel-auth", Value: "not-a-session"})
	resp = env.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetProfileCreatesOnFirstLogin(t *testing.T) {
	env := setupTestServer(t)
	now := time.Now()

	env.mock.ExpectQuery(regexp.QuoteMeta(selectProfileSQL)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(profileColumns))
	env.mock.ExpectExec(regexp.QuoteMeta(insertProfileSQL)).
		WithArgs("u1", 3, "ro", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectQuery(regexp.QuoteMeta(selectProfileSQL)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(profileColumns).AddRow("u1", 3, "ro", false, now))

	req := httptest.NewRequest("GET", "/api/profile", nil)
	req.AddCookie(env.sessionCookie(t, "u1"))
	resp := env.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeJSON(t, resp)
	assert.Equal(t, true, result["created"])
	profile := result["profile"].(map[string]interface{})
	assert.Equal(t, "u1", profile["id"])
	assert.Equal(t, float64(3), profile["credits"])
	assert.Equal(t, "ro", profile["language"])
	assert.Equal(t, false, profile["isLawyer"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestGetProfileExisting(t *testing.T) {
	env := setupTestServer(t)

	env.mock.ExpectQuery(regexp.QuoteMeta(selectProfileSQL)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(profileColumns).AddRow("u1", 42, "en", true, time.Now()))

	req := httptest.NewRequest("GET", "/api/profile", nil)
	req.AddCookie(env.sessionCookie(t, "u1"))
	resp := env.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeJSON(t, resp)
	assert.Equal(t, false, result["created"])
	assert.Equal(t, float64(42), result["profile"].(map[string]interface{})["credits"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestGetProfileStoreFailure(t *testing.T) {
	env := setupTestServer(t)

	env.mock.ExpectQuery(regexp.QuoteMeta(selectProfileSQL)).
		WithArgs("u1").
		WillReturnError(errors.New("connection refused"))

	req := httptest.NewRequest("GET", "/api/profile", nil)
	req.AddCookie(env.sessionCookie(t, "u1"))
	resp := env.do(t, req)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestChatMessageDebitsOneCredit(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setup          func(sqlmock.Sqlmock)
		expectedStatus int
		credits        float64
	}{
		{
			name: "debits",
			body: `{"message":"Can my landlord keep the deposit?"}`,
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(debitCreditSQL)).
					WithArgs("u1").
					WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(2))
			},
			expectedStatus: http.StatusOK,
			credits:        2,
		},
		{
			name: "no credits left",
			body: `{"message":"hello"}`,
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(debitCreditSQL)).
					WithArgs("u1").
					WillReturnRows(sqlmock.NewRows([]string{"credits"}))
				m.ExpectQuery(regexp.QuoteMeta(profileExistsSQL)).
					WithArgs("u1").
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
			},
			expectedStatus: http.StatusPaymentRequired,
			credits:        0,
		},
		{
			name: "unknown profile",
			body: `{"message":"hello"}`,
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(debitCreditSQL)).
					WithArgs("u1").
					WillReturnRows(sqlmock.NewRows([]string{"credits"}))
				m.ExpectQuery(regexp.QuoteMeta(profileExistsSQL)).
					WithArgs("u1").
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "empty message",
			body:           `{"message":"   "}`,
			setup:          func(sqlmock.Sqlmock) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "store failure",
			body: `{"message":"hello"}`,
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(debitCreditSQL)).
					WithArgs("u1").
					WillReturnError(errors.New("connection refused"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestServer(t)
			tt.setup(env.mock)

			req := jsonRequest("POST", "/api/chat/messages", tt.body)
			req.AddCookie(env.sessionCookie(t, "u1"))
			resp := env.do(t, req)
			require.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK || tt.expectedStatus == http.StatusPaymentRequired {
				assert.Equal(t, tt.credits, decodeJSON(t, resp)["credits"])
			}
			assert.NoError(t, env.mock.ExpectationsWereMet())
		})
	}
}
