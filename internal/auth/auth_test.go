package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tendertrack/internal/auth"
)

var secret = []byte("test-secret")

func TestTokenRoundTrip(t *testing.T) {
	token, err := auth.IssueToken(secret, 7, "logistics1", "logistics", time.Hour)
	require.NoError(t, err)

	claims, err := auth.ParseToken(secret, token)
	require.NoError(t, err)
	require.Equal(t, 7, claims.UserID)
	require.Equal(t, "logistics", claims.Role)
	require.Equal(t, "logistics1", claims.Subject)
}

func TestParseTokenExpired(t *testing.T) {
	token, err := auth.IssueToken(secret, 7, "logistics1", "logistics", -time.Minute)
	require.NoError(t, err)

	_, err = auth.ParseToken(secret, token)
	require.Error(t, err)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := auth.IssueToken(secret, 7, "logistics1", "logistics", time.Hour)
	require.NoError(t, err)

	_, err = auth.ParseToken([]byte("other-secret"), token)
	require.Error(t, err)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateMissingToken(t *testing.T) {
	handler := auth.Authenticate(secret)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/tenders/search", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
}

func TestAuthenticateInvalidToken(t *testing.T) {
	handler := auth.Authenticate(secret)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/tenders/search", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
}

func TestAuthenticateStoresClaims(t *testing.T) {
	var got *auth.Claims
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := auth.Authenticate(secret)(inner)

	token, err := auth.IssueToken(secret, 7, "admin", "admin", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/tenders/search", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.NotNil(t, got)
	require.Equal(t, 7, got.UserID)
	require.Equal(t, "admin", got.Role)
}

func TestAuthorize(t *testing.T) {
	handler := auth.Authorize("admin", "logistics")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/upload/logistics", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{UserID: 2, Role: "logistics"}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Result().StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/api/upload/logistics", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{UserID: 3, Role: "challan"}))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Result().StatusCode)

	// вообще без claims
	req = httptest.NewRequest(http.MethodPost, "/api/upload/logistics", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Result().StatusCode)
}
