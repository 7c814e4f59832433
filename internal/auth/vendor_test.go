package auth_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ILLUVRSE/pizza-rewards/internal/auth"
)

const secret = "vendor-secret"

func TestVerifyTokenAcceptsSignedVendor(t *testing.T) {
	v, err := auth.NewVendorVerifier(secret, false)
	require.NoError(t, err)

	tok, err := auth.SignVendorToken(secret, "slice-shack", time.Minute)
	require.NoError(t, err)
	vendor, err := v.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "slice-shack", vendor)
}

func TestVerifyTokenRejects(t *testing.T) {
	v, err := auth.NewVendorVerifier(secret, false)
	require.NoError(t, err)

	wrongKey, _ := auth.SignVendorToken("other", "slice-shack", time.Minute)
	expired, _ := auth.SignVendorToken(secret, "slice-shack", -time.Minute)
	noScope, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.VendorClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "x", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}).SignedString([]byte(secret))
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.VendorClaims{
		Scope:            auth.ValidateScope,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "x"},
	}).SignedString([]byte(secret))
	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, auth.VendorClaims{
		Scope:            auth.ValidateScope,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "x", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, tok := range map[string]string{
		"wrong key": wrongKey,
		"expired":   expired,
		"no scope":  noScope,
		"no expiry": noExpiry,
		"alg none":  unsigned,
		"garbage":   "not-a-token",
	} {
		_, err := v.VerifyToken(tok)
		assert.True(t, errors.Is(err, auth.ErrUnauthorized), name)
	}
}

func TestNewVendorVerifierRequiresSecret(t *testing.T) {
	_, err := auth.NewVendorVerifier("", false)
	assert.Error(t, err)
	_, err = auth.NewVendorVerifier("", true)
	assert.NoError(t, err)
}

func TestMiddleware(t *testing.T) {
	v, err := auth.NewVendorVerifier(secret, true)
	require.NoError(t, err)
	var seen string
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.VendorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/coupons/validate", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	tok, _ := auth.SignVendorToken(secret, "pie-palace", time.Minute)
	req := httptest.NewRequest(http.MethodPost, "/coupons/validate", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "pie-palace", seen)

	req = httptest.NewRequest(http.MethodPost, "/coupons/validate", nil)
	req.Header.Set(auth.DevVendorHeader, "local")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "local", seen)
}
