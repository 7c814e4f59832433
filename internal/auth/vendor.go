// Package auth guards the vendor-facing endpoints with HS256 bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ValidateScope is the scope a vendor token must carry.
const ValidateScope = "coupons:validate"

// DevVendorHeader names the vendor when dev bypass is enabled.
const DevVendorHeader = "X-Local-Dev-Vendor"

var ErrUnauthorized = errors.New("unauthorized")

type ctxKey string

const ctxKeyVendor ctxKey = "rewards.vendor"

// VendorClaims are the claims carried by a vendor token.
type VendorClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

type VendorVerifier struct {
	secret   []byte
	allowDev bool
}

// NewVendorVerifier requires a secret unless allowDev is set.
func NewVendorVerifier(secret string, allowDev bool) (*VendorVerifier, error) {
	if secret == "" && !allowDev {
		return nil, fmt.Errorf("vendor jwt secret required")
	}
	return &VendorVerifier{secret: []byte(secret), allowDev: allowDev}, nil
}

// Verify checks the request's credentials and returns the vendor id.
func (v *VendorVerifier) Verify(r *http.Request) (string, error) {
	if v.allowDev {
		if vendor := r.Header.Get(DevVendorHeader); vendor != "" {
			return vendor, nil
		}
	}
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return "", fmt.Errorf("%w: bearer token required", ErrUnauthorized)
	}
	return v.VerifyToken(strings.TrimSpace(authz[len("bearer "):]))
}

// VerifyToken validates signature, expiry and scope, and returns the subject.
func (v *VendorVerifier) VerifyToken(tokenStr string) (string, error) {
	if len(v.secret) == 0 {
		return "", fmt.Errorf("%w: no vendor secret configured", ErrUnauthorized)
	}
	claims := &VendorClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !token.Valid {
		return "", fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	if !hasScope(claims.Scope, ValidateScope) {
		return "", fmt.Errorf("%w: missing scope %s", ErrUnauthorized, ValidateScope)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrUnauthorized)
	}
	return claims.Subject, nil
}

// SignVendorToken mints a token for vendorID valid for ttl.
func SignVendorToken(secret, vendorID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := VendorClaims{
		Scope: ValidateScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   vendorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Middleware rejects unauthenticated requests with 401 and stores the vendor
// id in the request context.
func (v *VendorVerifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vendor, err := v.Verify(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyVendor, vendor)))
	})
}

// VendorFromContext returns the authenticated vendor id, if any.
func VendorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyVendor).(string); ok {
		return v
	}
	return ""
}

func hasScope(scopes, want string) bool {
	for _, s := range strings.Fields(scopes) {
		if s == want {
			return true
		}
	}
	return false
}
