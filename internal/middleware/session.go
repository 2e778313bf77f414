package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"
)

// CookieName is the session cookie every dashboard request carries.
const CookieName = "pd_session"

type contextKey string

// OperatorKey is the request-context key holding the authenticated operator id.
const OperatorKey contextKey = "operator"

// SessionGuard authenticates requests by verifying the HMAC-signed session
// cookie. With SESSION_SECRET unset (local development) every request is
// treated as the "dev" operator.
type SessionGuard struct {
	Secret string
}

func NewSessionGuard() *SessionGuard {
	return &SessionGuard{Secret: strings.TrimSpace(os.Getenv("SESSION_SECRET"))}
}

// Middleware returns an HTTP middleware enforcing the session cookie.
func (sg *SessionGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sg.shouldSkip(r) {
			next.ServeHTTP(w, r)
			return
		}

		operator, ok := sg.verify(r)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "unauthenticated"})
			return
		}

		ctx := context.WithValue(r.Context(), OperatorKey, operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// shouldSkip returns true for routes that must work before a session exists.
func (sg *SessionGuard) shouldSkip(r *http.Request) bool {
	skipPaths := []string{
		"/health",
		"/api/session",
		"/api/auth/",
		"/api/events",
		"/media/",
	}
	for _, path := range skipPaths {
		if strings.HasPrefix(r.URL.Path, path) {
			return true
		}
	}
	return false
}

func (sg *SessionGuard) verify(r *http.Request) (string, bool) {
	if sg.Secret == "" {
		return "dev", true
	}
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	operator, sig, ok := strings.Cut(c.Value, ".")
	if !ok || operator == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(sg.sign(operator))) {
		return "", false
	}
	return operator, true
}

func (sg *SessionGuard) sign(operator string) string {
	mac := hmac.New(sha256.New, []byte(sg.Secret))
	mac.Write([]byte(operator))
	return hex.EncodeToString(mac.Sum(nil))
}

// IssueCookie builds the signed session cookie for an operator.
func (sg *SessionGuard) IssueCookie(operator string) *http.Cookie {
	value := operator
	if sg.Secret != "" {
		value = operator + "." + sg.sign(operator)
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	}
}

// Operator pulls the authenticated operator id out of a request context.
func Operator(ctx context.Context) string {
	if v, ok := ctx.Value(OperatorKey).(string); ok {
		return v
	}
	return ""
}
