package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	UserContextKey contextKey = "user"
	CookieName     string     = "diagview_token"
)

// Middleware handles authentication for protected routes
type Middleware struct {
	jwtManager *JWTManager
	noAuth     bool
}

// NewMiddleware creates new auth middleware.
// With noAuth set every request is treated as the local operator.
func NewMiddleware(jwtManager *JWTManager, noAuth bool) *Middleware {
	return &Middleware{jwtManager: jwtManager, noAuth: noAuth}
}

// RequireAuth middleware checks for a valid JWT in the auth cookie or a Bearer header
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.noAuth {
			local := &User{Username: "local", Role: RoleAdmin}
			next.ServeHTTP(w, r.WithContext(SetUserContext(r.Context(), local)))
			return
		}

		token := tokenFromRequest(r)
		if token == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			ClearAuthCookie(w)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		user := &User{
			Username: claims.Username,
			Role:     claims.Role,
		}
		next.ServeHTTP(w, r.WithContext(SetUserContext(r.Context(), user)))
	})
}

// RequireAdmin middleware checks for admin role
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if !user.IsAdmin() {
			http.Error(w, "Forbidden: admin access required", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// GetUserFromContext extracts user from request context
func GetUserFromContext(ctx context.Context) *User {
	user, ok := ctx.Value(UserContextKey).(*User)
	if !ok {
		return nil
	}
	return user
}

// SetUserContext adds user to context
func SetUserContext(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// SetAuthCookie sets JWT token in HttpOnly cookie
// Automatically sets Secure flag when request is over HTTPS
func SetAuthCookie(w http.ResponseWriter, r *http.Request, token string, maxAge int) {
	secure := r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   secure,
	})
}

// ClearAuthCookie removes auth cookie
func ClearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
