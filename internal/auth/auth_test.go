package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordAuth(t *testing.T) {
	a := NewPasswordAuth("s3cret")

	user, err := a.Authenticate(AdminUsername, "s3cret")
	require.NoError(t, err)
	assert.True(t, user.IsAdmin())

	_, err = a.Authenticate(AdminUsername, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Authenticate("guest", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = NewPasswordAuth("").Authenticate(AdminUsername, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "empty password disables login")
}

func TestJWTRoundTrip(t *testing.T) {
	_, err := NewJWTManager("", time.Hour)
	require.Error(t, err)

	m, err := NewJWTManager("secret", time.Hour)
	require.NoError(t, err)

	token, err := m.GenerateToken(&User{Username: "admin", Role: RoleAdmin})
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, Issuer, claims.Issuer)

	other, err := NewJWTManager("other", time.Hour)
	require.NoError(t, err)
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTExpired(t *testing.T) {
	m, err := NewJWTManager("secret", time.Minute)
	require.NoError(t, err)

	issued := time.Now()
	m.now = func() time.Time { return issued }
	token, err := m.GenerateToken(&User{Username: "admin", Role: RoleAdmin})
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestRequireAuth(t *testing.T) {
	m, err := NewJWTManager("secret", time.Hour)
	require.NoError(t, err)

	var seen *User
	protected := func(mw *Middleware) http.Handler {
		return mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetUserFromContext(r.Context())
		}))
	}

	rec := httptest.NewRecorder()
	protected(NewMiddleware(m, false)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := m.GenerateToken(&User{Username: "viewer", Role: RoleReadOnly})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec = httptest.NewRecorder()
	protected(NewMiddleware(m, false)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "viewer", seen.Username)
	assert.False(t, seen.IsAdmin())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	protected(NewMiddleware(m, false)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	seen = nil
	rec = httptest.NewRecorder()
	protected(NewMiddleware(m, true)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, seen.IsAdmin())
}

func TestRequireAdmin(t *testing.T) {
	mw := NewMiddleware(nil, false)
	h := mw.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPut, "/", nil)
	req = req.WithContext(SetUserContext(req.Context(), &User{Username: "viewer", Role: RoleReadOnly}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWSTokenOneTimeUse(t *testing.T) {
	s := NewWSTokenStore()
	token, err := s.Generate(&User{Username: "admin", Role: RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, token, WSTokenLength*2)

	user, ok := s.Consume(token)
	require.True(t, ok)
	assert.Equal(t, "admin", user.Username)

	_, ok = s.Consume(token)
	assert.False(t, ok)
}

func TestWSTokenExpires(t *testing.T) {
	s := NewWSTokenStore()
	start := time.Now()
	s.now = func() time.Time { return start }

	stale, err := s.Generate(&User{Username: "admin"})
	require.NoError(t, err)
	_, err = s.Generate(&User{Username: "admin"})
	require.NoError(t, err)

	s.now = func() time.Time { return start.Add(WSTokenTTL + time.Second) }
	_, ok := s.Consume(stale)
	assert.False(t, ok)

	s.cleanup()
	assert.Zero(t, s.Len())
}

func TestLoginRateLimiter(t *testing.T) {
	rl := NewLoginRateLimiter()
	start := time.Now()
	rl.now = func() time.Time { return start }

	for i := 0; i < 4; i++ {
		rl.RecordFailure("10.0.0.1")
		allowed, _ := rl.Allow("10.0.0.1")
		assert.True(t, allowed)
	}
	rl.RecordFailure("10.0.0.1")
	allowed, wait := rl.Allow("10.0.0.1")
	assert.False(t, allowed)
	assert.Greater(t, wait, 0)

	allowed, _ = rl.Allow("10.0.0.2")
	assert.True(t, allowed, "other addresses are unaffected")

	rl.now = func() time.Time { return start.Add(6 * time.Minute) }
	allowed, _ = rl.Allow("10.0.0.1")
	assert.True(t, allowed)

	rl.RecordFailure("10.0.0.1")
	allowed, _ = rl.Allow("10.0.0.1")
	assert.True(t, allowed, "counter restarts after a block")

	rl.Reset("10.0.0.1")
	rl.cleanup()
	assert.Empty(t, rl.attempts)
}

func TestLoginRateLimiterWindow(t *testing.T) {
	rl := NewLoginRateLimiter()
	start := time.Now()
	rl.now = func() time.Time { return start }
	for i := 0; i < 4; i++ {
		rl.RecordFailure("ip")
	}

	rl.now = func() time.Time { return start.Add(3 * time.Minute) }
	rl.RecordFailure("ip")
	allowed, _ := rl.Allow("ip")
	assert.True(t, allowed, "failures outside the window are forgotten")
}
