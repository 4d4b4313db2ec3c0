package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"diagview/internal/auth"
	"diagview/internal/events"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	passwordAuth *auth.PasswordAuth
	jwtManager   *auth.JWTManager
	wsTokenStore *auth.WSTokenStore
	eventStore   *events.Store
	rateLimiter  *auth.LoginRateLimiter
}

// NewAuthHandler creates new auth handler
func NewAuthHandler(passwordAuth *auth.PasswordAuth, jwtManager *auth.JWTManager, wsTokenStore *auth.WSTokenStore, eventStore *events.Store, rateLimiter *auth.LoginRateLimiter) *AuthHandler {
	return &AuthHandler{
		passwordAuth: passwordAuth,
		jwtManager:   jwtManager,
		wsTokenStore: wsTokenStore,
		eventStore:   eventStore,
		rateLimiter:  rateLimiter,
	}
}

// LoginRequest represents login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents login response
type LoginResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	User    *auth.User `json:"user,omitempty"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	clientIP := getClientIP(r)

	if allowed, wait := h.rateLimiter.Allow(clientIP); !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(wait))
		writeJSON(w, http.StatusTooManyRequests, LoginResponse{
			Success: false,
			Message: "Too many login attempts",
		})
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, LoginResponse{
			Success: false,
			Message: "Invalid request body",
		})
		return
	}

	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, LoginResponse{
			Success: false,
			Message: "Username and password are required",
		})
		return
	}

	user, err := h.passwordAuth.Authenticate(req.Username, req.Password)
	if err != nil {
		h.rateLimiter.RecordFailure(clientIP)
		h.eventStore.Add(events.EventLoginFailed, req.Username, "", clientIP)
		writeJSON(w, http.StatusUnauthorized, LoginResponse{
			Success: false,
			Message: "Invalid username or password",
		})
		return
	}

	h.rateLimiter.Reset(clientIP)

	token, err := h.jwtManager.GenerateToken(user)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, LoginResponse{
			Success: false,
			Message: "Failed to generate token",
		})
		return
	}

	auth.SetAuthCookie(w, r, token, int(h.jwtManager.TokenDuration().Seconds()))
	h.eventStore.Add(events.EventLogin, user.Username, "", clientIP)

	writeJSON(w, http.StatusOK, LoginResponse{
		Success: true,
		User:    user,
	})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	username := ""
	if user := auth.GetUserFromContext(r.Context()); user != nil {
		username = user.Username
	}

	auth.ClearAuthCookie(w)
	h.eventStore.Add(events.EventLogout, username, "", getClientIP(r))

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": user,
	})
}

// WSToken handles GET /api/auth/ws-token.
// Returns a one-time token for opening the telemetry stream.
func (h *AuthHandler) WSToken(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	token, err := h.wsTokenStore.Generate(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
