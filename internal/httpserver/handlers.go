package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	authdomain "tokenauth/backend/internal/domain/auth"
	"tokenauth/backend/internal/metrics"

	"github.com/go-chi/chi/v5"
)

func (s *Server) registerRoutes() {
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	s.router.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		s.router.Method(http.MethodGet, "/metrics", metrics.Handler(s.gatherer))
	}
	s.router.With(s.withLoginThrottle).Post("/token", s.handleToken)

	s.router.Route("/users/me", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleMe)
		r.Get("/items", s.handleMyItems)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	GrantType string `json:"grant_type"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// maxLoginBody caps JSON login bodies; form bodies are capped by ParseForm.
const maxLoginBody = 1 << 20

// decodeLogin accepts the OAuth2 password form encoding and, as a convenience, JSON.
func decodeLogin(w http.ResponseWriter, r *http.Request) (loginRequest, error) {
	var req loginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBody)).Decode(&req); err != nil {
			return req, err
		}
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.GrantType = r.PostForm.Get("grant_type")
	req.Username = r.PostForm.Get("username")
	req.Password = r.PostForm.Get("password")
	return req, nil
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	req, err := decodeLogin(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GrantType != "" && req.GrantType != "password" {
		writeError(w, http.StatusBadRequest, "unsupported grant_type")
		return
	}

	token, err := s.authService.Login(r.Context(), authdomain.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, authdomain.ErrInvalidCredentials):
			writeUnauthorized(w, "Incorrect username or password")
		case errors.Is(err, authdomain.ErrLoginLocked):
			writeError(w, http.StatusTooManyRequests, "Too many failed login attempts")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

type ownedItem struct {
	ItemID string `json:"item_id"`
	Owner  string `json:"owner"`
}

func (s *Server) handleMyItems(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, []ownedItem{{ItemID: "Foo", Owner: identity.Username}})
}

// authMiddleware resolves the bearer token to an active identity. The reason for a
// rejection is logged by the auth service and never echoed to the caller.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeUnauthorized(w, "Not authenticated")
			return
		}

		identity, err := s.authService.VerifyToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, authdomain.ErrAccountDisabled):
				writeError(w, http.StatusBadRequest, "Inactive user")
			case errors.Is(err, authdomain.ErrInvalidToken),
				errors.Is(err, authdomain.ErrTokenExpired),
				errors.Is(err, authdomain.ErrUnknownSubject):
				writeUnauthorized(w, "Could not validate credentials")
			default:
				writeError(w, http.StatusInternalServerError, "internal error")
			}
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyIdentity{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type ctxKeyIdentity struct{}

func currentIdentityFromContext(ctx context.Context) (*authdomain.Identity, bool) {
	identity, ok := ctx.Value(ctxKeyIdentity{}).(*authdomain.Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

func extractBearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
