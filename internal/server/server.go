// Package server exposes the Listener HTTP API.
//
// Routes:
//
//	POST /auth/register   — create an account, returns an access token
//	POST /auth/login      — exchange credentials for an access token
//	POST /voice-note      — submit a voice note for processing (bearer auth)
//	GET  /realtime/token  — mint a short-lived realtime client token (bearer auth)
//	GET  /healthz, /readyz, /metrics
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/listener-ai/listener/internal/health"
	"github.com/listener-ai/listener/internal/identity"
	"github.com/listener-ai/listener/internal/observe"
	"github.com/listener-ai/listener/internal/pipeline"
)

// maxUploadBytes caps a single voice-note upload (25 MiB, matching typical
// transcription API limits).
const maxUploadBytes = 25 << 20

// Server wires HTTP handlers to the Listener subsystems.
type Server struct {
	identities *identity.Service
	pipe       *pipeline.Pipeline
	health     *health.Handler
	metrics    *observe.Metrics
}

// New creates a [Server]. health may be nil to skip probe routes; metrics may
// be nil to skip the middleware and /metrics route.
func New(ids *identity.Service, pipe *pipeline.Pipeline, h *health.Handler, m *observe.Metrics) *Server {
	return &Server{
		identities: ids,
		pipe:       pipe,
		health:     h,
		metrics:    m,
	}
}

// Handler builds the chi router for the full API surface.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	if s.metrics != nil {
		r.Use(observe.Middleware(s.metrics))
		r.Method("GET", "/metrics", promhttp.Handler())
	}
	if s.health != nil {
		s.health.Register(r)
	}

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/voice-note", s.handleVoiceNote)
		r.Get("/realtime/token", s.handleRealtimeToken)
	})

	return r
}

// ─── Auth ────────────────────────────────────────────────────────────────────

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Email == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	token, err := s.identities.Register(r.Context(), body.Email, body.Password)
	if errors.Is(err, identity.ErrDuplicateEmail) {
		writeError(w, http.StatusBadRequest, "email is already registered")
		return
	}
	if err != nil {
		observe.Logger(r.Context()).Error("register failed", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.identities.Login(r.Context(), body.Email, body.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		observe.Logger(r.Context()).Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// ─── Bearer auth middleware ──────────────────────────────────────────────────

type contextKey string

const userContextKey contextKey = "listener.user"

// requireAuth resolves the bearer token to a user and stashes it in the
// request context. Unauthenticated requests get a 401.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := s.identities.Resolve(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		ctx := contextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ─── Voice note ──────────────────────────────────────────────────────────────

type voiceNoteResponse struct {
	SessionID       string   `json:"session_id"`
	ReplyText       string   `json:"reply_text"`
	ReplyAudio      []byte   `json:"reply_audio"` // base64 in JSON
	SafetyLevel     string   `json:"safety_level"`
	Reasons         []string `json:"reasons,omitempty"`
	CooldownSeconds int      `json:"cooldown_seconds"`
	StoredAudioRef  string   `json:"stored_audio_ref,omitempty"`
}

func (s *Server) handleVoiceNote(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	out, err := s.pipe.Run(r.Context(), pipeline.Request{
		UserKey:     user.Key(),
		UserID:      user.ID,
		Audio:       audio,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		StoreRaw:    r.FormValue("store_raw") == "true",
	})
	if errors.Is(err, pipeline.ErrUpstream) {
		observe.Logger(r.Context()).Error("voice note failed upstream", "error", err)
		writeError(w, http.StatusBadGateway, "a speech provider is unavailable")
		return
	}
	if err != nil {
		observe.Logger(r.Context()).Error("voice note failed", "error", err)
		writeError(w, http.StatusInternalServerError, "voice note processing failed")
		return
	}

	writeJSON(w, http.StatusOK, voiceNoteResponse{
		SessionID:       out.SessionID,
		ReplyText:       out.ReplyText,
		ReplyAudio:      out.ReplyAudio,
		SafetyLevel:     string(out.SafetyLevel),
		Reasons:         out.Reasons,
		CooldownSeconds: out.CooldownSeconds,
		StoredAudioRef:  out.StoredAudioRef,
	})
}

// ─── Realtime token ──────────────────────────────────────────────────────────

func (s *Server) handleRealtimeToken(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	rt, err := s.identities.RealtimeToken(r.Context(), token)
	if errors.Is(err, identity.ErrInvalidToken) {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	if err != nil {
		observe.Logger(r.Context()).Error("realtime token failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not mint realtime token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: rt})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	token := strings.TrimSpace(auth[len(prefix):])
	return token, token != ""
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encoding failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
