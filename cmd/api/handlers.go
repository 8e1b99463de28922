package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/pmorken/letterchat/internal/auth"
	"github.com/pmorken/letterchat/internal/chat"
	"github.com/pmorken/letterchat/internal/extract"
	"github.com/pmorken/letterchat/internal/fault"
	"github.com/pmorken/letterchat/internal/ingest"
)

const (
	maxUploadBytes = 32 << 20
	uploadTimeout  = 5 * time.Minute
)

type server struct {
	logger    zerolog.Logger
	auth      *auth.Service
	pipeline  *ingest.Pipeline
	assistant *chat.Orchestrator
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
		hlog.FromRequest(r).Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Get("/auth/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]bool{"enabled": s.auth.Enabled()})
	})
	if s.auth.Enabled() {
		r.Get("/auth/github", s.handleLogin)
		r.Get("/auth/callback", s.handleCallback)
		r.Get("/auth/me", s.handleMe)
		r.Post("/auth/logout", s.handleLogout)
	}

	r.Post("/upload", s.auth.RequireAuth(s.handleUpload))
	r.Post("/chat", s.auth.RequireAuth(s.handleChat))

	return r
}

// handleUpload accepts a multipart document (file, year, title, optional
// sourceUrl), extracts its text, and runs the ingestion pipeline.
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	year, _ := strconv.Atoi(r.FormValue("year"))
	title := r.FormValue("title")
	sourceURL := r.FormValue("sourceUrl")

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}

	text, err := extract.Text(header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), uploadTimeout)
	defer cancel()

	chunks, err := s.pipeline.Ingest(ctx, ingest.Request{
		Year:      year,
		Title:     title,
		SourceURL: sourceURL,
		Text:      text,
	})
	if err != nil {
		// Chunks persisted before the failure remain persisted.
		s.fail(w, r, err)
		return
	}

	writeJSON(w, map[string]any{"success": true, "chunks": chunks})
}

type chatRequest struct {
	Message  string        `json:"message"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// question extracts the user question: the "message" field when present,
// otherwise the content of the last element of "messages". Anything else
// is a validation error, never a silent fallback.
func (req chatRequest) question() (string, error) {
	if q := strings.TrimSpace(req.Message); q != "" {
		return q, nil
	}
	if len(req.Messages) > 0 {
		if q := strings.TrimSpace(req.Messages[len(req.Messages)-1].Content); q != "" {
			return q, nil
		}
	}
	return "", fault.Wrap(fault.ErrValidation, errors.New("message is required"))
}

// handleChat answers a question with a server-sent event stream: one
// "data:" event per fragment, then "event: done" on a clean finish or
// "event: error" when the upstream stream aborts. Fragments already sent
// are never retracted; the terminal event is what tells a complete answer
// from a truncated one.
func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	question, err := req.question()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// The request context cancels on client disconnect, which tears down
	// the upstream provider call as well.
	stream, err := s.assistant.Answer(r.Context(), question)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer stream.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		frag, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			fmt.Fprint(w, "event: done\ndata: \n\n")
			flusher.Flush()
			return
		}
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Str("kind", fault.Kind(err)).Msg("chat stream aborted")
			fmt.Fprint(w, "event: error\ndata: stream aborted\n\n")
			flusher.Flush()
			return
		}
		writeSSEData(w, frag)
		flusher.Flush()
	}
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := s.auth.GenerateState()

	// Store state in cookie for validation
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   strings.HasPrefix(r.Header.Get("X-Forwarded-Proto"), "https"),
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, s.auth.LoginURL(state), http.StatusTemporaryRedirect)
}

func (s *server) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value != state {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	// Clear state cookie
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: "", Path: "/", MaxAge: -1})

	if code == "" {
		http.Error(w, "Missing code parameter", http.StatusBadRequest)
		return
	}

	accessToken, err := s.auth.ExchangeCode(r.Context(), code)
	if err != nil {
		http.Error(w, "Failed to exchange code for token", http.StatusInternalServerError)
		return
	}

	user, err := s.auth.FetchUser(r.Context(), accessToken)
	if err != nil {
		http.Error(w, "Failed to get user info: "+err.Error(), http.StatusInternalServerError)
		return
	}

	token, err := s.auth.GenerateToken(user)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		Path:     "/",
		MaxAge:   86400, // 24 hours
		HttpOnly: true,
		Secure:   strings.HasPrefix(r.Header.Get("X-Forwarded-Proto"), "https"),
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, auth.Response{User: *user, Token: token})
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	var tokenString string
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		tokenString = strings.TrimPrefix(authHeader, "Bearer ")
	} else if cookie, err := r.Cookie("auth_token"); err == nil {
		tokenString = cookie.Value
	}

	if tokenString == "" {
		http.Error(w, "No authentication token", http.StatusUnauthorized)
		return
	}

	user, err := s.auth.ValidateToken(tokenString)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	writeJSON(w, auth.Response{User: *user, Token: tokenString})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "auth_token", Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusOK)
}

// fail logs the error with its taxonomy kind and collapses it to a generic
// user-visible status: bad input is 400, everything else 500.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	hlog.FromRequest(r).Error().Err(err).Str("kind", fault.Kind(err)).Msg("request failed")
	switch {
	case errors.Is(err, fault.ErrValidation), errors.Is(err, fault.ErrFormat):
		http.Error(w, "invalid request", http.StatusBadRequest)
	case errors.Is(err, fault.ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	default:
		http.Error(w, "processing failed", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// writeSSEData writes one fragment as an SSE data event. Multi-line
// fragments become multiple data lines of the same event so newlines
// survive the framing.
func writeSSEData(w io.Writer, frag string) {
	for _, line := range strings.Split(frag, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
