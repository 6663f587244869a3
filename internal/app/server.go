package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/hyperifyio/goreply/internal/corpus"
	"github.com/hyperifyio/goreply/internal/llm"
	"github.com/hyperifyio/goreply/internal/suggest"
)

// SessionHeader carries the operator session id. Cached replies are scoped to
// it; a request without one gets a fresh id back in the response.
const SessionHeader = "X-Session-ID"

type suggestRequest struct {
	Platform    string `json:"platform"`
	UserID      string `json:"user_id"`
	Comment     string `json:"comment"`
	MaxExamples int    `json:"max_examples,omitempty"`
}

type suggestResponse struct {
	Session     string   `json:"session"`
	Platform    string   `json:"platform"`
	UserID      string   `json:"user_id"`
	DisplayName string   `json:"display_name"`
	Emotion     string   `json:"emotion"`
	Tone        string   `json:"tone,omitempty"`
	Greeting    string   `json:"greeting"`
	Candidates  []string `json:"candidates"`
	Raw         string   `json:"raw"`
	Cached      bool     `json:"cached"`
	Exemplars   int      `json:"exemplars"`
	LogError    string   `json:"log_error,omitempty"`
}

type userResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Comments    int    `json:"comments"`
}

type renameRequest struct {
	Name string `json:"name"`
}

// rateLimit rejects requests beyond the sustained rate with 429.
func rateLimit(next http.Handler, rps float64, burst int) http.Handler {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewHandler exposes the engine as a small JSON API.
func NewHandler(engine *suggest.Engine, rps float64, burst int) http.Handler {
	s := &server{engine: engine}
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/suggest", s.handleSuggest).Methods(http.MethodPost)
	api.HandleFunc("/users", s.handleUsers).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/name", s.handleRename).Methods(http.MethodPut)
	api.HandleFunc("/profile", s.handleProfile).Methods(http.MethodGet)
	api.HandleFunc("/session", s.handleEndSession).Methods(http.MethodDelete)
	api.Use(func(next http.Handler) http.Handler { return rateLimit(next, rps, burst) })
	return r
}

type server struct {
	engine *suggest.Engine
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": VersionString()})
}

// session returns the caller's session id, minting one when absent. A
// malformed id is rejected rather than replaced so a client bug does not
// silently lose its cache.
func session(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+SessionHeader)
		return "", false
	}
	w.Header().Set(SessionHeader, id)
	return id, true
}

func platformParam(w http.ResponseWriter, raw string) (corpus.Platform, bool) {
	p, err := corpus.ParsePlatform(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return p, true
}

func (s *server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	sid, ok := session(w, r)
	if !ok {
		return
	}
	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p, ok := platformParam(w, req.Platform)
	if !ok {
		return
	}
	// Only the generic platform may omit the commenter; it has no history.
	if strings.TrimSpace(req.UserID) == "" && p != corpus.Generic {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	res, err := s.engine.Suggest(r.Context(), suggest.Request{
		Session:     sid,
		Platform:    p,
		UserID:      req.UserID,
		Comment:     req.Comment,
		MaxExamples: req.MaxExamples,
	})
	switch {
	case errors.Is(err, suggest.ErrEmptyComment):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, llm.ErrCompletion):
		writeError(w, http.StatusBadGateway, err.Error())
		return
	case err != nil:
		log.Error().Err(err).Msg("suggest failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := suggestResponse{
		Session:     sid,
		Platform:    string(p),
		UserID:      req.UserID,
		DisplayName: s.engine.DisplayName(req.UserID),
		Emotion:     string(res.Context.Emotion),
		Tone:        string(res.Context.Tone),
		Greeting:    res.Context.GreetingInstruction,
		Candidates:  res.Candidates,
		Raw:         res.Raw,
		Cached:      res.Cached,
		Exemplars:   len(res.Exemplars),
	}
	if out.Candidates == nil {
		out.Candidates = []string{}
	}
	if res.LogErr != nil {
		out.LogError = res.LogErr.Error()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := platformParam(w, r.URL.Query().Get("platform"))
	if !ok {
		return
	}
	recs := s.engine.Users(p)
	out := make([]userResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, userResponse{
			UserID:      rec.UserID,
			DisplayName: s.engine.DisplayName(rec.UserID),
			Comments:    len(rec.Comments),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleRename(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.engine.Rename(id, req.Name); err != nil {
		if errors.Is(err, corpus.ErrInvalidName) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("user", id).Msg("rename failed")
		writeError(w, http.StatusInternalServerError, "rename failed")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{UserID: id, DisplayName: s.engine.DisplayName(id)})
}

func (s *server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := platformParam(w, r.URL.Query().Get("platform"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Profile(p))
}

func (s *server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+SessionHeader)
		return
	}
	if err := s.engine.EndSession(r.Context(), id); err != nil {
		log.Error().Err(err).Str("session", id).Msg("end session failed")
		writeError(w, http.StatusInternalServerError, "end session failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Serve runs the JSON API until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.ServerAddr,
		Handler:           NewHandler(a.engine, a.cfg.ServerRPS, a.cfg.ServerBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("serving reply API")
		errCh <- srv.ListenAndServe()
	}()
	go a.PurgeExpired(ctx, time.Minute)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("reply API stopped")
	return nil
}
