package app

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baristabuddy/baristabuddy/internal/health"
	"github.com/baristabuddy/baristabuddy/internal/observe"
	"github.com/baristabuddy/baristabuddy/internal/session"
)

// maxUtteranceBytes caps an utterance upload. A minute of 48 kHz stereo
// 16-bit WAV stays well under this.
const maxUtteranceBytes = 16 << 20

// buildMux assembles the HTTP surface: ops endpoints, the ask API, the voice
// endpoints in voice mode, and the MCP handler when enabled. Everything runs
// behind the request metrics middleware.
func (a *App) buildMux() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(a.healthCheckers()...).Register(mux)

	mux.HandleFunc("POST /v1/ask", a.handleAsk)
	if a.voices != nil {
		mux.HandleFunc("POST /v1/voice/sessions", a.handleVoiceOpen)
		mux.HandleFunc("POST /v1/voice/sessions/{id}/utterances", a.handleVoiceUtter)
		mux.HandleFunc("DELETE /v1/voice/sessions/{id}", a.handleVoiceEnd)
	}

	if a.mcp != nil {
		mux.Handle("/mcp", a.mcp.Handler())
	}

	return observe.Middleware(a.metrics)(mux)
}

// healthCheckers assembles the readiness checks for the configured
// subsystems.
func (a *App) healthCheckers() []health.Checker {
	checkers := []health.Checker{
		health.Datasets(a.lex, a.base, a.keywords),
	}
	if a.providers.LLM != nil {
		checkers = append(checkers, health.Breakers("llm", a.providers.LLM.BreakerStates))
	}
	if a.providers.STT != nil {
		checkers = append(checkers, health.Breakers("stt", a.providers.STT.BreakerStates))
	}
	if a.providers.TTS != nil {
		checkers = append(checkers, health.Breakers("tts", a.providers.TTS.BreakerStates))
	}
	if p, ok := a.store.(health.Pinger); ok {
		checkers = append(checkers, health.Store("history", p))
	}
	return checkers
}

// ─── Ask API ─────────────────────────────────────────────────────────────────

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer     string  `json:"answer"`
	Source     string  `json:"source"`
	Normalized string  `json:"normalized"`
	Related    bool    `json:"related"`
	Score      float64 `json:"score,omitempty"`
}

// handleAsk answers one text question through the full pipeline.
func (a *App) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question must not be empty")
		return
	}

	res, err := a.pipeline.Process(r.Context(), req.Question)
	if err != nil {
		slog.Error("ask endpoint: query failed", "err", err)
		writeError(w, http.StatusBadGateway, "the assistant could not answer; try again")
		return
	}
	writeJSON(w, http.StatusOK, askResponse{
		Answer:     res.Answer,
		Source:     string(res.Source),
		Normalized: res.Normalized,
		Related:    res.Decision.Related,
		Score:      res.Score,
	})
}

// ─── Voice API ───────────────────────────────────────────────────────────────

type voiceSessionResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
	Audio     []byte `json:"audio"`
}

type utteranceResponse struct {
	Heard  string `json:"heard"`
	Answer string `json:"answer"`
	Audio  []byte `json:"audio"`
	Done   bool   `json:"done"`
}

// handleVoiceOpen starts a conversation and returns its ID with the spoken
// greeting.
func (a *App) handleVoiceOpen(w http.ResponseWriter, r *http.Request) {
	id, ex, err := a.voices.Open(r.Context())
	if err != nil {
		if errors.Is(err, ErrTooManySessions) {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		slog.Error("voice endpoint: open failed", "err", err)
		writeError(w, http.StatusBadGateway, "could not start a voice session")
		return
	}
	writeJSON(w, http.StatusCreated, voiceSessionResponse{
		SessionID: id,
		Answer:    ex.Answer,
		Audio:     ex.Audio,
	})
}

// handleVoiceUtter answers one WAV utterance for an open conversation.
func (a *App) handleVoiceUtter(w http.ResponseWriter, r *http.Request) {
	wav, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUtteranceBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "utterance exceeds the size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	ex, err := a.voices.Utter(r.Context(), r.PathValue("id"), wav)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, session.ErrBadAudio):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("voice endpoint: utterance failed", "err", err)
		writeError(w, http.StatusBadGateway, "the assistant could not answer; try again")
		return
	}
	writeJSON(w, http.StatusOK, utteranceResponse{
		Heard:  ex.Heard,
		Answer: ex.Answer,
		Audio:  ex.Audio,
		Done:   ex.Done,
	})
}

// handleVoiceEnd closes a conversation early.
func (a *App) handleVoiceEnd(w http.ResponseWriter, r *http.Request) {
	if !a.voices.End(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, ErrSessionNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encoding failed", "err", err)
	}
}

// writeError writes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
