package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/baristabuddy/baristabuddy/internal/app"
	"github.com/baristabuddy/baristabuddy/internal/config"
	"github.com/baristabuddy/baristabuddy/internal/pipeline"
	"github.com/baristabuddy/baristabuddy/internal/resilience"
	"github.com/baristabuddy/baristabuddy/internal/session"
	"github.com/baristabuddy/baristabuddy/pkg/audio"
	"github.com/baristabuddy/baristabuddy/pkg/provider/stt"
	sttmock "github.com/baristabuddy/baristabuddy/pkg/provider/stt/mock"
	ttsmock "github.com/baristabuddy/baristabuddy/pkg/provider/tts/mock"
)

// testConfig returns a minimal console-mode config over the embedded
// datasets.
func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{LogLevel: config.LogInfo},
		Session: config.SessionConfig{Mode: config.SessionConsole},
	}
}

// speechProviders returns provider chains around STT/TTS mocks. transcripts
// is the sequence of recognition results; the last repeats.
func speechProviders(transcripts ...string) *app.Providers {
	results := make([]stt.Transcript, len(transcripts))
	for i, text := range transcripts {
		results[i] = stt.Transcript{Text: text}
	}
	sttp := &sttmock.Provider{Results: results}
	ttsp := &ttsmock.Provider{Audio: make([]byte, 3200)}
	return &app.Providers{
		STT: resilience.NewSTTFallback(sttp, "mock", resilience.FallbackConfig{}),
		TTS: resilience.NewTTSFallback(ttsp, "mock", resilience.FallbackConfig{}),
	}
}

func TestNew_EmbeddedDefaults(t *testing.T) {
	t.Parallel()

	application, err := app.New(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if application == nil {
		t.Fatal("New() returned nil app")
	}
	if application.Handler() != nil {
		t.Error("Handler() should be nil without a listen address")
	}
}

func TestNew_MissingDatasetFile(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Datasets.Knowledge = filepath.Join(t.TempDir(), "missing.json")

	if _, err := app.New(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for missing dataset file, got nil")
	}
}

func TestNew_VoiceModeWithoutProviders(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Session.Mode = config.SessionVoice

	if _, err := app.New(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for voice mode without STT/TTS, got nil")
	}
}

func TestRun_ConsoleConversation(t *testing.T) {
	t.Parallel()

	in := strings.NewReader("how do i make espresso\nexit\n")
	var out bytes.Buffer

	application, err := app.New(context.Background(), testConfig(), nil,
		app.WithConsoleIO(in, &out))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := application.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	output := out.String()
	if !strings.Contains(output, session.Greeting) {
		t.Errorf("output missing greeting:\n%s", output)
	}
	if !strings.Contains(output, "crema") {
		t.Errorf("output missing the espresso answer:\n%s", output)
	}
	if !strings.Contains(output, session.Goodbye) {
		t.Errorf("output missing goodbye:\n%s", output)
	}
}

func TestRun_CancelReturnsPromptly(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Session.Mode = config.SessionHeadless
	cfg.Server.ListenAddr = "127.0.0.1:0"

	application, err := app.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run(ctx)
	}()

	// Give Run a moment to start the server.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return within 5s after context cancellation")
	}
}

func TestHandler_Ask(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Session.Mode = config.SessionHeadless
	cfg.Server.ListenAddr = "127.0.0.1:0"

	application, err := app.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	h := application.Handler()
	if h == nil {
		t.Fatal("Handler() returned nil with a listen address configured")
	}

	t.Run("knowledge answer", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/ask",
			strings.NewReader(`{"question": "how do i make espresso"}`))
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Answer  string `json:"answer"`
			Source  string `json:"source"`
			Related bool   `json:"related"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Source != string(pipeline.SourceKnowledge) {
			t.Errorf("source = %q, want %q", resp.Source, pipeline.SourceKnowledge)
		}
		if !resp.Related {
			t.Error("related = false, want true")
		}
		if !strings.Contains(resp.Answer, "crema") {
			t.Errorf("answer = %q, want the espresso answer", resp.Answer)
		}
	})

	t.Run("off topic refused", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/ask",
			strings.NewReader(`{"question": "what is the weather today"}`))
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var resp struct {
			Answer string `json:"answer"`
			Source string `json:"source"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Source != string(pipeline.SourceRefused) {
			t.Errorf("source = %q, want %q", resp.Source, pipeline.SourceRefused)
		}
		if resp.Answer != pipeline.RefusalMessage {
			t.Errorf("answer = %q, want the refusal message", resp.Answer)
		}
	})

	t.Run("empty question rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/ask",
			strings.NewReader(`{"question": "   "}`))
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/ask",
			strings.NewReader("not json"))
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandler_HealthAndMetrics(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Session.Mode = config.SessionHeadless
	cfg.Server.ListenAddr = "127.0.0.1:0"

	application, err := app.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	h := application.Handler()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200; body: %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestHandler_VoiceFlow(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Session.Mode = config.SessionVoice
	cfg.Session.Voice = config.VoiceConfig{Provider: "mock", VoiceID: "barista-warm"}

	providers := speechProviders("how do i make espresso", "goodbye")
	application, err := app.New(context.Background(), cfg, providers)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	h := application.Handler()

	// Open a conversation.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/voice/sessions", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("open status = %d, want 201; body: %s", rec.Code, rec.Body.String())
	}
	var opened struct {
		SessionID string `json:"session_id"`
		Answer    string `json:"answer"`
		Audio     []byte `json:"audio"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &opened); err != nil {
		t.Fatalf("decode open response: %v", err)
	}
	if opened.SessionID == "" {
		t.Fatal("open response has no session ID")
	}
	if opened.Answer != session.Greeting {
		t.Errorf("greeting = %q, want %q", opened.Answer, session.Greeting)
	}
	if len(opened.Audio) == 0 {
		t.Error("greeting audio is empty")
	}

	utterPath := "/v1/voice/sessions/" + opened.SessionID + "/utterances"
	wav := audio.EncodeWAV(make([]byte, 3200), 16000, 1)

	// First utterance: a knowledge question.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, utterPath, bytes.NewReader(wav)))
	if rec.Code != http.StatusOK {
		t.Fatalf("utterance status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var answered struct {
		Heard  string `json:"heard"`
		Answer string `json:"answer"`
		Done   bool   `json:"done"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &answered); err != nil {
		t.Fatalf("decode utterance response: %v", err)
	}
	if answered.Heard != "how do i make espresso" {
		t.Errorf("heard = %q, want the transcript", answered.Heard)
	}
	if !strings.Contains(answered.Answer, "crema") {
		t.Errorf("answer = %q, want the espresso answer", answered.Answer)
	}
	if answered.Done {
		t.Error("done = true for a knowledge question")
	}

	// Bad audio is a caller error.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, utterPath, strings.NewReader("not a wav")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad audio status = %d, want 400", rec.Code)
	}

	// Second utterance: the exit word ends the conversation.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, utterPath, bytes.NewReader(wav)))
	if rec.Code != http.StatusOK {
		t.Fatalf("goodbye status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var goodbye struct {
		Answer string `json:"answer"`
		Done   bool   `json:"done"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &goodbye); err != nil {
		t.Fatalf("decode goodbye response: %v", err)
	}
	if !goodbye.Done {
		t.Error("done = false for the exit word")
	}
	if goodbye.Answer != session.Goodbye {
		t.Errorf("goodbye answer = %q, want %q", goodbye.Answer, session.Goodbye)
	}

	// The conversation is gone afterwards.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, utterPath, bytes.NewReader(wav)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("post-goodbye status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/voice/sessions/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete unknown status = %d, want 404", rec.Code)
	}
}

func TestApp_ShutdownIsIdempotent(t *testing.T) {
	t.Parallel()

	application, err := app.New(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown() error: %v", err)
	}
}
