package coqui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/baristabuddy/baristabuddy/pkg/audio"
	"github.com/baristabuddy/baristabuddy/pkg/provider/tts"
)

// testWAV returns a WAV file whose PCM payload is pcmLen zero bytes at
// 16000 Hz mono.
func testWAV(pcmLen int) []byte {
	return audio.EncodeWAV(make([]byte, pcmLen), 16000, 1)
}

// drainAudio reads the audio channel until it closes and returns the total
// number of PCM bytes received.
func drainAudio(ch <-chan []byte) int {
	total := 0
	for chunk := range ch {
		total += len(chunk)
	}
	return total
}

// sendFragments writes the given fragments to the text channel and closes it.
func sendFragments(ch chan<- string, fragments ...string) {
	for _, f := range fragments {
		ch <- f
	}
	close(ch)
}

func mustNew(t *testing.T, serverURL string, opts ...Option) *Provider {
	t.Helper()
	p, err := New(serverURL, opts...)
	if err != nil {
		t.Fatalf("New(%q) returned error: %v", serverURL, err)
	}
	return p
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p := mustNew(t, "http://localhost:5002")
		if p.language != "en" {
			t.Errorf("default language = %q, want %q", p.language, "en")
		}
		if p.httpClient.Timeout != defaultTimeout {
			t.Errorf("default timeout = %v, want %v", p.httpClient.Timeout, defaultTimeout)
		}
	})

	t.Run("trims trailing slash", func(t *testing.T) {
		p := mustNew(t, "http://localhost:5002/")
		if p.serverURL != "http://localhost:5002" {
			t.Errorf("serverURL = %q, want trailing slash removed", p.serverURL)
		}
	})

	t.Run("empty URL", func(t *testing.T) {
		if _, err := New(""); err == nil {
			t.Error("New(\"\") should return an error")
		}
	})

	t.Run("with options", func(t *testing.T) {
		p := mustNew(t, "http://localhost:5002",
			WithLanguage("de"),
			WithTimeout(5*time.Second),
		)
		if p.language != "de" {
			t.Errorf("language = %q, want %q", p.language, "de")
		}
		if p.httpClient.Timeout != 5*time.Second {
			t.Errorf("timeout = %v, want %v", p.httpClient.Timeout, 5*time.Second)
		}
	})
}

func TestNew_DefaultAPIMode(t *testing.T) {
	p := mustNew(t, "http://localhost:5002")
	if p.apiMode != APIModeStandard {
		t.Errorf("default apiMode = %q, want %q", p.apiMode, APIModeStandard)
	}
}

func TestNew_WithAPIMode(t *testing.T) {
	p := mustNew(t, "http://localhost:8020", WithAPIMode(APIModeXTTS))
	if p.apiMode != APIModeXTTS {
		t.Errorf("apiMode = %q, want %q", p.apiMode, APIModeXTTS)
	}
}

func TestSynthesize_XTTS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ttsEndpoint {
			t.Errorf("request path = %q, want %q", r.URL.Path, ttsEndpoint)
		}
		var req ttsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if req.Text != "A cortado is equal parts espresso and steamed milk." {
			t.Errorf("request text = %q", req.Text)
		}
		if req.SpeakerWav != "barista.wav" {
			t.Errorf("request speaker_wav = %q, want %q", req.SpeakerWav, "barista.wav")
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(testWAV(100))
	}))
	defer server.Close()

	p := mustNew(t, server.URL, WithAPIMode(APIModeXTTS))
	pcm, err := p.Synthesize(context.Background(),
		"A cortado is equal parts espresso and steamed milk.",
		tts.VoiceProfile{ID: "barista.wav"})
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if len(pcm) != 100 {
		t.Errorf("got %d PCM bytes, want 100", len(pcm))
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	p := mustNew(t, "http://localhost:5002")
	if _, err := p.Synthesize(context.Background(), "   ", tts.VoiceProfile{ID: "v"}); err == nil {
		t.Error("Synthesize with blank text should return an error")
	}
}

func TestSynthesize_EmptyVoiceID_XTTS(t *testing.T) {
	p := mustNew(t, "http://localhost:8020", WithAPIMode(APIModeXTTS))
	if _, err := p.Synthesize(context.Background(), "hello", tts.VoiceProfile{}); err == nil {
		t.Error("Synthesize without voice ID should return an error in XTTS mode")
	}
}

func TestSynthesize_Resamples(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(testWAV(200)) // 100 samples at 16000 Hz
	}))
	defer server.Close()

	p := mustNew(t, server.URL, WithOutputSampleRate(8000))
	pcm, err := p.Synthesize(context.Background(), "Grind finer for a slower shot.", tts.VoiceProfile{})
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	// Halving the rate halves the sample count.
	if len(pcm) != 100 {
		t.Errorf("got %d PCM bytes after resampling, want 100", len(pcm))
	}
}

func TestSynthesizeStream_EmptyVoiceID_XTTS(t *testing.T) {
	p := mustNew(t, "http://localhost:8020", WithAPIMode(APIModeXTTS))
	textCh := make(chan string)
	if _, err := p.SynthesizeStream(context.Background(), textCh, tts.VoiceProfile{}); err == nil {
		t.Error("SynthesizeStream without voice ID should return an error in XTTS mode")
	}
}

func TestSynthesizeStream_EmptyVoiceID_Standard(t *testing.T) {
	// Standard-mode single-speaker models need no voice ID.
	p := mustNew(t, "http://localhost:5002")
	textCh := make(chan string)
	close(textCh)
	audioCh, err := p.SynthesizeStream(context.Background(), textCh, tts.VoiceProfile{})
	if err != nil {
		t.Fatalf("SynthesizeStream returned error: %v", err)
	}
	drainAudio(audioCh)
}

func TestSynthesizeStream_MockServer(t *testing.T) {
	sentences := []string{
		"Preheat the portafilter.",
		"Then pull the shot for thirty seconds.",
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ttsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if req.SpeakerWav != "barista.wav" {
			t.Errorf("request speaker_wav = %q, want %q", req.SpeakerWav, "barista.wav")
		}
		if req.Language != "en" {
			t.Errorf("request language = %q, want %q", req.Language, "en")
		}
		known := false
		for _, s := range sentences {
			if req.Text == s {
				known = true
			}
		}
		if !known {
			t.Errorf("unexpected sentence %q", req.Text)
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(testWAV(100))
	}))
	defer server.Close()

	p := mustNew(t, server.URL, WithAPIMode(APIModeXTTS))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	textCh := make(chan string)
	audioCh, err := p.SynthesizeStream(ctx, textCh, tts.VoiceProfile{ID: "barista.wav"})
	if err != nil {
		t.Fatalf("SynthesizeStream returned error: %v", err)
	}

	go sendFragments(textCh, sentences[0]+" ", sentences[1])

	if got := drainAudio(audioCh); got != 200 {
		t.Errorf("got %d PCM bytes, want 200 (two sentences of 100 each)", got)
	}
}

func TestSynthesizeStream_ContextCancellation(t *testing.T) {
	p := mustNew(t, "http://localhost:5002", WithAPIMode(APIModeXTTS))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	textCh := make(chan string)
	audioCh, err := p.SynthesizeStream(ctx, textCh, tts.VoiceProfile{ID: "v"})
	if err != nil {
		t.Fatalf("SynthesizeStream returned error: %v", err)
	}

	select {
	case _, open := <-audioCh:
		if open {
			t.Error("audio channel delivered data despite cancelled context")
		}
	case <-time.After(2 * time.Second):
		t.Error("audio channel did not close after context cancellation")
	}
}

func TestSynthesizeStream_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	p := mustNew(t, server.URL, WithAPIMode(APIModeXTTS))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	textCh := make(chan string)
	audioCh, err := p.SynthesizeStream(ctx, textCh, tts.VoiceProfile{ID: "v"})
	if err != nil {
		t.Fatalf("SynthesizeStream returned error: %v", err)
	}

	go sendFragments(textCh, "This sentence will fail.")

	if got := drainAudio(audioCh); got != 0 {
		t.Errorf("got %d PCM bytes from a failing server, want 0", got)
	}
}

func TestFindSentenceBoundary(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"no boundary", "how do I steam milk", -1},
		{"period at end", "Steam to sixty degrees.", 22},
		{"period mid-string", "First rinse. Then brew.", 11},
		{"exclamation", "Never reboil the water! It flattens the taste.", 22},
		{"question", "Is a ristretto shorter? Yes.", 22},
		{"decimal number not a boundary", "Use a ratio of 1:2.5 for espresso", -1},
		{"decimal then sentence end", "The dose is 18.5 grams.", 22},
		{"abbreviation is treated as boundary", "Dr. Smith takes it black", 2},
		{"empty string", "", -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := findSentenceBoundary(tc.input); got != tc.want {
				t.Errorf("findSentenceBoundary(%q) = %d, want %d", tc.input, got, tc.want)
			}
		})
	}
}

func TestSentenceAccumulation(t *testing.T) {
	var mu sync.Mutex
	var received []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ttsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		mu.Lock()
		received = append(received, req.Text)
		mu.Unlock()
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(testWAV(10))
	}))
	defer server.Close()

	p := mustNew(t, server.URL, WithAPIMode(APIModeXTTS))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	textCh := make(chan string)
	audioCh, err := p.SynthesizeStream(ctx, textCh, tts.VoiceProfile{ID: "v"})
	if err != nil {
		t.Fatalf("SynthesizeStream returned error: %v", err)
	}

	// Fragments arrive in LLM-sized pieces; sentences must be reassembled.
	go sendFragments(textCh,
		"A flat white",
		" uses less foam",
		" than a latte. Try one",
		" with a double shot!",
	)

	drainAudio(audioCh)

	want := map[string]bool{
		"A flat white uses less foam than a latte.": true,
		"Try one with a double shot!":               true,
	}
	mu.Lock()
	defer mu.Unlock()
	if len(received) != len(want) {
		t.Fatalf("server received %d sentences (%q), want %d", len(received), received, len(want))
	}
	// Requests are dispatched concurrently, so receipt order is not guaranteed.
	for _, s := range received {
		if !want[s] {
			t.Errorf("server received unexpected sentence %q", s)
		}
	}
}

func TestSynthesizeStream_StandardAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("request method = %q, want GET", r.Method)
		}
		if r.URL.Path != apiTTSEndpoint {
			t.Errorf("request path = %q, want %q", r.URL.Path, apiTTSEndpoint)
		}
		q := r.URL.Query()
		if q.Get("text") != "Tamp with even pressure." {
			t.Errorf("text param = %q", q.Get("text"))
		}
		if q.Get("speaker_id") != "p225" {
			t.Errorf("speaker_id param = %q, want %q", q.Get("speaker_id"), "p225")
		}
		if q.Get("language_id") != "en" {
			t.Errorf("language_id param = %q, want %q", q.Get("language_id"), "en")
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(testWAV(100))
	}))
	defer server.Close()

	p := mustNew(t, server.URL) // standard mode is the default

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	textCh := make(chan string)
	audioCh, err := p.SynthesizeStream(ctx, textCh, tts.VoiceProfile{ID: "p225"})
	if err != nil {
		t.Fatalf("SynthesizeStream returned error: %v", err)
	}

	go sendFragments(textCh, "Tamp with even pressure.")

	if got := drainAudio(audioCh); got != 100 {
		t.Errorf("got %d PCM bytes, want 100", got)
	}
}

func TestListVoices_XTTS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != studioSpeakersEndpoint {
			t.Errorf("request path = %q, want %q", r.URL.Path, studioSpeakersEndpoint)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Claribel Dervla":{},"Aaron Dreschner":{}}`))
	}))
	defer server.Close()

	p := mustNew(t, server.URL, WithAPIMode(APIModeXTTS))
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices returned error: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("got %d voices, want 2", len(voices))
	}
	// Output is sorted by name.
	if voices[0].Name != "Aaron Dreschner" || voices[1].Name != "Claribel Dervla" {
		t.Errorf("voices not sorted: got %q, %q", voices[0].Name, voices[1].Name)
	}
	for _, v := range voices {
		if v.Provider != "coqui" {
			t.Errorf("voice %q provider = %q, want %q", v.Name, v.Provider, "coqui")
		}
		if v.Metadata["type"] != "studio" {
			t.Errorf("voice %q metadata type = %q, want %q", v.Name, v.Metadata["type"], "studio")
		}
	}
}

func TestListVoices_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	p := mustNew(t, server.URL, WithAPIMode(APIModeXTTS))
	if _, err := p.ListVoices(context.Background()); err == nil {
		t.Error("ListVoices should return an error on HTTP 500")
	}
}

func TestListVoices_ContextCancelled(t *testing.T) {
	p := mustNew(t, "http://localhost:8020", WithAPIMode(APIModeXTTS))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.ListVoices(ctx); err == nil {
		t.Error("ListVoices should return an error when the context is cancelled")
	}
}

func TestListVoices_StandardAPI(t *testing.T) {
	t.Run("multi-speaker model", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != detailsEndpoint {
				t.Errorf("request path = %q, want %q", r.URL.Path, detailsEndpoint)
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(detailsResponse{
				ModelName: "tts_models/en/vctk/vits",
				Language:  "en",
				Speakers:  []string{"p260", "p225", "p240"},
			})
		}))
		defer server.Close()

		p := mustNew(t, server.URL)
		voices, err := p.ListVoices(context.Background())
		if err != nil {
			t.Fatalf("ListVoices returned error: %v", err)
		}
		if len(voices) != 3 {
			t.Fatalf("got %d voices, want 3", len(voices))
		}
		if voices[0].ID != "p225" || voices[1].ID != "p240" || voices[2].ID != "p260" {
			t.Errorf("voices not sorted: got %q, %q, %q", voices[0].ID, voices[1].ID, voices[2].ID)
		}
		if voices[0].Metadata["model_name"] != "tts_models/en/vctk/vits" {
			t.Errorf("metadata model_name = %q", voices[0].Metadata["model_name"])
		}
	})

	t.Run("single-speaker model", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(detailsResponse{
				ModelName: "tts_models/en/ljspeech/tacotron2-DDC",
				Language:  "en",
			})
		}))
		defer server.Close()

		p := mustNew(t, server.URL)
		voices, err := p.ListVoices(context.Background())
		if err != nil {
			t.Fatalf("ListVoices returned error: %v", err)
		}
		if len(voices) != 1 {
			t.Fatalf("got %d voices, want 1", len(voices))
		}
		if voices[0].ID != "tts_models/en/ljspeech/tacotron2-DDC" {
			t.Errorf("voice ID = %q, want the model name", voices[0].ID)
		}
		if voices[0].Metadata["type"] != "single-speaker" {
			t.Errorf("metadata type = %q, want %q", voices[0].Metadata["type"], "single-speaker")
		}
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		p := mustNew(t, server.URL)
		if _, err := p.ListVoices(context.Background()); err == nil {
			t.Error("ListVoices should return an error on HTTP 500")
		}
	})
}
