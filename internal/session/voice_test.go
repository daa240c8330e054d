package session

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/baristabuddy/baristabuddy/pkg/audio"
	"github.com/baristabuddy/baristabuddy/pkg/provider/stt"
	sttmock "github.com/baristabuddy/baristabuddy/pkg/provider/stt/mock"
	"github.com/baristabuddy/baristabuddy/pkg/provider/tts"
	ttsmock "github.com/baristabuddy/baristabuddy/pkg/provider/tts/mock"
)

// utteranceWAV returns a WAV file carrying n frames of silence in the given
// format.
func utteranceWAV(n int, f audio.Format) []byte {
	pcm := make([]byte, n*f.Channels*2)
	return audio.EncodeWAV(pcm, f.SampleRate, f.Channels)
}

// newTestVoice wires a voice session over the default datasets and the given
// provider mocks.
func newTestVoice(t *testing.T, sttp stt.Provider, ttsp tts.Provider) *Voice {
	t.Helper()

	v, err := NewVoice(VoiceConfig{
		Pipeline: newTestPipeline(t, &scriptedFallback{reply: "unused"}),
		STT:      sttp,
		TTS:      ttsp,
		Voice:    tts.VoiceProfile{ID: "barista-warm"},
		Language: "en-US",
	})
	if err != nil {
		t.Fatalf("NewVoice: %v", err)
	}
	return v
}

func TestNewVoice_Validation(t *testing.T) {
	_, err := NewVoice(VoiceConfig{})
	if err == nil {
		t.Fatal("expected error for zero config")
	}
	for _, want := range []string{"pipeline", "stt provider", "tts provider"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestVoice_Greet(t *testing.T) {
	ttsp := &ttsmock.Provider{Audio: []byte{0x10, 0x20, 0x30, 0x40}}
	v := newTestVoice(t, &sttmock.Provider{}, ttsp)

	ex, err := v.Greet(context.Background())
	if err != nil {
		t.Fatalf("Greet: %v", err)
	}
	if ex.Answer != Greeting {
		t.Errorf("Answer = %q, want %q", ex.Answer, Greeting)
	}
	if ex.Heard != "" {
		t.Errorf("Heard = %q, want empty", ex.Heard)
	}
	if ex.Done {
		t.Error("Done = true, want false")
	}

	pcm, format, err := audio.DecodeWAV(ex.Audio)
	if err != nil {
		t.Fatalf("greeting audio is not a valid WAV: %v", err)
	}
	if !bytes.Equal(pcm, ttsp.Audio) {
		t.Errorf("greeting PCM = %v, want %v", pcm, ttsp.Audio)
	}
	if format != (audio.Format{SampleRate: 16000, Channels: 1}) {
		t.Errorf("greeting format = %+v, want 16 kHz mono", format)
	}
	if len(ttsp.SynthesizeCalls) != 1 || ttsp.SynthesizeCalls[0].Text != Greeting {
		t.Errorf("synthesizer calls = %+v, want one call with the greeting", ttsp.SynthesizeCalls)
	}
}

func TestVoice_HandleUtterance_AnswersKnowledgeQuestion(t *testing.T) {
	sttp := &sttmock.Provider{
		Results: []stt.Transcript{{Text: "how do i make espresso", Confidence: 0.93}},
	}
	ttsp := &ttsmock.Provider{Audio: []byte{0x01, 0x02, 0x03, 0x04}}
	v := newTestVoice(t, sttp, ttsp)

	in := utteranceWAV(1600, audio.Format{SampleRate: 16000, Channels: 1})
	ex, err := v.HandleUtterance(context.Background(), in)
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if ex.Heard != "how do i make espresso" {
		t.Errorf("Heard = %q, want the transcript", ex.Heard)
	}
	if want := defaultAnswer(t, "how do i make espresso"); ex.Answer != want {
		t.Errorf("Answer = %q, want %q", ex.Answer, want)
	}
	if ex.Done {
		t.Error("Done = true, want false")
	}

	pcm, _, err := audio.DecodeWAV(ex.Audio)
	if err != nil {
		t.Fatalf("reply audio is not a valid WAV: %v", err)
	}
	if !bytes.Equal(pcm, ttsp.Audio) {
		t.Errorf("reply PCM = %v, want the synthesized audio", pcm)
	}
	if len(ttsp.SynthesizeCalls) != 1 || ttsp.SynthesizeCalls[0].Text != ex.Answer {
		t.Errorf("synthesizer calls = %+v, want one call with the answer", ttsp.SynthesizeCalls)
	}
}

func TestVoice_HandleUtterance_NormalisesAudioForRecognition(t *testing.T) {
	sttp := &sttmock.Provider{
		Results: []stt.Transcript{{Text: "cappuccino recipe"}},
	}
	v := newTestVoice(t, sttp, &ttsmock.Provider{Audio: []byte{0x01, 0x02}})

	// 441 stereo frames at 44.1 kHz resample to exactly 160 mono samples at
	// the 16 kHz recognition rate.
	in := utteranceWAV(441, audio.Format{SampleRate: 44100, Channels: 2})
	if _, err := v.HandleUtterance(context.Background(), in); err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if len(sttp.TranscribeCalls) != 1 {
		t.Fatalf("recognizer called %d times, want 1", len(sttp.TranscribeCalls))
	}
	call := sttp.TranscribeCalls[0]
	if len(call.PCM) != 160*2 {
		t.Errorf("recognizer got %d bytes, want 320", len(call.PCM))
	}
	if call.Cfg.SampleRate != 16000 || call.Cfg.Channels != 1 {
		t.Errorf("recognizer config = %+v, want 16 kHz mono", call.Cfg)
	}
	if call.Cfg.Language != "en-US" {
		t.Errorf("recognizer language = %q, want en-US", call.Cfg.Language)
	}
}

func TestVoice_HandleUtterance_BlankTranscriptNudges(t *testing.T) {
	sttp := &sttmock.Provider{
		Results: []stt.Transcript{{Text: "   "}},
	}
	ttsp := &ttsmock.Provider{Audio: []byte{0x05, 0x06}}
	v := newTestVoice(t, sttp, ttsp)

	in := utteranceWAV(320, audio.Format{SampleRate: 16000, Channels: 1})
	ex, err := v.HandleUtterance(context.Background(), in)
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if ex.Heard != "" {
		t.Errorf("Heard = %q, want empty", ex.Heard)
	}
	if ex.Answer != Nudge {
		t.Errorf("Answer = %q, want the nudge", ex.Answer)
	}
	if ex.Done {
		t.Error("Done = true, want false")
	}
	if len(ex.Audio) == 0 {
		t.Error("nudge was not spoken")
	}
}

func TestVoice_HandleUtterance_ExitWordEndsSession(t *testing.T) {
	sttp := &sttmock.Provider{
		Results: []stt.Transcript{{Text: "Goodbye"}},
	}
	ttsp := &ttsmock.Provider{Audio: []byte{0x07, 0x08}}
	v := newTestVoice(t, sttp, ttsp)

	in := utteranceWAV(320, audio.Format{SampleRate: 16000, Channels: 1})
	ex, err := v.HandleUtterance(context.Background(), in)
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if !ex.Done {
		t.Error("Done = false, want true")
	}
	if ex.Answer != Goodbye {
		t.Errorf("Answer = %q, want the goodbye message", ex.Answer)
	}
	if len(ttsp.SynthesizeCalls) != 1 || ttsp.SynthesizeCalls[0].Text != Goodbye {
		t.Errorf("synthesizer calls = %+v, want one call with the goodbye", ttsp.SynthesizeCalls)
	}
}

func TestVoice_HandleUtterance_RejectsInvalidAudio(t *testing.T) {
	sttp := &sttmock.Provider{}
	v := newTestVoice(t, sttp, &ttsmock.Provider{})

	_, err := v.HandleUtterance(context.Background(), []byte("not a wav file"))
	if !errors.Is(err, ErrBadAudio) {
		t.Fatalf("error = %v, want ErrBadAudio", err)
	}
	if len(sttp.TranscribeCalls) != 0 {
		t.Errorf("recognizer called %d times, want 0", len(sttp.TranscribeCalls))
	}
}

func TestVoice_HandleUtterance_TranscriberError(t *testing.T) {
	sttErr := errors.New("recognizer down")
	v := newTestVoice(t, &sttmock.Provider{Err: sttErr}, &ttsmock.Provider{})

	in := utteranceWAV(320, audio.Format{SampleRate: 16000, Channels: 1})
	_, err := v.HandleUtterance(context.Background(), in)
	if !errors.Is(err, sttErr) {
		t.Fatalf("HandleUtterance error = %v, want wrapped %v", err, sttErr)
	}
}

func TestVoice_HandleUtterance_SynthesiserError(t *testing.T) {
	sttp := &sttmock.Provider{
		Results: []stt.Transcript{{Text: "how do i make espresso"}},
	}
	ttsErr := errors.New("voice down")
	v := newTestVoice(t, sttp, &ttsmock.Provider{Err: ttsErr})

	in := utteranceWAV(320, audio.Format{SampleRate: 16000, Channels: 1})
	_, err := v.HandleUtterance(context.Background(), in)
	if !errors.Is(err, ttsErr) {
		t.Fatalf("HandleUtterance error = %v, want wrapped %v", err, ttsErr)
	}
}
