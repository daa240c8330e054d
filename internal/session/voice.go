package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/baristabuddy/baristabuddy/internal/history"
	"github.com/baristabuddy/baristabuddy/internal/observe"
	"github.com/baristabuddy/baristabuddy/internal/pipeline"
	"github.com/baristabuddy/baristabuddy/pkg/audio"
	"github.com/baristabuddy/baristabuddy/pkg/provider/stt"
	"github.com/baristabuddy/baristabuddy/pkg/provider/tts"
)

// recognitionFormat is the format utterances are normalised to before
// transcription, the rate whisper models are trained on.
var recognitionFormat = audio.Format{SampleRate: 16000, Channels: 1}

// Exchange is the outcome of one voice turn.
type Exchange struct {
	// Heard is the transcript of the utterance. Empty when nothing was
	// recognised.
	Heard string

	// Answer is the reply text.
	Answer string

	// Audio is the spoken reply as a complete WAV file.
	Audio []byte

	// Done reports that the utterance was an exit word and the session is
	// over.
	Done bool
}

// VoiceConfig configures a [Voice] session.
type VoiceConfig struct {
	// Pipeline answers each turn. Must not be nil.
	Pipeline *pipeline.Pipeline

	// STT transcribes utterances. Must not be nil.
	STT stt.Provider

	// TTS speaks replies. Must not be nil.
	TTS tts.Provider

	// Voice is the profile replies are spoken with.
	Voice tts.VoiceProfile

	// Language is the recognition language hint. Empty uses the provider
	// default.
	Language string

	// TTSFormat describes the PCM the TTS provider returns. The zero value
	// means 16 kHz mono.
	TTSFormat audio.Format

	// Metrics, when set, records stage latencies and the live-session gauge.
	Metrics *observe.Metrics
}

// Voice converses one WAV utterance at a time: speech in, spoken answer out.
// Turn semantics match the console surface exactly; only the transport
// differs.
//
// One Voice runs one session; construct a new value per conversation. The
// session counts as live from the first call until the goodbye exchange or
// [Voice.Close], whichever comes first.
type Voice struct {
	pipeline  *pipeline.Pipeline
	stt       stt.Provider
	tts       tts.Provider
	voice     tts.VoiceProfile
	language  string
	ttsFormat audio.Format
	metrics   *observe.Metrics
	sessionID string

	mu      sync.Mutex
	started bool
	ended   bool
}

// NewVoice creates a voice session from cfg.
func NewVoice(cfg VoiceConfig) (*Voice, error) {
	var errs []error
	if cfg.Pipeline == nil {
		errs = append(errs, errors.New("session: pipeline must not be nil"))
	}
	if cfg.STT == nil {
		errs = append(errs, errors.New("session: stt provider must not be nil"))
	}
	if cfg.TTS == nil {
		errs = append(errs, errors.New("session: tts provider must not be nil"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	sid, err := newSessionID()
	if err != nil {
		return nil, fmt.Errorf("session: generate id: %w", err)
	}
	ttsFormat := cfg.TTSFormat
	if ttsFormat == (audio.Format{}) {
		ttsFormat = recognitionFormat
	}
	return &Voice{
		pipeline:  cfg.Pipeline,
		stt:       cfg.STT,
		tts:       cfg.TTS,
		voice:     cfg.Voice,
		language:  cfg.Language,
		ttsFormat: ttsFormat,
		metrics:   cfg.Metrics,
		sessionID: sid,
	}, nil
}

// Greet starts the session and returns the spoken greeting.
func (v *Voice) Greet(ctx context.Context) (Exchange, error) {
	v.begin(ctx)
	spoken, err := v.speak(ctx, Greeting)
	if err != nil {
		return Exchange{}, err
	}
	return Exchange{Answer: Greeting, Audio: spoken}, nil
}

// HandleUtterance answers one spoken turn. wav must be a 16-bit PCM WAV
// file; any sample rate and channel count the audio package can convert are
// accepted and normalised before recognition.
//
// A blank transcript is answered with the retry nudge; an exit word produces
// the goodbye exchange with Done set and ends the session. Decode, provider
// and pipeline failures are returned as errors with no audio; the caller
// decides whether to speak an apology.
func (v *Voice) HandleUtterance(ctx context.Context, wav []byte) (Exchange, error) {
	v.begin(ctx)
	ctx = history.WithSession(ctx, v.sessionID)

	pcm, format, err := audio.DecodeWAV(wav)
	if err != nil {
		return Exchange{}, fmt.Errorf("%w: %v", ErrBadAudio, err)
	}
	pcm, err = audio.Convert(pcm, format, recognitionFormat)
	if err != nil {
		return Exchange{}, fmt.Errorf("%w: %v", ErrBadAudio, err)
	}

	sttStart := time.Now()
	transcript, err := v.stt.Transcribe(ctx, pcm, stt.AudioConfig{
		SampleRate: recognitionFormat.SampleRate,
		Channels:   recognitionFormat.Channels,
		Language:   v.language,
	})
	if v.metrics != nil {
		v.metrics.STTDuration.Record(ctx, time.Since(sttStart).Seconds())
	}
	if err != nil {
		return Exchange{}, fmt.Errorf("session: transcribe: %w", err)
	}

	heard := strings.TrimSpace(transcript.Text)
	switch {
	case heard == "":
		return v.reply(ctx, "", Nudge, false)
	case isExitWord(heard):
		return v.reply(ctx, heard, Goodbye, true)
	}

	res, err := v.pipeline.Process(ctx, heard)
	if err != nil {
		return Exchange{}, fmt.Errorf("session: %w", err)
	}
	return v.reply(ctx, heard, res.Answer, false)
}

// Close ends the session early. Safe to call more than once and after the
// goodbye exchange.
func (v *Voice) Close() {
	v.end(context.Background())
}

// reply synthesises answer and assembles the exchange. The goodbye reply
// also ends the session.
func (v *Voice) reply(ctx context.Context, heard, answer string, done bool) (Exchange, error) {
	spoken, err := v.speak(ctx, answer)
	if err != nil {
		return Exchange{}, err
	}
	if done {
		v.end(ctx)
	}
	return Exchange{Heard: heard, Answer: answer, Audio: spoken, Done: done}, nil
}

// speak synthesises text and wraps the PCM in a WAV container.
func (v *Voice) speak(ctx context.Context, text string) ([]byte, error) {
	ttsStart := time.Now()
	pcm, err := v.tts.Synthesize(ctx, text, v.voice)
	if v.metrics != nil {
		v.metrics.TTSDuration.Record(ctx, time.Since(ttsStart).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("session: synthesize: %w", err)
	}
	return audio.EncodeWAV(pcm, v.ttsFormat.SampleRate, v.ttsFormat.Channels), nil
}

// begin marks the session live on its first activity.
func (v *Voice) begin(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.started {
		return
	}
	v.started = true
	if v.metrics != nil {
		v.metrics.ActiveSessions.Add(ctx, 1)
	}
}

// end marks a started session over, exactly once.
func (v *Voice) end(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.started || v.ended {
		return
	}
	v.ended = true
	if v.metrics != nil {
		v.metrics.ActiveSessions.Add(ctx, -1)
	}
}
