// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// streaming WebSocket API. It implements the stt.Provider interface by
// streaming one complete utterance per call and collecting the finalised
// results.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/baristabuddy/baristabuddy/pkg/provider/stt"
)

const (
	deepgramEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultSampleRate = 16000

	// audioFrameSize is how many PCM bytes go into each binary frame.
	audioFrameSize = 8192
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithSampleRate sets the audio sample rate in Hz for the provider-level default.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey     string
	model      string
	language   string
	sampleRate int
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe sends one utterance of raw PCM over a streaming connection and
// returns the joined final transcript. Deepgram has no batch endpoint for raw
// PCM, so the provider opens a short-lived stream per call: it pushes the
// audio, asks the server to flush, and reads results until the closing
// metadata message arrives.
func (p *Provider) Transcribe(ctx context.Context, pcm []byte, cfg stt.AudioConfig) (stt.Transcript, error) {
	if len(pcm) == 0 {
		return stt.Transcript{}, errors.New("deepgram: audio must not be empty")
	}

	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "utterance finished")

	for off := 0; off < len(pcm); off += audioFrameSize {
		end := min(off+audioFrameSize, len(pcm))
		if err := conn.Write(ctx, websocket.MessageBinary, pcm[off:end]); err != nil {
			return stt.Transcript{}, fmt.Errorf("deepgram: send audio: %w", err)
		}
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: close stream: %w", err)
	}

	var u utterance
	for !u.done {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return stt.Transcript{}, fmt.Errorf("deepgram: %w", ctx.Err())
			}
			// The server may close the socket right after its last result;
			// anything collected up to that point still counts.
			if len(u.segments) > 0 {
				break
			}
			return stt.Transcript{}, fmt.Errorf("deepgram: read results: %w", err)
		}
		u.add(parseMessage(msg))
	}

	return u.transcript(pcmDuration(len(pcm), cfg, p.sampleRate)), nil
}

// buildURL constructs the Deepgram streaming endpoint URL for the given audio
// format.
func (p *Provider) buildURL(cfg stt.AudioConfig) (string, error) {
	u, err := url.Parse(deepgramEndpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	// Raw PCM needs the encoding spelled out. Interim results are noise for
	// a batch caller.
	q.Set("encoding", "linear16")
	q.Set("interim_results", "false")
	q.Set("sample_rate", strconv.Itoa(sr))
	if cfg.Channels > 0 {
		q.Set("channels", strconv.Itoa(cfg.Channels))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- result stream ----

// messageKind classifies a decoded server message.
type messageKind int

const (
	ignoredMessage messageKind = iota
	segmentMessage
	metadataMessage
)

// message is one decoded message from the result stream.
type message struct {
	kind       messageKind
	text       string
	confidence float64
	duration   time.Duration
}

// deepgramMessage is the JSON structure Deepgram sends over the socket. The
// Results fields and the Metadata duration share one struct since Type
// discriminates them.
type deepgramMessage struct {
	Type     string  `json:"type"`
	IsFinal  bool    `json:"is_final"`
	Duration float64 `json:"duration"`
	Channel  struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseMessage decodes one server message. Interim results, unknown message
// types, and malformed JSON all come back as ignored.
func parseMessage(data []byte) message {
	var resp deepgramMessage
	if err := json.Unmarshal(data, &resp); err != nil {
		return message{}
	}
	switch resp.Type {
	case "Results":
		if !resp.IsFinal || len(resp.Channel.Alternatives) == 0 {
			return message{}
		}
		alt := resp.Channel.Alternatives[0]
		return message{kind: segmentMessage, text: alt.Transcript, confidence: alt.Confidence}
	case "Metadata":
		return message{kind: metadataMessage, duration: time.Duration(resp.Duration * float64(time.Second))}
	}
	return message{}
}

// utterance accumulates the finalised results of one streamed utterance.
type utterance struct {
	segments []string
	confSum  float64
	duration time.Duration
	done     bool
}

// add folds one decoded server message into the utterance. The metadata
// message marks the end of the stream.
func (u *utterance) add(m message) {
	switch m.kind {
	case segmentMessage:
		if m.text != "" {
			u.segments = append(u.segments, m.text)
			u.confSum += m.confidence
		}
	case metadataMessage:
		u.duration = m.duration
		u.done = true
	}
}

// transcript joins the collected segments into one result. fallback supplies
// the duration when the server metadata carried none.
func (u *utterance) transcript(fallback time.Duration) stt.Transcript {
	t := stt.Transcript{
		Text:     strings.Join(u.segments, " "),
		Duration: u.duration,
	}
	if len(u.segments) > 0 {
		t.Confidence = u.confSum / float64(len(u.segments))
	}
	if t.Duration == 0 {
		t.Duration = fallback
	}
	return t
}

// pcmDuration derives the utterance length from the audio size for providers
// that do not report one.
func pcmDuration(n int, cfg stt.AudioConfig, defaultRate int) time.Duration {
	rate := cfg.SampleRate
	if rate == 0 {
		rate = defaultRate
	}
	channels := cfg.Channels
	if channels == 0 {
		channels = 1
	}
	bytesPerSecond := rate * channels * 2
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(bytesPerSecond) * float64(time.Second))
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
