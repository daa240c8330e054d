package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/baristabuddy/baristabuddy/internal/observe"
	"github.com/baristabuddy/baristabuddy/internal/pipeline"
	"github.com/baristabuddy/baristabuddy/internal/session"
	"github.com/baristabuddy/baristabuddy/pkg/provider/stt"
	"github.com/baristabuddy/baristabuddy/pkg/provider/tts"
)

const (
	// DefaultMaxVoiceSessions caps concurrently open voice conversations.
	DefaultMaxVoiceSessions = 32

	// DefaultVoiceIdleTimeout ends conversations with no utterance for this
	// long. Swept lazily when new conversations open.
	DefaultVoiceIdleTimeout = 10 * time.Minute
)

// Voice conversation errors callers branch on.
var (
	// ErrSessionNotFound reports an unknown or already-ended conversation ID.
	ErrSessionNotFound = errors.New("app: voice session not found")

	// ErrTooManySessions reports that the conversation cap is reached.
	ErrTooManySessions = errors.New("app: too many voice sessions")
)

// VoiceSessionsConfig holds all dependencies for a [VoiceSessions].
type VoiceSessionsConfig struct {
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

	// Metrics, when set, is handed to each conversation.
	Metrics *observe.Metrics

	// MaxSessions caps concurrently open conversations. Non-positive selects
	// [DefaultMaxVoiceSessions].
	MaxSessions int

	// IdleTimeout ends conversations with no utterance for this long.
	// Non-positive selects [DefaultVoiceIdleTimeout].
	IdleTimeout time.Duration
}

// VoiceSessions manages the lifecycle of voice conversations served over
// HTTP. Each conversation wraps one [session.Voice] keyed by a random ID;
// idle conversations are swept when new ones open.
// All exported methods are safe for concurrent use.
type VoiceSessions struct {
	cfg VoiceSessionsConfig

	mu     sync.Mutex
	open   map[string]*voiceEntry
	closed bool
}

// voiceEntry pairs a conversation with its last activity time for idle
// sweeping.
type voiceEntry struct {
	voice    *session.Voice
	lastSeen time.Time
}

// NewVoiceSessions validates cfg and creates an empty manager.
func NewVoiceSessions(cfg VoiceSessionsConfig) (*VoiceSessions, error) {
	var errs []error
	if cfg.Pipeline == nil {
		errs = append(errs, errors.New("app: voice sessions: pipeline must not be nil"))
	}
	if cfg.STT == nil {
		errs = append(errs, errors.New("app: voice sessions: stt provider must not be nil"))
	}
	if cfg.TTS == nil {
		errs = append(errs, errors.New("app: voice sessions: tts provider must not be nil"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxVoiceSessions
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultVoiceIdleTimeout
	}
	return &VoiceSessions{
		cfg:  cfg,
		open: make(map[string]*voiceEntry),
	}, nil
}

// Open starts a new conversation and returns its ID with the spoken
// greeting. Returns [ErrTooManySessions] when the cap is still reached after
// sweeping idle conversations.
func (m *VoiceSessions) Open(ctx context.Context) (string, session.Exchange, error) {
	v, err := session.NewVoice(session.VoiceConfig{
		Pipeline: m.cfg.Pipeline,
		STT:      m.cfg.STT,
		TTS:      m.cfg.TTS,
		Voice:    m.cfg.Voice,
		Language: m.cfg.Language,
		Metrics:  m.cfg.Metrics,
	})
	if err != nil {
		return "", session.Exchange{}, err
	}

	id, err := newConversationID()
	if err != nil {
		return "", session.Exchange{}, fmt.Errorf("app: voice sessions: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", session.Exchange{}, errors.New("app: voice sessions: manager is closed")
	}
	m.sweepLocked()
	if len(m.open) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return "", session.Exchange{}, ErrTooManySessions
	}
	m.open[id] = &voiceEntry{voice: v, lastSeen: time.Now()}
	m.mu.Unlock()

	ex, err := v.Greet(ctx)
	if err != nil {
		m.remove(id)
		return "", session.Exchange{}, err
	}

	slog.Info("voice session opened", "id", id)
	return id, ex, nil
}

// Utter answers one utterance for the given conversation. The goodbye
// exchange (Done set) also ends the conversation.
func (m *VoiceSessions) Utter(ctx context.Context, id string, wav []byte) (session.Exchange, error) {
	m.mu.Lock()
	entry, ok := m.open[id]
	if ok {
		entry.lastSeen = time.Now()
	}
	m.mu.Unlock()
	if !ok {
		return session.Exchange{}, ErrSessionNotFound
	}

	// Provider round trips run outside the lock so conversations do not
	// serialise behind each other.
	ex, err := entry.voice.HandleUtterance(ctx, wav)
	if err != nil {
		return session.Exchange{}, err
	}
	if ex.Done {
		m.remove(id)
		slog.Info("voice session ended", "id", id)
	}
	return ex, nil
}

// End closes a conversation early. Reports whether it existed.
func (m *VoiceSessions) End(id string) bool {
	m.mu.Lock()
	entry, ok := m.open[id]
	delete(m.open, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	entry.voice.Close()
	slog.Info("voice session ended", "id", id)
	return true
}

// Len reports the number of open conversations.
func (m *VoiceSessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

// CloseAll ends every conversation and rejects later Opens. Used during app
// shutdown.
func (m *VoiceSessions) CloseAll() {
	m.mu.Lock()
	entries := m.open
	m.open = make(map[string]*voiceEntry)
	m.closed = true
	m.mu.Unlock()

	for _, e := range entries {
		e.voice.Close()
	}
	if len(entries) > 0 {
		slog.Info("voice sessions closed", "count", len(entries))
	}
}

// remove drops a conversation and releases its session resources.
func (m *VoiceSessions) remove(id string) {
	m.mu.Lock()
	entry, ok := m.open[id]
	delete(m.open, id)
	m.mu.Unlock()
	if ok {
		entry.voice.Close()
	}
}

// sweepLocked ends conversations idle past the timeout. Callers hold mu.
func (m *VoiceSessions) sweepLocked() {
	cutoff := time.Now().Add(-m.cfg.IdleTimeout)
	for id, entry := range m.open {
		if entry.lastSeen.Before(cutoff) {
			delete(m.open, id)
			entry.voice.Close()
			slog.Info("voice session expired", "id", id)
		}
	}
}

// newConversationID produces a random 16-byte hex identifier.
func newConversationID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
