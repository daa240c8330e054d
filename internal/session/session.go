// Package session runs conversations against the answer pipeline.
//
// Two surfaces share identical turn semantics. [Console] is a line-oriented
// REPL over an io.Reader/io.Writer pair; [Voice] takes one WAV utterance per
// call and returns the spoken reply. In both, blank input is answered with a
// retry nudge without reaching the pipeline, an exit word ends the session
// with the goodbye message, and every other line runs the pipeline exactly
// once.
//
// A session is identified by a random ID that is attached to the context for
// query history grouping. Construct a new Console or Voice per conversation.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrBadAudio reports an utterance that could not be decoded or converted.
// Callers can treat it as a caller mistake rather than an assistant failure.
var ErrBadAudio = errors.New("session: bad utterance audio")

// Canonical interaction strings. The console and voice surfaces answer with
// one voice, so transcripts can rely on these exact phrases.
const (
	// Greeting opens every session.
	Greeting = "Hello! I'm Barista Buddy. How can I help you?"

	// Prompt precedes each console input line.
	Prompt = "You: "

	// ReplyPrefix precedes everything the assistant says on the console.
	ReplyPrefix = "Barista Buddy: "

	// Nudge is the reply to blank input.
	Nudge = "I didn't catch that. Please say it again."

	// Goodbye closes a session ended by an exit word or end of input.
	Goodbye = "Goodbye! Happy brewing!"

	// Apology is the console reply when the pipeline fails; the session
	// continues afterwards.
	Apology = "Sorry, something went wrong on my end. Please try again."
)

// exitWords end the session when one of them makes up the entire input.
var exitWords = map[string]struct{}{
	"exit":    {},
	"quit":    {},
	"goodbye": {},
}

// isExitWord reports whether line, ignoring case and surrounding whitespace,
// is one of the session-ending words.
func isExitWord(line string) bool {
	_, ok := exitWords[strings.ToLower(strings.TrimSpace(line))]
	return ok
}

// newSessionID produces a random 16-byte hex identifier for history
// grouping.
func newSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
