package speech

import (
	"context"
	"errors"
	"fmt"
)

// Synthesizer renders a meditation script into spoken audio (mp3 bytes).
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// VoiceCatalog lists the voices the synthesis provider can speak with.
type VoiceCatalog interface {
	Voices(ctx context.Context) ([]Voice, error)
}

type Voice struct {
	VoiceID     string `json:"voice_id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

var (
	ErrMissingAPIKey = errors.New("speech_api_key_missing")
	ErrAudioTooLarge = errors.New("audio_too_large")
)

// StatusError carries the upstream HTTP status so retry classification can
// distinguish quota exhaustion from other failures.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("speech synthesis status %d: %s", e.StatusCode, e.Body)
}
