package script

import (
	"context"
	"errors"
)

// Generator produces a spoken meditation script for a feeling and session
// length. The returned text carries inline [pause Xs] markers that downstream
// synthesis renders as silence.
type Generator interface {
	GenerateScript(ctx context.Context, feeling string, durationMinutes int) (string, error)
}

var (
	ErrEmptyCompletion = errors.New("empty_completion")
	ErrMissingAPIKey   = errors.New("script_api_key_missing")
)
