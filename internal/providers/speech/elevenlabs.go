package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stillpoint/sona/internal/config"
	"github.com/stillpoint/sona/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type elevenLabsClient struct {
	http    *http.Client
	log     *zap.Logger
	metrics *metrics.Metrics

	baseURL  string
	apiKey   string
	voiceID  string
	modelID  string
	maxBytes int64
	retry    RetryPolicy
}

type ElevenLabsParam struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

func NewElevenLabs(p ElevenLabsParam) (Synthesizer, VoiceCatalog, error) {
	cfg := p.Config.ElevenLabs
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, nil, ErrMissingAPIKey
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	client := &elevenLabsClient{
		http:     &http.Client{Timeout: timeout},
		log:      p.Log.Named("speech.elevenlabs"),
		metrics:  p.Metrics,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		voiceID:  cfg.VoiceID,
		modelID:  cfg.ModelID,
		maxBytes: cfg.MaxAudioBytes,
		retry: RetryPolicy{
			MaxAttempts: cfg.RetryAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
		},
	}
	return client, client, nil
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

func (c *elevenLabsClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var audio []byte
	err := c.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			c.log.Warn("retrying speech synthesis", zap.Int("attempt", attempt))
			c.metrics.RecordSynthesisRetry(ctx)
		}
		data, err := c.synthesizeOnce(ctx, text)
		if err != nil {
			return err
		}
		audio = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return audio, nil
}

func (c *elevenLabsClient) synthesizeOnce(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(synthesisRequest{
		Text:    text,
		ModelID: c.modelID,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, c.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(detail)}
	}

	// Read one byte past the ceiling so an oversized stream is detected
	// without buffering it whole.
	audio, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("speech synthesis read: %w", err)
	}
	if int64(len(audio)) > c.maxBytes {
		return nil, ErrAudioTooLarge
	}
	return audio, nil
}

type voicesResponse struct {
	Voices []Voice `json:"voices"`
}

// Voices lists the provider's available voices.
func (c *elevenLabsClient) Voices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voice listing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(detail)}
	}

	var parsed voicesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("voice listing decode: %w", err)
	}
	return parsed.Voices, nil
}
