package audio

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/stillpoint/sona/internal/config"
	"github.com/stillpoint/sona/internal/media/ffprobe"
	"github.com/stillpoint/sona/internal/providers/objectstore"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Result carries the playback URL and measured length of finalized audio.
type Result struct {
	AudioURL        string
	DurationSeconds float64
}

// Finalizer measures synthesized audio and publishes it to object storage.
type Finalizer interface {
	Finalize(ctx context.Context, audio []byte) (Result, error)
}

// Prober reports the duration of an audio file on disk. Split out so tests
// can avoid shelling out to ffprobe.
type Prober interface {
	DurationSeconds(ctx context.Context, path string) (float64, error)
}

type ffprobeProber struct {
	binary string
}

func (p ffprobeProber) DurationSeconds(ctx context.Context, path string) (float64, error) {
	result, err := ffprobe.Inspect(ctx, p.binary, path)
	if err != nil {
		return 0, err
	}
	return result.DurationSeconds(), nil
}

func NewProber(cfg config.Config) Prober {
	return ffprobeProber{binary: cfg.FFProbeBin}
}

type finalizer struct {
	store  objectstore.Store
	prober Prober
	log    *zap.Logger

	keyPrefix string
	expiry    time.Duration
}

type FinalizerParam struct {
	fx.In

	Store  objectstore.Store
	Prober Prober
	Config config.Config
	Log    *zap.Logger
}

func NewFinalizer(p FinalizerParam) Finalizer {
	return &finalizer{
		store:     p.Store,
		prober:    p.Prober,
		log:       p.Log.Named("audio.finalizer"),
		keyPrefix: p.Config.Storage.KeyPrefix,
		expiry:    p.Config.Storage.SignedURLExpiry,
	}
}

func (f *finalizer) Finalize(ctx context.Context, audio []byte) (Result, error) {
	filename := fmt.Sprintf("meditation_%s.mp3", uuid.NewString())

	tmp, err := os.CreateTemp("", "sona_audio_*.mp3")
	if err != nil {
		return Result{}, fmt.Errorf("audio temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if removeErr := os.Remove(tmpPath); removeErr != nil {
			f.log.Warn("temp audio cleanup failed", zap.String("path", tmpPath), zap.Error(removeErr))
		}
	}()

	if _, err := tmp.Write(audio); err != nil {
		_ = tmp.Close()
		return Result{}, fmt.Errorf("audio temp write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Result{}, fmt.Errorf("audio temp close: %w", err)
	}

	duration, err := f.prober.DurationSeconds(ctx, tmpPath)
	if err != nil {
		return Result{}, fmt.Errorf("audio probe: %w", err)
	}

	key := f.keyPrefix + "/" + filename
	if err := f.store.Put(ctx, key, audio, "audio/mpeg"); err != nil {
		return Result{}, err
	}

	url, err := f.store.SignedURL(ctx, key, f.expiry)
	if err != nil {
		return Result{}, err
	}

	f.log.Info("audio finalized",
		zap.String("key", key),
		zap.Float64("duration_seconds", duration),
		zap.Int("bytes", len(audio)),
	)
	return Result{AudioURL: url, DurationSeconds: duration}, nil
}

var Module = fx.Module("audio",
	fx.Provide(
		NewProber,
		NewFinalizer,
	),
)
