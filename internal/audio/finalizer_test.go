package audio

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stillpoint/sona/internal/config"
	"go.uber.org/zap"
)

type fakeStore struct {
	putKey      string
	putData     []byte
	contentType string
	putErr      error
	signedURL   string
}

func (s *fakeStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	s.putKey = key
	s.putData = data
	s.contentType = contentType
	return s.putErr
}

func (s *fakeStore) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return s.signedURL, nil
}

type fakeProber struct {
	duration  float64
	err       error
	probedFor string
}

func (p *fakeProber) DurationSeconds(_ context.Context, path string) (float64, error) {
	p.probedFor = path
	return p.duration, p.err
}

func newTestFinalizer(store *fakeStore, prober *fakeProber) Finalizer {
	return NewFinalizer(FinalizerParam{
		Store:  store,
		Prober: prober,
		Config: config.Config{
			Storage: config.StorageConfig{KeyPrefix: "meditations", SignedURLExpiry: time.Hour},
		},
		Log: zap.NewNop(),
	})
}

func TestFinalizeUploadsAndMeasures(t *testing.T) {
	store := &fakeStore{signedURL: "https://storage.example/meditations/a.mp3"}
	prober := &fakeProber{duration: 181.5}

	result, err := newTestFinalizer(store, prober).Finalize(context.Background(), []byte("mp3-bytes"))
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if result.AudioURL != "https://storage.example/meditations/a.mp3" {
		t.Fatalf("unexpected url: %s", result.AudioURL)
	}
	if result.DurationSeconds != 181.5 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds)
	}
	if !strings.HasPrefix(store.putKey, "meditations/meditation_") || !strings.HasSuffix(store.putKey, ".mp3") {
		t.Fatalf("unexpected object key: %s", store.putKey)
	}
	if store.contentType != "audio/mpeg" {
		t.Fatalf("unexpected content type: %s", store.contentType)
	}
	if string(store.putData) != "mp3-bytes" {
		t.Fatal("expected raw audio uploaded")
	}
	if prober.probedFor == "" {
		t.Fatal("expected duration probe on temp file")
	}
}

func TestFinalizeStopsOnProbeFailure(t *testing.T) {
	store := &fakeStore{signedURL: "ignored"}
	prober := &fakeProber{err: errors.New("not an audio file")}

	if _, err := newTestFinalizer(store, prober).Finalize(context.Background(), []byte("junk")); err == nil {
		t.Fatal("expected probe error")
	}
	if store.putKey != "" {
		t.Fatal("expected no upload after probe failure")
	}
}

func TestFinalizePropagatesUploadFailure(t *testing.T) {
	store := &fakeStore{putErr: errors.New("bucket unavailable")}
	prober := &fakeProber{duration: 10}

	if _, err := newTestFinalizer(store, prober).Finalize(context.Background(), []byte("mp3")); err == nil {
		t.Fatal("expected upload error")
	}
}
