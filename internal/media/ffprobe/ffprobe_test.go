package ffprobe

import "testing"

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "audio"},
			{CodecType: "video"},
		},
		Format: Format{
			Duration:   "183.27",
			FormatName: "mp3",
		},
	}
	if result.AudioStreamCount() != 1 {
		t.Fatalf("expected 1 audio stream, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 183.27 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
}

func TestDurationSecondsHandlesInvalidValues(t *testing.T) {
	cases := map[string]string{
		"empty":    "",
		"garbage":  "bad",
		"negative": "-3",
	}
	for name, value := range cases {
		result := Result{Format: Format{Duration: value}}
		if got := result.DurationSeconds(); got != 0 {
			t.Fatalf("%s: expected 0, got %v", name, got)
		}
	}
}
