package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.OCR.Retries != 3 {
		t.Errorf("OCR.Retries = %d, want 3", cfg.OCR.Retries)
	}
	if cfg.OCR.TimeoutSeconds != 120 {
		t.Errorf("OCR.TimeoutSeconds = %d, want 120", cfg.OCR.TimeoutSeconds)
	}
	if cfg.Pipeline.Workers != 2 {
		t.Errorf("Pipeline.Workers = %d, want 2", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.QueueSize != 8 {
		t.Errorf("Pipeline.QueueSize = %d, want 8", cfg.Pipeline.QueueSize)
	}
	if cfg.Pipeline.PagesPerChapter != 20 {
		t.Errorf("Pipeline.PagesPerChapter = %d, want 20", cfg.Pipeline.PagesPerChapter)
	}
	if cfg.Events.RingBufferSize != 200 {
		t.Errorf("Events.RingBufferSize = %d, want 200", cfg.Events.RingBufferSize)
	}
	if cfg.OCR.DefaultPrompt == "" {
		t.Error("OCR.DefaultPrompt is empty")
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := DefaultConfig()

	if got := cfg.OCRTimeout(); got != 120*time.Second {
		t.Errorf("OCRTimeout() = %v, want 120s", got)
	}
	if got := cfg.JobTTL(); got != 24*time.Hour {
		t.Errorf("JobTTL() = %v, want 24h", got)
	}
	if got := cfg.PDFTTL(); got != time.Hour {
		t.Errorf("PDFTTL() = %v, want 1h", got)
	}
	if got := cfg.CleanupInterval(); got != 10*time.Minute {
		t.Errorf("CleanupInterval() = %v, want 10m", got)
	}
}

func TestConfig_YAML(t *testing.T) {
	out, err := DefaultConfig().YAML()
	if err != nil {
		t.Fatalf("YAML failed: %v", err)
	}

	for _, key := range []string{"base_url", "jpeg_quality", "pages_per_chapter", "ring_buffer_size"} {
		if !strings.Contains(string(out), key) {
			t.Errorf("YAML output missing key %q", key)
		}
	}
}
