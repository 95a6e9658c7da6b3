package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.RasterDPI)
	assert.Equal(t, []string{"por", "eng"}, cfg.OCRLanguages)
	assert.Equal(t, 0.3, cfg.MinConfidence)
	assert.Equal(t, 2, cfg.WorkerConcurrency)
	assert.Equal(t, 5, cfg.DequeueTimeout)
	assert.Equal(t, 10*time.Minute, cfg.ProcessTimeout)
	assert.Equal(t, 15*time.Minute, cfg.StaleAfter)
	assert.False(t, cfg.HandwritingEnabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("RASTER_DPI", "150")
	t.Setenv("OCR_LANGUAGES", "por")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("PROCESS_TIMEOUT", "2m")
	t.Setenv("HANDWRITING_ENABLED", "true")
	t.Setenv("HANDWRITING_SERVICE_URL", "http://trocr:8000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 150, cfg.RasterDPI)
	assert.Equal(t, []string{"por"}, cfg.OCRLanguages)
	assert.Equal(t, 8, cfg.WorkerConcurrency)
	assert.Equal(t, 2*time.Minute, cfg.ProcessTimeout)
	assert.True(t, cfg.HandwritingEnabled)
	assert.Equal(t, "http://trocr:8000", cfg.HandwritingServiceURL)
}

func TestHandwritingRequiresURL(t *testing.T) {
	t.Setenv("HANDWRITING_ENABLED", "true")
	t.Setenv("HANDWRITING_SERVICE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.HandwritingEnabled, "enabled flag without a URL must be ignored")
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("RASTER_DPI", "not-a-number")
	t.Setenv("PROCESS_TIMEOUT", "soon")
	t.Setenv("MIN_FIELD_CONFIDENCE", "very")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.RasterDPI)
	assert.Equal(t, 10*time.Minute, cfg.ProcessTimeout)
	assert.Equal(t, 0.3, cfg.MinConfidence)
}
