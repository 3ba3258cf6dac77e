package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Chdir(dir))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Worker.MaxRetries)
	require.Equal(t, 2.0, cfg.Worker.BackoffMultiplier)
	require.Equal(t, 1000, cfg.Worker.CacheCapacity)
	require.Equal(t, 0.80, cfg.Confidence.AcceptThreshold)
	require.Equal(t, 0.60, cfg.Confidence.HITLThreshold)
	require.Contains(t, cfg.Vendors, "ucdp")
	require.Equal(t, 2, cfg.Vendors["ucdp"].Retries)
}

func TestLoad_RejectsInvertedConfidenceThresholds(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Chdir(dir))
	t.Setenv("CONFIDENCE_ACCEPT_THRESHOLD", "0.5")
	t.Setenv("CONFIDENCE_HITL_THRESHOLD", "0.9")

	_, err := Load()
	require.Error(t, err)
}
