package colourmag

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseConfig = `
FWHM = 4.0
r_aperture = 1.5
ratio = 0.6
threshold = 5.0
do_dark = false
do_flat = false
do_dark_flat = false
path_light_short = "light/B"
path_light_long = "light/V"
path_result = "result"
short_colour = "B"
long_colour = "V"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultConfigPath)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, baseConfig+"max_stars = 40\nunknown_option = 1\n"))
	require.NoError(t, err)

	assert.Equal(t, 4.0, cfg.FWHM)
	assert.Equal(t, "B", cfg.ShortColour)
	assert.Equal(t, "V", cfg.BandColour(BandLong))
	assert.InDelta(t, 6, cfg.ApertureRadius(), 1e-12)
	assert.Equal(t, 40, cfg.MaxStars)

	// defaults of the optional keys
	assert.Equal(t, 3.0, cfg.SigmaClip)
	assert.Equal(t, 5, cfg.ClipIterations)
	assert.Equal(t, 1, cfg.MinStars)
	assert.True(t, cfg.HotpixelFilter)

	p := cfg.DetectorParams()
	assert.Equal(t, 4.0, p.FWHM)
	assert.Equal(t, 0.6, p.Ratio)
	assert.Equal(t, 40, p.MaxStars)
	assert.Equal(t, RegistrationOptions{Clip: 3}, cfg.RegistrationOptions())
	assert.Equal(t, CalibrationStages{}, cfg.Stages())
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		key  string
	}{
		{
			name: "missing required key",
			body: strings.Replace(baseConfig, "threshold = 5.0\n", "", 1),
			key:  "threshold",
		},
		{
			name: "ratio out of range",
			body: strings.Replace(baseConfig, "ratio = 0.6", "ratio = 1.5", 1),
			key:  "ratio",
		},
		{
			name: "negative FWHM",
			body: strings.Replace(baseConfig, "FWHM = 4.0", "FWHM = -1.0", 1),
			key:  "FWHM",
		},
		{
			name: "dark enabled without path",
			body: strings.Replace(baseConfig, "do_dark = false", "do_dark = true", 1),
			key:  "path_dark_short",
		},
		{
			name: "flat-dark enabled without path",
			body: strings.Replace(baseConfig, "do_dark_flat = false", "do_dark_flat = true", 1),
			key:  "path_dark_flat",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.ErrorIs(t, err, ErrConfig)
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.key, ce.Key)
		})
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "FWHM = = 3"))
	assert.ErrorIs(t, err, ErrConfig)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, ErrConfig)
}
