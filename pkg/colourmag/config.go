package colourmag

import (
	"fmt"
	"log/slog"

	"github.com/BurntSushi/toml"
)

// DefaultConfigPath is the configuration file read when none is given.
const DefaultConfigPath = "input_cmd.toml"

// Config is the reduction configuration. Field tags are the option names of
// the configuration file.
type Config struct {
	FWHM      float64 `toml:"FWHM"`
	RAperture float64 `toml:"r_aperture"`
	Ratio     float64 `toml:"ratio"`
	Threshold float64 `toml:"threshold"`

	DoDark     bool `toml:"do_dark"`
	DoFlat     bool `toml:"do_flat"`
	DoDarkFlat bool `toml:"do_dark_flat"`

	PathLightShort string `toml:"path_light_short"`
	PathLightLong  string `toml:"path_light_long"`
	PathDarkShort  string `toml:"path_dark_short"`
	PathDarkLong   string `toml:"path_dark_long"`
	PathFlatShort  string `toml:"path_flat_short"`
	PathFlatLong   string `toml:"path_flat_long"`
	PathDarkFlat   string `toml:"path_dark_flat"`
	PathResult     string `toml:"path_result"`

	ShortColour string `toml:"short_colour"`
	LongColour  string `toml:"long_colour"`

	Reddening        float64 `toml:"reddening"`
	SigmaClip        float64 `toml:"sigma_clip"`
	ClipIterations   int     `toml:"clip_iterations"`
	RegistrationClip float64 `toml:"registration_clip"`
	MaxOffset        int     `toml:"max_offset"`
	MinStars         int     `toml:"min_stars"`
	MaxStars         int     `toml:"max_stars"`
	HotpixelFilter   bool    `toml:"hotpixel_filter"`
	Debayer          bool    `toml:"debayer"`
	ReferenceFrame   int     `toml:"reference_frame"`
	DebugPath        string  `toml:"debug_path"`
}

var requiredKeys = []string{
	"FWHM", "r_aperture", "ratio", "threshold",
	"path_light_short", "path_light_long", "path_result",
	"short_colour", "long_colour",
}

// DefaultConfig returns a Config holding the defaults of the optional keys.
func DefaultConfig() Config {
	return Config{
		SigmaClip:        3,
		ClipIterations:   5,
		RegistrationClip: 3,
		MinStars:         1,
		HotpixelFilter:   true,
	}
}

// LoadConfig decodes and validates the configuration file at path. Unknown
// keys are logged and otherwise ignored.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, &ConfigError{Key: path, Reason: err.Error()}
	}
	for _, k := range requiredKeys {
		if !md.IsDefined(k) {
			return nil, &ConfigError{Key: k, Reason: "missing required option"}
		}
	}
	for _, k := range md.Undecoded() {
		slog.Warn("unknown configuration option", "key", k.String(), "file", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and that every enabled stage has a path.
func (c *Config) Validate() error {
	switch {
	case c.FWHM <= 0:
		return &ConfigError{Key: "FWHM", Reason: fmt.Sprintf("must be positive, got %v", c.FWHM)}
	case c.RAperture <= 0:
		return &ConfigError{Key: "r_aperture", Reason: fmt.Sprintf("must be positive, got %v", c.RAperture)}
	case c.Ratio <= 0 || c.Ratio > 1:
		return &ConfigError{Key: "ratio", Reason: fmt.Sprintf("must be in (0,1], got %v", c.Ratio)}
	case c.Threshold <= 0:
		return &ConfigError{Key: "threshold", Reason: fmt.Sprintf("must be positive, got %v", c.Threshold)}
	case c.SigmaClip <= 0:
		return &ConfigError{Key: "sigma_clip", Reason: fmt.Sprintf("must be positive, got %v", c.SigmaClip)}
	case c.ClipIterations < 1:
		return &ConfigError{Key: "clip_iterations", Reason: fmt.Sprintf("must be at least 1, got %d", c.ClipIterations)}
	case c.RegistrationClip < 0:
		return &ConfigError{Key: "registration_clip", Reason: "must not be negative"}
	case c.MaxOffset < 0:
		return &ConfigError{Key: "max_offset", Reason: "must not be negative"}
	case c.MinStars < 1:
		return &ConfigError{Key: "min_stars", Reason: fmt.Sprintf("must be at least 1, got %d", c.MinStars)}
	case c.MaxStars < 0:
		return &ConfigError{Key: "max_stars", Reason: "must not be negative"}
	case c.ReferenceFrame < 0:
		return &ConfigError{Key: "reference_frame", Reason: "must not be negative"}
	}

	paths := []struct {
		key, val string
		needed   bool
	}{
		{"path_light_short", c.PathLightShort, true},
		{"path_light_long", c.PathLightLong, true},
		{"path_result", c.PathResult, true},
		{"path_dark_short", c.PathDarkShort, c.DoDark},
		{"path_dark_long", c.PathDarkLong, c.DoDark},
		{"path_flat_short", c.PathFlatShort, c.DoFlat},
		{"path_flat_long", c.PathFlatLong, c.DoFlat},
		{"path_dark_flat", c.PathDarkFlat, c.DoDarkFlat},
	}
	for _, p := range paths {
		if p.needed && p.val == "" {
			return &ConfigError{Key: p.key, Reason: "path is empty"}
		}
	}
	if c.ShortColour == "" || c.LongColour == "" {
		return &ConfigError{Key: "short_colour/long_colour", Reason: "band labels must not be empty"}
	}
	return nil
}

// DetectorParams derives the detection parameters.
func (c *Config) DetectorParams() *StarDetectorParams {
	p := NewStarDetectorParams(c.FWHM, c.Ratio, c.Threshold)
	p.HotpixelFiltering = c.HotpixelFilter
	p.MinStars = c.MinStars
	p.MaxStars = c.MaxStars
	p.SaveIntermediateFilesPath = c.DebugPath
	return p
}

// RegistrationOptions derives the offset estimation options.
func (c *Config) RegistrationOptions() RegistrationOptions {
	return RegistrationOptions{Clip: c.RegistrationClip, MaxOffset: c.MaxOffset}
}

// ApertureRadius is the photometry radius in pixels.
func (c *Config) ApertureRadius() float64 { return c.RAperture * c.FWHM }

// Stages returns the requested calibration stages.
func (c *Config) Stages() CalibrationStages {
	return CalibrationStages{Dark: c.DoDark, Flat: c.DoFlat, FlatDark: c.DoDarkFlat}
}

// BandColour returns the display label of a band.
func (c *Config) BandColour(b Band) string {
	if b == BandLong {
		return c.LongColour
	}
	return c.ShortColour
}
