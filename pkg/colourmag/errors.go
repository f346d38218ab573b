package colourmag

import (
	"errors"
	"fmt"
)

var (
	ErrShapeMismatch    = errors.New("frame shape mismatch")
	ErrNoFrames         = errors.New("no frames")
	ErrTooFewSources    = errors.New("too few sources detected")
	ErrInvalidMagnitude = errors.New("expected valid floating point number")
	ErrSourceIndex      = errors.New("source index out of range")
	ErrNoSession        = errors.New("no reduced session")
	ErrConfig           = errors.New("invalid configuration")
)

// ShapeError reports frames that do not share the pixel shape of their stack.
type ShapeError struct {
	Stage string
	Want  [2]int // rows, cols
	Got   [2]int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: frame size %dx%d differs from %dx%d", e.Stage, e.Got[1], e.Got[0], e.Want[1], e.Want[0])
}

func (e *ShapeError) Unwrap() error { return ErrShapeMismatch }

// ConfigError is a missing or malformed configuration option.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %q: %s", e.Key, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// NotFoundError is returned when no persisted session exists at Path.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.Path)
}

func (e *NotFoundError) Unwrap() error { return ErrNoSession }
