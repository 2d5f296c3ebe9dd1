package canonical

import (
	"errors"
	"fmt"
)

// Options holds the normalization constants. The zero value is not usable;
// start from DefaultOptions.
type Options struct {
	MaxWidth      int
	MaxHeight     int
	Quality       int
	LowThreshold  int
	HighThreshold int
	// MaxInputPixels rejects submissions whose header declares more pixels
	// than this before anything is decoded. It does not affect fingerprints.
	MaxInputPixels int64
}

// DefaultMaxInputPixels is 40 megapixels, above any camera or scanner sieve
// expects to see.
const DefaultMaxInputPixels = 40_000_000

// DefaultOptions returns the reference constants: 800x800 bound, JPEG quality
// 75, tone curve thresholds 30 and 225.
func DefaultOptions() Options {
	return Options{
		MaxWidth:      800,
		MaxHeight:     800,
		Quality:       75,
		LowThreshold:  30,
		HighThreshold: 225,

		MaxInputPixels: DefaultMaxInputPixels,
	}
}

// Validate reports whether the options describe a usable transform.
func (o Options) Validate() error {
	if o.MaxWidth <= 0 || o.MaxHeight <= 0 {
		return fmt.Errorf("canonical: size bound must be positive, got %dx%d", o.MaxWidth, o.MaxHeight)
	}
	if o.Quality < 1 || o.Quality > 100 {
		return fmt.Errorf("canonical: quality %d out of range 1-100", o.Quality)
	}
	if o.LowThreshold < 0 || o.HighThreshold > 255 || o.LowThreshold >= o.HighThreshold {
		return errors.New("canonical: thresholds must satisfy 0 <= low < high <= 255")
	}
	if o.MaxInputPixels <= 0 {
		return fmt.Errorf("canonical: max input pixels must be positive, got %d", o.MaxInputPixels)
	}
	return nil
}
