// Package canonical maps raw image bytes to a comparison-stable grayscale
// JPEG.
//
// The transform chain runs in a fixed order: luminance reduction, a 5x5
// smoothing kernel that suppresses compression noise, a bounded Lanczos
// downscale, a three-point tone curve, and a single-channel JPEG re-encode.
// Reordering any step changes the resulting fingerprints.
//
// The package is pure: output depends only on the input bytes and the
// Options value handed to New.
package canonical
