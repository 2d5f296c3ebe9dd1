// Package fingerprint derives the 16-bit histogram fingerprint used as the
// duplicate registry key.
//
// The 256-level luminance histogram of a canonical image is folded into 16
// equal-width buckets; each bucket contributes a 1 when its count is strictly
// above the mean bucket count. Comparing histogram shape instead of pixels
// tolerates the residual noise that survives normalization, and the
// above/below-mean split ignores uniform exposure shifts. Rotation, crops, and
// watermarks do change the fingerprint.
//
// Matching fingerprints is a probabilistic judgement, not a cryptographic one:
// there are only 65536 possible values. DifferenceHash supplies a 64-bit
// perceptual hash that operators can use to judge whether two images sharing
// a fingerprint really look alike; it never influences ingest decisions.
package fingerprint
