package fingerprint

import (
	"fmt"
	"image"
	"strings"

	"sieve/internal/canonical"
	"sieve/internal/services"
)

const (
	// Levels is the number of luminance levels in the histogram.
	Levels = 256
	// Buckets is the fixed number of reduced histogram features.
	Buckets = 16
	// Length is the number of characters in a Fingerprint.
	Length = Buckets

	bucketWidth = Levels / Buckets
	stage       = "fingerprint"
)

// Fingerprint is a string of Length '0'/'1' characters, one per bucket in
// ascending luminance order.
type Fingerprint string

// String implements fmt.Stringer.
func (f Fingerprint) String() string { return string(f) }

// Valid reports whether f has the expected shape.
func (f Fingerprint) Valid() bool {
	if len(f) != Length {
		return false
	}
	for i := 0; i < len(f); i++ {
		if f[i] != '0' && f[i] != '1' {
			return false
		}
	}
	return true
}

// Short returns the first n characters, used to build suggested artifact names.
func (f Fingerprint) Short(n int) string {
	if n <= 0 || n >= len(f) {
		return string(f)
	}
	return string(f[:n])
}

// Parse validates s and returns it as a Fingerprint.
func Parse(s string) (Fingerprint, error) {
	fp := Fingerprint(strings.TrimSpace(s))
	if !fp.Valid() {
		return "", fmt.Errorf("fingerprint %q: want %d characters of 0 or 1", s, Length)
	}
	return fp, nil
}

// Generate re-decodes canonical bytes and returns their fingerprint. A decode
// failure is a processing error: canonical bytes always come from the
// normalizer, so an undecodable blob means something broke in between.
func Generate(canonicalBytes []byte) (Fingerprint, error) {
	img, err := canonical.DecodeGray(canonicalBytes)
	if err != nil {
		return "", services.Wrap(services.ErrProcessing, stage, "decode", "canonical bytes did not decode", err)
	}
	if img.Bounds().Empty() {
		return "", services.Wrap(services.ErrProcessing, stage, "decode", "canonical image has no pixels", nil)
	}
	return FromBuckets(Reduce(Histogram(img))), nil
}

// Histogram counts pixels per luminance level.
func Histogram(img *image.Gray) [Levels]int {
	var hist [Levels]int
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		for _, v := range img.Pix[off : off+b.Dx()] {
			hist[v]++
		}
	}
	return hist
}

// Reduce folds the histogram into Buckets contiguous sums of bucketWidth levels.
func Reduce(hist [Levels]int) [Buckets]int {
	var buckets [Buckets]int
	for level, count := range hist {
		buckets[level/bucketWidth] += count
	}
	return buckets
}

// FromBuckets emits '1' for every bucket strictly greater than the mean of
// all buckets and '0' otherwise.
func FromBuckets(buckets [Buckets]int) Fingerprint {
	total := 0
	for _, v := range buckets {
		total += v
	}
	// v > total/Buckets, compared in integers to avoid rounding.
	var sb strings.Builder
	sb.Grow(Length)
	for _, v := range buckets {
		if v*Buckets > total {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return Fingerprint(sb.String())
}
