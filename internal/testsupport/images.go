package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"testing"
)

// Tones used by the synthetic fixtures. Each sits in the middle of a
// 16-level histogram bucket so encoder noise stays inside the bucket.
const (
	ToneBlack = 0
	ToneMid   = 136 // bucket 8
	ToneDark  = 72  // bucket 4
	ToneWhite = 255
)

// DocumentFingerprint is the fingerprint every encoding of DocumentImage
// produces: black, mid grey, and white buckets above the mean.
const DocumentFingerprint = "1000000010000001"

// PosterFingerprint is the fingerprint every encoding of PosterImage produces.
const PosterFingerprint = "0000100000000001"

// DocumentImage draws a w x h RGBA image: a white page, a black block
// covering roughly a fifth of the area, and a mid-grey block covering about a
// tenth. Large flat regions keep the fingerprint stable across encoders.
func DocumentImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill(img, img.Bounds(), ToneWhite)
	fill(img, image.Rect(w/12, h/9, w*7/12, h*19/36), ToneBlack)
	fill(img, image.Rect(w*5/8, h*5/9, w*11/12, h*17/18), ToneMid)
	return img
}

// PosterImage draws a w x h image that is mostly white with a large dark
// grey band. Its fingerprint differs from DocumentImage's.
func PosterImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill(img, img.Bounds(), ToneWhite)
	fill(img, image.Rect(0, h/2, w, h*9/10), ToneDark)
	return img
}

func fill(img *image.RGBA, r image.Rectangle, tone uint8) {
	c := color.RGBA{R: tone, G: tone, B: tone, A: 255}
	draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

// EncodeJPEG encodes img as a JPEG at the given quality.
func EncodeJPEG(t testing.TB, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("encode jpeg q=%d: %v", quality, err)
	}
	return buf.Bytes()
}

// EncodePNG encodes img as a PNG.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
