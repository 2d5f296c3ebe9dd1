package canonical_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/jpeg"
	"testing"

	"sieve/internal/canonical"
	"sieve/internal/fingerprint"
	"sieve/internal/services"
	"sieve/internal/testsupport"
)

func newNormalizer(t *testing.T) *canonical.Normalizer {
	t.Helper()
	n, err := canonical.New(canonical.DefaultOptions())
	if err != nil {
		t.Fatalf("canonical.New: %v", err)
	}
	return n
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := newNormalizer(t)
	raw := testsupport.EncodeJPEG(t, testsupport.DocumentImage(640, 480), 85)

	first, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	second, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("expected identical canonical bytes for identical input")
	}
}

func TestNormalizeProducesGrayscaleJPEG(t *testing.T) {
	n := newNormalizer(t)
	raw := testsupport.EncodePNG(t, testsupport.DocumentImage(320, 240))

	out, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("canonical bytes are not a jpeg: %v", err)
	}
	if _, ok := img.(*image.Gray); !ok {
		t.Fatalf("expected single-channel jpeg, got %T", img)
	}
}

func TestNormalizeRecompressionInvariance(t *testing.T) {
	n := newNormalizer(t)
	src := testsupport.DocumentImage(1024, 768)

	variants := map[string][]byte{
		"png":     testsupport.EncodePNG(t, src),
		"jpeg-60": testsupport.EncodeJPEG(t, src, 60),
		"jpeg-80": testsupport.EncodeJPEG(t, src, 80),
		"jpeg-95": testsupport.EncodeJPEG(t, src, 95),
	}
	for name, raw := range variants {
		out, err := n.Normalize(raw)
		if err != nil {
			t.Fatalf("%s: Normalize: %v", name, err)
		}
		fp, err := fingerprint.Generate(out)
		if err != nil {
			t.Fatalf("%s: Generate: %v", name, err)
		}
		if string(fp) != testsupport.DocumentFingerprint {
			t.Fatalf("%s: fingerprint %s, want %s", name, fp, testsupport.DocumentFingerprint)
		}
	}
}

func TestNormalizeRejectsUndecodableInput(t *testing.T) {
	n := newNormalizer(t)
	cases := map[string][]byte{
		"empty":     nil,
		"text":      []byte("definitely not an image"),
		"truncated": testsupport.EncodePNG(t, testsupport.DocumentImage(64, 64))[:40],
	}
	for name, raw := range cases {
		_, err := n.Normalize(raw)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !errors.Is(err, services.ErrInvalidImage) {
			t.Fatalf("%s: expected ErrInvalidImage, got %v", name, err)
		}
	}
}

func TestCanonicalizeBoundsSize(t *testing.T) {
	n := newNormalizer(t)
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{name: "landscape", w: 1600, h: 1200, wantW: 800, wantH: 600},
		{name: "portrait", w: 500, h: 1000, wantW: 400, wantH: 800},
		{name: "small stays", w: 300, h: 200, wantW: 300, wantH: 200},
		{name: "exact bound", w: 800, h: 800, wantW: 800, wantH: 800},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := testsupport.EncodePNG(t, testsupport.DocumentImage(tc.w, tc.h))
			img, err := n.Canonicalize(raw)
			if err != nil {
				t.Fatalf("Canonicalize: %v", err)
			}
			b := img.Bounds()
			if b.Dx() != tc.wantW || b.Dy() != tc.wantH {
				t.Fatalf("got %dx%d, want %dx%d", b.Dx(), b.Dy(), tc.wantW, tc.wantH)
			}
		})
	}
}

func TestCanonicalizeAppliesToneCurve(t *testing.T) {
	n := newNormalizer(t)
	img, err := n.Canonicalize(testsupport.EncodePNG(t, testsupport.DocumentImage(240, 180)))
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	opts := n.Options()
	for _, v := range img.Pix {
		if v != 0 && int(v) < opts.LowThreshold {
			t.Fatalf("pixel %d survived below low threshold", v)
		}
		if v != 255 && int(v) > opts.HighThreshold {
			t.Fatalf("pixel %d survived above high threshold", v)
		}
	}
}

func TestToneCurve(t *testing.T) {
	tests := []struct {
		in, want uint8
	}{
		{0, 0},
		{29, 0},
		{30, 30},
		{128, 128},
		{225, 225},
		{226, 255},
		{255, 255},
	}
	for _, tc := range tests {
		if got := canonical.ToneCurve(tc.in, 30, 225); got != tc.want {
			t.Fatalf("ToneCurve(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestLuminanceWeights(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	copy(img.Pix, []byte{
		255, 0, 0, 255,
		0, 255, 0, 255,
		0, 0, 255, 255,
	})
	gray := canonical.Luminance(img)
	want := []uint8{76, 150, 29}
	for i, v := range want {
		if gray.Pix[i] != v {
			t.Fatalf("pixel %d: got %d want %d", i, gray.Pix[i], v)
		}
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*canonical.Options)
	}{
		{name: "zero width", mutate: func(o *canonical.Options) { o.MaxWidth = 0 }},
		{name: "quality high", mutate: func(o *canonical.Options) { o.Quality = 101 }},
		{name: "thresholds inverted", mutate: func(o *canonical.Options) { o.LowThreshold = 200; o.HighThreshold = 100 }},
		{name: "high above range", mutate: func(o *canonical.Options) { o.HighThreshold = 256 }},
		{name: "no pixel cap", mutate: func(o *canonical.Options) { o.MaxInputPixels = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := canonical.DefaultOptions()
			tc.mutate(&opts)
			if _, err := canonical.New(opts); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

// withDeclaredSize rewrites the IHDR dimensions of a PNG without adding any
// pixel data, producing a tiny file that claims a huge image.
func withDeclaredSize(t *testing.T, png []byte, width, height uint32) []byte {
	t.Helper()
	if len(png) < 33 || string(png[12:16]) != "IHDR" {
		t.Fatal("expected IHDR as first chunk")
	}
	out := append([]byte(nil), png...)
	binary.BigEndian.PutUint32(out[16:20], width)
	binary.BigEndian.PutUint32(out[20:24], height)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestNormalizeRejectsHugeDeclaredDimensions(t *testing.T) {
	n := newNormalizer(t)
	small := testsupport.EncodePNG(t, testsupport.DocumentImage(16, 16))
	huge := withDeclaredSize(t, small, 100_000, 100_000)

	_, err := n.Normalize(huge)
	if !errors.Is(err, services.ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
}

func TestNormalizeHonoursPixelCap(t *testing.T) {
	opts := canonical.DefaultOptions()
	opts.MaxInputPixels = 10_000
	n, err := canonical.New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := n.Normalize(testsupport.EncodePNG(t, testsupport.DocumentImage(200, 100))); !errors.Is(err, services.ErrInvalidImage) {
		t.Fatalf("expected 200x100 to exceed the cap, got %v", err)
	}
	if _, err := n.Normalize(testsupport.EncodePNG(t, testsupport.DocumentImage(100, 100))); err != nil {
		t.Fatalf("expected 100x100 to fit the cap: %v", err)
	}
}
