package canonical

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"sieve/internal/services"
)

const stage = "canonical"

// smoothMoreKernel is the "smooth more" 5x5 kernel. The heavy centre weight
// keeps edges while averaging out JPEG block noise; weights sum to 100.
var smoothMoreKernel = [25]float64{
	1, 1, 1, 1, 1,
	1, 5, 5, 5, 1,
	1, 5, 44, 5, 1,
	1, 5, 5, 5, 1,
	1, 1, 1, 1, 1,
}

// Normalizer converts raw image bytes into canonical bytes.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	opts Options
}

// New returns a Normalizer for the given constants.
func New(opts Options) (*Normalizer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Normalizer{opts: opts}, nil
}

// Options returns the constants the normalizer was built with.
func (n *Normalizer) Options() Options {
	return n.opts
}

// Normalize runs the canonicalization chain over raw. Undecodable input fails
// with services.ErrInvalidImage; anything else with services.ErrProcessing.
func (n *Normalizer) Normalize(raw []byte) ([]byte, error) {
	img, err := n.Canonicalize(raw)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(n.opts.Quality)); err != nil {
		return nil, services.Wrap(services.ErrProcessing, stage, "encode", "write canonical jpeg", err)
	}
	return buf.Bytes(), nil
}

// Canonicalize runs every step except the final encode and returns the pixel
// grid that would be written.
func (n *Normalizer) Canonicalize(raw []byte) (img *image.Gray, err error) {
	if len(raw) == 0 {
		return nil, services.Wrap(services.ErrInvalidImage, stage, "decode", "empty input", nil)
	}

	// Image codecs and filters panic on a few malformed inputs; keep that
	// inside the taxonomy.
	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = services.Wrap(services.ErrProcessing, stage, "transform", fmt.Sprint(r), nil)
		}
	}()

	if err := n.checkDimensions(raw); err != nil {
		return nil, err
	}

	decoded, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidImage, stage, "decode", "input is not a supported image", err)
	}

	gray := Luminance(decoded)
	smoothed := imaging.Convolve5x5(gray, smoothMoreKernel, &imaging.ConvolveOptions{Normalize: true})

	bounded := smoothed
	if b := smoothed.Bounds(); b.Dx() > n.opts.MaxWidth || b.Dy() > n.opts.MaxHeight {
		bounded = imaging.Fit(smoothed, n.opts.MaxWidth, n.opts.MaxHeight, imaging.Lanczos)
	}

	low, high := uint8(n.opts.LowThreshold), uint8(n.opts.HighThreshold)
	toned := imaging.AdjustFunc(bounded, func(c color.NRGBA) color.NRGBA {
		v := ToneCurve(c.R, low, high)
		return color.NRGBA{R: v, G: v, B: v, A: 255}
	})

	out := grayFromNRGBA(toned)
	if out.Bounds().Empty() {
		return nil, services.Wrap(services.ErrProcessing, stage, "transform", "image has no pixels", nil)
	}
	return out, nil
}

// checkDimensions reads only the image header so an oversized declaration is
// refused before any pixel buffer is allocated.
func (n *Normalizer) checkDimensions(raw []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return services.Wrap(services.ErrInvalidImage, stage, "decode", "input is not a supported image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return services.Wrap(services.ErrInvalidImage, stage, "decode",
			fmt.Sprintf("image declares %dx%d pixels", cfg.Width, cfg.Height), nil)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > n.opts.MaxInputPixels {
		return services.Wrap(services.ErrInvalidImage, stage, "decode",
			fmt.Sprintf("image declares %dx%d pixels, limit is %d", cfg.Width, cfg.Height, n.opts.MaxInputPixels), nil)
	}
	return nil
}

// ToneCurve clamps values below low to black and above high to white,
// passing everything in between through unchanged.
func ToneCurve(v, low, high uint8) uint8 {
	switch {
	case v < low:
		return 0
	case v > high:
		return 255
	default:
		return v
	}
}

// Luminance reduces img to a single channel with ITU-R 601 weights
// (0.299 R + 0.587 G + 0.114 B) applied to straight, non-premultiplied
// colour so transparent regions keep their underlying tone.
func Luminance(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		b := g.Bounds()
		out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			off := g.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], g.Pix[off:off+b.Dx()])
		}
		return out
	}

	nrgba := imaging.Clone(img)
	w, h := nrgba.Rect.Dx(), nrgba.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := 0; x < w; x++ {
			r, g, b := uint32(row[x*4]), uint32(row[x*4+1]), uint32(row[x*4+2])
			dst[x] = uint8((19595*r + 38470*g + 7471*b + 1<<15) >> 16)
		}
	}
	return out
}

func grayFromNRGBA(src *image.NRGBA) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := range dst {
			dst[x] = row[x*4]
		}
	}
	return out
}

// DecodeGray decodes canonical bytes back into a grayscale grid. Grayscale
// JPEGs decode to *image.Gray directly; anything else goes through Luminance.
func DecodeGray(data []byte) (*image.Gray, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}
	return Luminance(img), nil
}
