package preprocess

import (
	"fmt"
	"image"
	"image/color"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"

	"github.com/instill-ai/breed-recognition/config"
	"github.com/instill-ai/breed-recognition/pkg/datamodel"
)

// Normalizer turns an arbitrary-size colour image into the fixed-size model
// input tensor. The aspect ratio is not preserved.
type Normalizer struct {
	interpolation string
}

// NewNormalizer returns a Normalizer using the named interpolation, one of
// config.InterpolationBilinear, config.InterpolationCatmullRom or
// config.InterpolationLanczos3.
func NewNormalizer(interpolation string) (*Normalizer, error) {
	switch interpolation {
	case config.InterpolationBilinear, config.InterpolationCatmullRom, config.InterpolationLanczos3:
	default:
		return nil, fmt.Errorf("unsupported interpolation %q", interpolation)
	}
	return &Normalizer{interpolation: interpolation}, nil
}

// Normalize resizes img with bilinear interpolation and returns its tensor.
func Normalize(img image.Image, sizeX, sizeY int) (datamodel.Tensor, error) {
	return (&Normalizer{interpolation: config.InterpolationBilinear}).Normalize(img, sizeX, sizeY)
}

// Normalize resizes img to sizeX × sizeY and writes every pixel, row by row,
// as R, G, B values divided by 255. The result always has
// datamodel.TensorLen(sizeX, sizeY) values.
func (n *Normalizer) Normalize(img image.Image, sizeX, sizeY int) (datamodel.Tensor, error) {
	if sizeX <= 0 || sizeY <= 0 {
		return nil, fmt.Errorf("target size must be positive, got %dx%d", sizeX, sizeY)
	}
	if err := Validate(img); err != nil {
		return nil, err
	}

	dst := n.resize(img, sizeX, sizeY)

	tensor := make(datamodel.Tensor, datamodel.TensorLen(sizeX, sizeY))
	k := 0
	for y := 0; y < sizeY; y++ {
		for x := 0; x < sizeX; x++ {
			i := dst.PixOffset(x, y)
			tensor[k] = float32(dst.Pix[i]) / 255.0
			tensor[k+1] = float32(dst.Pix[i+1]) / 255.0
			tensor[k+2] = float32(dst.Pix[i+2]) / 255.0
			k += datamodel.Channels
		}
	}

	return tensor, nil
}

func (n *Normalizer) resize(img image.Image, sizeX, sizeY int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, sizeX, sizeY))

	switch n.interpolation {
	case config.InterpolationLanczos3:
		resized := resize.Resize(uint(sizeX), uint(sizeY), img, resize.Lanczos3)
		draw.Draw(dst, dst.Bounds(), resized, resized.Bounds().Min, draw.Src)
	case config.InterpolationCatmullRom:
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	default:
		draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	}

	return dst
}

// Validate checks that img is non-empty and carries colour channels.
// Single-channel images must go through ExpandChannels first.
func Validate(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: no image", datamodel.ErrInvalidImage)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: empty image %dx%d", datamodel.ErrInvalidImage, b.Dx(), b.Dy())
	}
	if !isColor(img.ColorModel()) {
		return fmt.Errorf("%w: unsupported channel layout %T", datamodel.ErrInvalidImage, img)
	}
	return nil
}

func isColor(m color.Model) bool {
	switch m {
	case color.GrayModel, color.Gray16Model, color.AlphaModel, color.Alpha16Model:
		return false
	}
	return true
}

// ExpandChannels replicates the luminance of a grayscale image into R, G and
// B. Colour images are returned unchanged.
func ExpandChannels(img image.Image) image.Image {
	if img == nil || isColor(img.ColorModel()) {
		return img
	}
	b := img.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}
