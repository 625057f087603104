package preprocessing

import (
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"

	// Extra formats for datasets that are not pure JPEG
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageProcessor turns encoded images into network input.
// It is stateless apart from its settings and safe for concurrent use.
type ImageProcessor struct {
	width   int
	height  int
	rescale float32
}

// NewImageProcessor creates a processor producing width x height images whose
// 8-bit channel values are multiplied by rescale
func NewImageProcessor(width, height int, rescale float32) *ImageProcessor {
	return &ImageProcessor{
		width:   width,
		height:  height,
		rescale: rescale,
	}
}

// ProcessedImage represents a preprocessed image ready for neural network input
type ProcessedImage struct {
	Data     []float32
	Width    int
	Height   int
	Channels int
}

// Size returns the number of float32 values in one processed image
func (p *ImageProcessor) Size() int {
	return 3 * p.width * p.height
}

// Dims returns the target width and height
func (p *ImageProcessor) Dims() (int, int) {
	return p.width, p.height
}

// Load decodes an image file and resizes it to the target resolution
func (p *ImageProcessor) Load(path string) (*image.NRGBA, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return p.Resize(img), nil
}

// Decode reads an encoded image and resizes it to the target resolution
func (p *ImageProcessor) Decode(reader io.Reader) (*image.NRGBA, error) {
	img, err := imaging.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return p.Resize(img), nil
}

// Resize scales img to the target resolution with nearest-neighbour sampling.
// The aspect ratio is not preserved.
func (p *ImageProcessor) Resize(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	if bounds.Dx() == p.width && bounds.Dy() == p.height {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, p.width, p.height, imaging.NearestNeighbor)
}

// ToTensor converts an image at the target resolution into CHW float32 data.
// Alpha is dropped, as when converting to RGB.
func (p *ImageProcessor) ToTensor(img *image.NRGBA, dst []float32) error {
	bounds := img.Bounds()
	if bounds.Dx() != p.width || bounds.Dy() != p.height {
		return fmt.Errorf("image is %dx%d, expected %dx%d", bounds.Dx(), bounds.Dy(), p.width, p.height)
	}
	if len(dst) < p.Size() {
		return fmt.Errorf("destination holds %d values, need %d", len(dst), p.Size())
	}

	plane := p.width * p.height
	for y := 0; y < p.height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < p.width; x++ {
			idx := y*p.width + x
			px := row[x*4 : x*4+3]
			dst[idx] = float32(px[0]) * p.rescale
			dst[plane+idx] = float32(px[1]) * p.rescale
			dst[2*plane+idx] = float32(px[2]) * p.rescale
		}
	}
	return nil
}

// DecodeAndPreprocess decodes, resizes and converts an image.
// Returns data in CHW format (channels, height, width).
func (p *ImageProcessor) DecodeAndPreprocess(reader io.Reader) (*ProcessedImage, error) {
	img, err := p.Decode(reader)
	if err != nil {
		return nil, err
	}
	return p.process(img)
}

// LoadAndPreprocess is DecodeAndPreprocess for a file, applying transform when it is not nil
func (p *ImageProcessor) LoadAndPreprocess(path string, transform *Transform) (*ProcessedImage, error) {
	img, err := p.Load(path)
	if err != nil {
		return nil, err
	}
	if transform != nil {
		img = transform.Apply(img)
	}
	return p.process(img)
}

func (p *ImageProcessor) process(img *image.NRGBA) (*ProcessedImage, error) {
	data := make([]float32, p.Size())
	if err := p.ToTensor(img, data); err != nil {
		return nil, err
	}
	return &ProcessedImage{
		Data:     data,
		Width:    p.width,
		Height:   p.height,
		Channels: 3,
	}, nil
}
