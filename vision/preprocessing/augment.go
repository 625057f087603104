package preprocessing

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// AugmentConfig holds the ranges random transformations are drawn from.
// Rotation and shear are in degrees. Shifts below 1 are fractions of the
// image size, larger values are pixels. Zoom factors are drawn per axis
// from [1-ZoomRange, 1+ZoomRange].
type AugmentConfig struct {
	RotationRange    float64
	ShearRange       float64
	ZoomRange        float64
	HorizontalFlip   bool
	WidthShiftRange  float64
	HeightShiftRange float64
}

// Enabled reports whether any transformation can be drawn
func (c AugmentConfig) Enabled() bool {
	return c.RotationRange != 0 || c.ShearRange != 0 || c.ZoomRange != 0 ||
		c.HorizontalFlip || c.WidthShiftRange != 0 || c.HeightShiftRange != 0
}

// Transform is one concrete random augmentation.
// Angles are in radians and shifts in pixels.
type Transform struct {
	Rotation float64
	Shear    float64
	ZoomX    float64
	ZoomY    float64
	ShiftX   float64
	ShiftY   float64
	FlipH    bool
}

// Identity returns a transform that leaves images unchanged
func Identity() *Transform {
	return &Transform{ZoomX: 1, ZoomY: 1}
}

// IsAffineIdentity reports whether the warp part of t is a no-op
func (t *Transform) IsAffineIdentity() bool {
	return t.Rotation == 0 && t.Shear == 0 && t.ZoomX == 1 && t.ZoomY == 1 &&
		t.ShiftX == 0 && t.ShiftY == 0
}

// matrix returns the source to destination mapping for an image whose
// centre is (cx, cy). Rotation, shear and zoom act about the centre.
func (t *Transform) matrix(cx, cy float64) (f64.Aff3, bool) {
	sin, cos := math.Sincos(t.Rotation)
	shearSin, shearCos := math.Sincos(t.Shear)

	// Destination to source: rotation * shear * zoom
	a := cos * t.ZoomX
	b := (cos*-shearSin - sin*shearCos) * t.ZoomY
	c := sin * t.ZoomX
	d := (sin*-shearSin + cos*shearCos) * t.ZoomY

	det := a*d - b*c
	if math.Abs(det) < 1e-9 {
		return f64.Aff3{}, false
	}

	// Invert to get source to destination
	ia, ib := d/det, -b/det
	ic, id := -c/det, a/det

	return f64.Aff3{
		ia, ib, cx + t.ShiftX - ia*cx - ib*cy,
		ic, id, cy + t.ShiftY - ic*cx - id*cy,
	}, true
}

// Apply returns a transformed copy of img. Areas uncovered by the warp are black.
func (t *Transform) Apply(img *image.NRGBA) *image.NRGBA {
	out := img
	if !t.IsAffineIdentity() {
		bounds := img.Bounds()
		cx := float64(bounds.Dx()) / 2
		cy := float64(bounds.Dy()) / 2

		if m, ok := t.matrix(cx, cy); ok {
			dst := imaging.New(bounds.Dx(), bounds.Dy(), color.Black)
			draw.NearestNeighbor.Transform(dst, m, img, bounds, draw.Src, nil)
			out = dst
		}
	}

	if t.FlipH {
		return imaging.FlipH(out)
	}
	if out == img {
		return imaging.Clone(img)
	}
	return out
}

// Augmenter draws random transforms from a seeded source
type Augmenter struct {
	mu     sync.Mutex
	config AugmentConfig
	width  int
	height int
	rng    *rand.Rand
}

// NewAugmenter creates an augmenter for width x height images
func NewAugmenter(config AugmentConfig, width, height int, seed int64) *Augmenter {
	return &Augmenter{
		config: config,
		width:  width,
		height: height,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Sample draws the next transform
func (a *Augmenter) Sample() *Transform {
	a.mu.Lock()
	defer a.mu.Unlock()

	t := Identity()
	cfg := a.config

	if cfg.RotationRange != 0 {
		t.Rotation = a.uniform(cfg.RotationRange) * math.Pi / 180
	}
	if cfg.HeightShiftRange != 0 {
		t.ShiftY = shiftPixels(a.uniform(cfg.HeightShiftRange), cfg.HeightShiftRange, a.height)
	}
	if cfg.WidthShiftRange != 0 {
		t.ShiftX = shiftPixels(a.uniform(cfg.WidthShiftRange), cfg.WidthShiftRange, a.width)
	}
	if cfg.ShearRange != 0 {
		t.Shear = a.uniform(cfg.ShearRange) * math.Pi / 180
	}
	if cfg.ZoomRange != 0 {
		t.ZoomX = 1 + a.uniform(cfg.ZoomRange)
		t.ZoomY = 1 + a.uniform(cfg.ZoomRange)
	}
	if cfg.HorizontalFlip {
		t.FlipH = a.rng.Float64() < 0.5
	}

	return t
}

// uniform draws from [-r, r)
func (a *Augmenter) uniform(r float64) float64 {
	return (a.rng.Float64()*2 - 1) * r
}

func shiftPixels(v, r float64, size int) float64 {
	if r < 1 {
		return v * float64(size)
	}
	return v
}
