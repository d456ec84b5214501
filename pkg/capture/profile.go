package capture

import (
	"image"
	"strconv"

	"github.com/disintegration/imaging"
)

// Profile is one way of framing a captured image before detection: a
// centre crop followed by a downscale so the longer side fits MaxDim.
type Profile struct {
	MaxDim    int     `mapstructure:"max_dim" json:"max_dim"`
	CropRatio float64 `mapstructure:"crop_ratio" json:"crop_ratio"`
}

// DefaultProfiles are tried in order for every frame. Small or distant
// codes tend to read at full resolution, blurry ones after downscaling.
var DefaultProfiles = []Profile{
	{MaxDim: 1280, CropRatio: 1.0},
	{MaxDim: 960, CropRatio: 1.0},
	{MaxDim: 960, CropRatio: 0.8},
	{MaxDim: 640, CropRatio: 1.0},
}

// Label renders the profile the way it is recorded on a fragment.
func (p Profile) Label() string {
	return strconv.Itoa(p.MaxDim) + "/" + strconv.FormatFloat(p.CropRatio, 'g', -1, 64)
}

// Apply crops and scales img. Images are never upscaled.
func (p Profile) Apply(img image.Image) image.Image {
	b := img.Bounds()
	out := img
	if p.CropRatio > 0 && p.CropRatio < 1 {
		w := int(float64(b.Dx()) * p.CropRatio)
		h := int(float64(b.Dy()) * p.CropRatio)
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		out = imaging.CropCenter(img, w, h)
	}
	if p.MaxDim > 0 {
		ob := out.Bounds()
		if ob.Dx() > p.MaxDim || ob.Dy() > p.MaxDim {
			out = imaging.Fit(out, p.MaxDim, p.MaxDim, imaging.NearestNeighbor)
		}
	}
	return out
}
