package capture

import (
	"context"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"baken/pkg/ticket"
)

// Detection is the first successful read of a frame.
type Detection struct {
	Text string
	Meta ticket.CaptureMeta
}

// Detector runs every profile, and every engine within a profile, until
// one of them reads a code.
type Detector struct {
	engines  []Engine
	profiles []Profile
	log      *zap.Logger
}

// NewDetector uses DefaultProfiles when profiles is empty.
func NewDetector(engines []Engine, profiles []Profile, log *zap.Logger) *Detector {
	if len(profiles) == 0 {
		profiles = DefaultProfiles
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{engines: engines, profiles: profiles, log: log}
}

// Detect returns ErrNoCode when every profile and engine came up empty.
func (d *Detector) Detect(ctx context.Context, img image.Image) (Detection, error) {
	for _, p := range d.profiles {
		frame := p.Apply(img)
		for _, e := range d.engines {
			if err := ctx.Err(); err != nil {
				return Detection{}, err
			}
			text, err := e.Detect(ctx, frame)
			if err != nil {
				if !eris.Is(err, ErrNoCode) {
					d.log.Debug("engine failed", zap.String("engine", e.Name()), zap.String("profile", p.Label()), zap.Error(err))
				}
				continue
			}
			if text == "" {
				continue
			}
			return Detection{
				Text: text,
				Meta: ticket.CaptureMeta{Engine: e.Name(), Profile: p.Label()},
			}, nil
		}
	}
	return Detection{}, ErrNoCode
}

// DetectFile opens an image, honouring EXIF orientation, and detects it.
func (d *Detector) DetectFile(ctx context.Context, path string) (Detection, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return Detection{}, eris.Wrapf(err, "open image %s", path)
	}
	return d.Detect(ctx, img)
}
