package capture

import (
	"bytes"
	"context"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/otiai10/gosseract/v2"
	"github.com/rotisserie/eris"

	"baken/pkg/ticket"
)

// ErrNoCode is returned when no engine found a code in a frame.
var ErrNoCode = eris.New("no code detected")

// Engine reads the payload of one optical code from a frame.
type Engine interface {
	Name() string
	Detect(ctx context.Context, img image.Image) (string, error)
}

// Engine names accepted by NewEngines.
const (
	EngineQR        = "qr"
	EngineTesseract = "tesseract"
)

// NewEngines builds engines by name, in the order given.
func NewEngines(names []string, lang string) ([]Engine, error) {
	if len(names) == 0 {
		names = []string{EngineQR}
	}
	out := make([]Engine, 0, len(names))
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case EngineQR:
			out = append(out, NewQREngine())
		case EngineTesseract:
			out = append(out, NewTesseractEngine(lang))
		default:
			return nil, eris.Errorf("unknown detection engine %q", n)
		}
	}
	return out, nil
}

// QREngine decodes QR symbols with gozxing. Each frame is tried as captured
// and inverted, since glare on the ticket can flip the contrast.
type QREngine struct {
	hints map[gozxing.DecodeHintType]interface{}
}

func NewQREngine() *QREngine {
	return &QREngine{hints: map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}}
}

func (e *QREngine) Name() string { return EngineQR }

func (e *QREngine) Detect(ctx context.Context, img image.Image) (string, error) {
	for _, frame := range []image.Image{img, imaging.Invert(img)} {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		bmp, err := gozxing.NewBinaryBitmapFromImage(frame)
		if err != nil {
			return "", eris.Wrap(err, "qr bitmap")
		}
		res, err := qrcode.NewQRCodeReader().Decode(bmp, e.hints)
		if err != nil {
			continue
		}
		if text := res.GetText(); text != "" {
			return text, nil
		}
	}
	return "", ErrNoCode
}

// TesseractEngine OCRs a printed or on-screen digit string. It runs a
// global-threshold pass and an adaptive-threshold pass and keeps the read
// closest to a full fragment.
type TesseractEngine struct {
	lang string
}

func NewTesseractEngine(lang string) *TesseractEngine {
	if lang == "" {
		lang = "eng"
	}
	return &TesseractEngine{lang: lang}
}

func (e *TesseractEngine) Name() string { return EngineTesseract }

func (e *TesseractEngine) Detect(ctx context.Context, img image.Image) (string, error) {
	gray := prepareForOCR(img)
	passes := []image.Image{
		binarize(gray, 200),
		dilate(adaptiveThreshold(gray, 15, 7), 1),
	}

	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(e.lang); err != nil {
		return "", eris.Wrap(err, "tesseract language")
	}
	if err := client.SetWhitelist("0123456789"); err != nil {
		return "", eris.Wrap(err, "tesseract whitelist")
	}

	best := ""
	for _, pass := range passes {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, pass, imaging.PNG); err != nil {
			return "", eris.Wrap(err, "encode ocr pass")
		}
		if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
			return "", eris.Wrap(err, "tesseract image")
		}
		text, err := client.Text()
		if err != nil {
			return "", eris.Wrap(err, "tesseract")
		}
		digits := CleanDigits(text)
		if len(digits) == ticket.FragmentLen {
			return digits, nil
		}
		if closer(len(digits), len(best)) {
			best = digits
		}
	}
	if best == "" {
		return "", ErrNoCode
	}
	return best, nil
}

// closer reports whether n is nearer to a fragment length than cur.
func closer(n, cur int) bool {
	dist := func(v int) int {
		if v > ticket.FragmentLen {
			return v - ticket.FragmentLen
		}
		return ticket.FragmentLen - v
	}
	return n > 0 && dist(n) < dist(cur)
}
