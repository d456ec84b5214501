package capture

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

var (
	black = color.NRGBA{0, 0, 0, 255}
	white = color.NRGBA{255, 255, 255, 255}
)

// luma averages the colour channels to 0..255.
func luma(img image.Image, x, y int) int {
	r, g, b, _ := img.At(x, y).RGBA()
	return int((r + g + b) / 3 >> 8)
}

// prepareForOCR normalises a frame for Tesseract: grayscale, stronger
// contrast, light sharpening, and an upscale for small crops.
func prepareForOCR(img image.Image) *image.NRGBA {
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 20)
	gray = imaging.Sharpen(gray, 0.7)
	if gray.Bounds().Dy() < 600 {
		gray = imaging.Resize(gray, 0, 900, imaging.Lanczos)
	}
	return gray
}

// binarize performs a global threshold.
func binarize(img image.Image, threshold int) *image.NRGBA {
	b := img.Bounds()
	out := imaging.New(b.Dx(), b.Dy(), white)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if luma(img, b.Min.X+x, b.Min.Y+y) <= threshold {
				out.Set(x, y, black)
			}
		}
	}
	return out
}

// adaptiveThreshold compares each pixel against the mean of its window,
// computed from a summed-area table. It copes with uneven lighting on
// glossy ticket paper better than a global threshold.
func adaptiveThreshold(img image.Image, window, bias int) *image.NRGBA {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := imaging.New(w, h, white)
	if w == 0 || h == 0 {
		return out
	}

	pix := make([]int, w*h)
	sums := make([]int, w*h)
	for y := 0; y < h; y++ {
		row := 0
		for x := 0; x < w; x++ {
			v := luma(img, b.Min.X+x, b.Min.Y+y)
			pix[y*w+x] = v
			row += v
			sums[y*w+x] = row
			if y > 0 {
				sums[y*w+x] += sums[(y-1)*w+x]
			}
		}
	}
	at := func(x, y int) int {
		if x < 0 || y < 0 {
			return 0
		}
		return sums[y*w+x]
	}

	half := window / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, y0 := max(x-half, 0), max(y-half, 0)
			x1, y1 := min(x+half, w-1), min(y+half, h-1)
			sum := at(x1, y1) - at(x0-1, y1) - at(x1, y0-1) + at(x0-1, y0-1)
			mean := sum / ((x1 - x0 + 1) * (y1 - y0 + 1))
			if pix[y*w+x] < max(mean-bias, 0) {
				out.Set(x, y, black)
			}
		}
	}
	return out
}

// dilate grows dark pixels into their 4-neighbourhood radius times,
// closing gaps in thin printed digits.
func dilate(img *image.NRGBA, radius int) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	cur := img
	for r := 0; r < radius; r++ {
		next := imaging.New(w, h, white)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				for _, d := range [][2]int{{0, 0}, {1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
					x2, y2 := x+d[0], y+d[1]
					if x2 < 0 || y2 < 0 || x2 >= w || y2 >= h {
						continue
					}
					if cur.NRGBAAt(x2, y2).R == 0 {
						next.Set(x, y, black)
						break
					}
				}
			}
		}
		cur = next
	}
	return cur
}
