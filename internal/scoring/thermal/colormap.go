package thermal

import (
	"image"
	"image/color"
)

// Colorize renders img as a false-colour thermal view: luminance is mapped
// through the jet colormap (dark blue for cold, dark red for hot).
func Colorize(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			out.SetRGBA(x-b.Min.X, y-b.Min.Y, jet(g.Y))
		}
	}
	return out
}

func jet(v uint8) color.RGBA {
	t := float64(v) / 255
	return color.RGBA{
		R: channel(1.5 - abs(4*t-3)),
		G: channel(1.5 - abs(4*t-2)),
		B: channel(1.5 - abs(4*t-1)),
		A: 0xff,
	}
}

func channel(f float64) uint8 {
	switch {
	case f <= 0:
		return 0
	case f >= 1:
		return 0xff
	}
	return uint8(f*255 + 0.5)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
