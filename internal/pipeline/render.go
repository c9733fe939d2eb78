package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Region labels used in segmentation maps.
const (
	regionBackground = 0
	regionNecrotic   = 1
	regionEdema      = 2
	regionEnhancing  = 3
)

// Region overlay colors: necrotic red, edema green, enhancing yellow.
var regionColors = map[uint8]color.RGBA{
	regionNecrotic:  {255, 60, 60, 255},
	regionEdema:     {60, 220, 80, 255},
	regionEnhancing: {255, 230, 50, 255},
}

// encodePNG renders an image to PNG bytes.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// renderOverlay blends the colored segmentation regions over the grayscale
// brain image.
func renderOverlay(brain []uint8, seg []uint8, size int) *image.RGBA {
	const alpha = 0.45
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			idx := y*size + x
			gray := float64(brain[idx])
			c, tumor := regionColors[seg[idx]]
			if !tumor {
				g := uint8(gray)
				img.SetRGBA(x, y, color.RGBA{g, g, g, 255})
				continue
			}
			blend := func(base float64, over uint8) uint8 {
				return uint8((1-alpha)*base + alpha*float64(over))
			}
			img.SetRGBA(x, y, color.RGBA{
				blend(gray, c.R),
				blend(gray, c.G),
				blend(gray, c.B),
				255,
			})
		}
	}
	return img
}

// renderAttention overlays a normalized heat map on the brain image using a
// blue-to-red ramp, masking values below a small floor so healthy tissue
// stays visible.
func renderAttention(brain []uint8, heat []float64, size int) *image.RGBA {
	const floor = 0.05
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			idx := y*size + x
			gray := float64(brain[idx])
			h := heat[idx]
			if h < floor {
				g := uint8(gray)
				img.SetRGBA(x, y, color.RGBA{g, g, g, 255})
				continue
			}
			// Ramp: low heat blue, high heat red.
			r := uint8(255 * h)
			b := uint8(255 * (1 - h))
			img.SetRGBA(x, y, color.RGBA{
				uint8(0.55*gray + 0.45*float64(r)),
				uint8(0.55 * gray),
				uint8(0.55*gray + 0.45*float64(b)),
				255,
			})
		}
	}
	return img
}

// drawLabel draws small white text with a 1px black outline at (x, y), the
// same basicfont approach used for the slice annotations.
func drawLabel(img *image.RGBA, x, y int, text string) {
	face := basicfont.Face7x13
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			d := &font.Drawer{
				Dst:  img,
				Src:  image.NewUniform(color.Black),
				Face: face,
				Dot:  fixed.P(x+dx, y+dy),
			}
			d.DrawString(text)
		}
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// renderComposition draws a bar chart of the tumor region makeup.
func renderComposition(seg []uint8) *image.RGBA {
	const (
		width   = 320
		height  = 240
		barW    = 64
		marginX = 32
		baseY   = height - 40
		maxBarH = height - 90
	)

	counts := map[uint8]int{}
	total := 0
	for _, label := range seg {
		if label != regionBackground {
			counts[label]++
			total++
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{15, 23, 42, 255}), image.Point{}, draw.Src)
	drawLabel(img, marginX, 24, "Tumor composition")

	bars := []struct {
		label  string
		region uint8
	}{
		{"necrotic", regionNecrotic},
		{"edema", regionEdema},
		{"enhancing", regionEnhancing},
	}

	for i, bar := range bars {
		frac := 0.0
		if total > 0 {
			frac = float64(counts[bar.region]) / float64(total)
		}
		h := int(frac * maxBarH)
		x0 := marginX + i*(barW+marginX)
		rect := image.Rect(x0, baseY-h, x0+barW, baseY)
		draw.Draw(img, rect, image.NewUniform(regionColors[bar.region]), image.Point{}, draw.Src)
		drawLabel(img, x0, baseY+16, bar.label)
		drawLabel(img, x0, baseY-h-6, fmt.Sprintf("%.0f%%", frac*100))
	}

	return img
}

// renderRegionGrid composes a 2x2 panel: overlay, attention, regions-only
// mask and the plain brain image, each scaled to a quadrant.
func renderRegionGrid(brain []uint8, seg []uint8, heat []float64, size int) *image.RGBA {
	quad := size / 2
	grid := image.NewRGBA(image.Rect(0, 0, size, size))

	panels := []struct {
		img   image.Image
		label string
		at    image.Point
	}{
		{renderOverlay(brain, seg, size), "segmentation", image.Point{0, 0}},
		{renderAttention(brain, heat, size), "attention", image.Point{quad, 0}},
		{renderMask(seg, size), "regions", image.Point{0, quad}},
		{renderGrayscale(brain, size), "source", image.Point{quad, quad}},
	}

	for _, p := range panels {
		dst := image.Rect(p.at.X, p.at.Y, p.at.X+quad, p.at.Y+quad)
		draw.BiLinear.Scale(grid, dst, p.img, p.img.Bounds(), draw.Src, nil)
		drawLabel(grid, p.at.X+6, p.at.Y+16, p.label)
	}

	return grid
}

// renderMask draws the segmentation labels on black, no anatomy underneath.
func renderMask(seg []uint8, size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if c, ok := regionColors[seg[y*size+x]]; ok {
				img.SetRGBA(x, y, c)
			} else {
				img.SetRGBA(x, y, color.RGBA{0, 0, 0, 255})
			}
		}
	}
	return img
}

// renderGrayscale converts the raw brain intensities to an RGBA image.
func renderGrayscale(brain []uint8, size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			g := brain[y*size+x]
			img.SetRGBA(x, y, color.RGBA{g, g, g, 255})
		}
	}
	return img
}
