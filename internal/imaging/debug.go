package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Overlay channel colours.
var (
	primaryColor   = color.RGBA{255, 0, 0, 255}
	secondaryColor = color.RGBA{0, 255, 0, 255}
	bothColor      = color.RGBA{255, 255, 0, 255}
	labelFG        = color.RGBA{255, 255, 255, 255}
	labelBG        = color.RGBA{0, 0, 0, 180}
)

// RenderOverlay draws an alignment result for visual inspection.
//
// The canvas has the primary mask's size. Primary tissue is drawn in the red
// channel and the secondary mask, placed with its top-left at (dx, dy), in
// the green channel, so agreeing pixels appear yellow. Secondary pixels that
// fall outside the canvas are dropped. Each entry of lines is drawn as one
// row of the label box in the top-left corner.
func RenderOverlay(primary, secondary *Mask, dx, dy int, lines []string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, primary.Width, primary.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	for y := 0; y < primary.Height; y++ {
		for x := 0; x < primary.Width; x++ {
			if primary.Pix[y*primary.Width+x] {
				img.SetRGBA(x, y, primaryColor)
			}
		}
	}

	for sy := 0; sy < secondary.Height; sy++ {
		y := sy + dy
		if y < 0 || y >= primary.Height {
			continue
		}
		for sx := 0; sx < secondary.Width; sx++ {
			x := sx + dx
			if x < 0 || x >= primary.Width || !secondary.Pix[sy*secondary.Width+sx] {
				continue
			}
			if primary.Pix[y*primary.Width+x] {
				img.SetRGBA(x, y, bothColor)
			} else {
				img.SetRGBA(x, y, secondaryColor)
			}
		}
	}

	drawLabel(img, 4, 4, lines)
	return img
}

// SavePNG encodes img as PNG at path, creating parent directories.
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return f.Close()
}

// drawLabel draws text rows on a translucent box anchored at (x, y).
func drawLabel(img *image.RGBA, x, y int, lines []string) {
	if len(lines) == 0 {
		return
	}
	face := basicfont.Face7x13
	lineHeight := face.Metrics().Height.Ceil()

	width := 0
	for _, l := range lines {
		if w := font.MeasureString(face, l).Ceil(); w > width {
			width = w
		}
	}
	box := image.Rect(x, y, x+width+6, y+lineHeight*len(lines)+6).Intersect(img.Bounds())
	draw.Draw(img, box, image.NewUniform(labelBG), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelFG),
		Face: face,
	}
	for i, l := range lines {
		d.Dot = fixed.P(x+3, y+3+lineHeight*i+face.Metrics().Ascent.Ceil())
		d.DrawString(l)
	}
}
