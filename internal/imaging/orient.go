package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Rotations lists the supported counter-clockwise rotations in canonical order.
var Rotations = [4]int{0, 90, 180, 270}

// Orientation is one of the 16 rigid rotation/mirror variants.
//
// Apply rotates counter-clockwise by Rotation degrees, then mirrors
// horizontally (FlipX) and then vertically (FlipY). Invert undoes exactly
// that.
type Orientation struct {
	Rotation int  `json:"rotation"`
	FlipX    bool `json:"flip_x"`
	FlipY    bool `json:"flip_y"`
}

// Orientations returns the 16 variants in canonical enumeration order:
// rotation ascending (outer), then FlipX false before true, then FlipY false
// before true (inner). Tie-breaking between equally scored candidates relies
// on this order, so it must not change.
func Orientations() [16]Orientation {
	var out [16]Orientation
	i := 0
	for _, r := range Rotations {
		for _, fx := range []bool{false, true} {
			for _, fy := range []bool{false, true} {
				out[i] = Orientation{Rotation: r, FlipX: fx, FlipY: fy}
				i++
			}
		}
	}
	return out
}

// Index returns the position of o in Orientations(), or -1 if o has an
// unsupported rotation.
func (o Orientation) Index() int {
	ri := -1
	for i, r := range Rotations {
		if r == o.Rotation {
			ri = i
		}
	}
	if ri < 0 {
		return -1
	}
	i := ri * 4
	if o.FlipX {
		i += 2
	}
	if o.FlipY {
		i++
	}
	return i
}

func (o Orientation) String() string {
	return fmt.Sprintf("rot=%d flipX=%t flipY=%t", o.Rotation, o.FlipX, o.FlipY)
}

// SwapsAxes reports whether the orientation exchanges width and height.
func (o Orientation) SwapsAxes() bool {
	return o.Rotation == 90 || o.Rotation == 270
}

// Apply returns the oriented copy of m.
func (o Orientation) Apply(m *Mask) *Mask {
	if o == (Orientation{}) {
		return m.Clone()
	}
	img := rotateCCW(m.Gray(), o.Rotation)
	if o.FlipX {
		img = imaging.FlipH(img)
	}
	if o.FlipY {
		img = imaging.FlipV(img)
	}
	return MaskFromImage(img)
}

// Invert undoes Apply: o.Invert(o.Apply(m)) reproduces m exactly.
func (o Orientation) Invert(m *Mask) *Mask {
	if o == (Orientation{}) {
		return m.Clone()
	}
	var img image.Image = m.Gray()
	if o.FlipY {
		img = imaging.FlipV(img)
	}
	if o.FlipX {
		img = imaging.FlipH(img)
	}
	return MaskFromImage(rotateCCW(img, (360-o.Rotation)%360))
}

func rotateCCW(img image.Image, degrees int) image.Image {
	switch degrees {
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	default:
		return img
	}
}
