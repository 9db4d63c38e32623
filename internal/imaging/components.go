package imaging

import (
	"image"
	"sort"
)

// Component is an 8-connected region of tissue pixels.
type Component struct {
	// Bounds is the bounding box; Max is exclusive.
	Bounds image.Rectangle `json:"bounds"`

	// Area is the number of tissue pixels in the component.
	Area int `json:"area"`

	pixels []int
}

// Components labels the 8-connected tissue regions of m, sorted by area
// (largest first). Equal areas keep raster-scan discovery order.
func Components(m *Mask) []Component {
	visited := make([]bool, len(m.Pix))
	comps := make([]Component, 0)

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			i := y*m.Width + x
			if m.Pix[i] && !visited[i] {
				comps = append(comps, floodFill(m, visited, x, y))
			}
		}
	}

	sort.SliceStable(comps, func(i, j int) bool {
		return comps[i].Area > comps[j].Area
	})
	return comps
}

// RemoveSmallComponents returns a copy of m without components smaller than
// minArea pixels.
func RemoveSmallComponents(m *Mask, minArea int) *Mask {
	out := NewMask(m.Width, m.Height)
	for _, c := range Components(m) {
		if c.Area < minArea {
			continue
		}
		for _, i := range c.pixels {
			out.Pix[i] = true
		}
	}
	return out
}

// floodFill collects the component containing (startX, startY).
//
// Uses an explicit stack rather than recursion so large tissue regions cannot
// overflow the goroutine stack.
func floodFill(m *Mask, visited []bool, startX, startY int) Component {
	c := Component{Bounds: image.Rect(startX, startY, startX+1, startY+1)}
	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= m.Width || p.Y < 0 || p.Y >= m.Height {
			continue
		}
		i := p.Y*m.Width + p.X
		if visited[i] || !m.Pix[i] {
			continue
		}

		visited[i] = true
		c.pixels = append(c.pixels, i)
		c.Area++
		c.Bounds = c.Bounds.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, image.Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
	return c
}
