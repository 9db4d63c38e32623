package imaging

import (
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestRenderOverlay(t *testing.T) {
	primary := NewMask(100, 60)
	primary.FillRect(50, 30, 70, 50)
	secondary := NewMask(20, 20)
	secondary.FillRect(0, 0, 20, 20)

	img := RenderOverlay(primary, secondary, 60, 40, nil)

	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 60 {
		t.Fatalf("size: got %dx%d", b.Dx(), b.Dy())
	}

	tests := []struct {
		name string
		x, y int
		want color.RGBA
	}{
		{"primary only", 55, 35, primaryColor},
		{"both", 65, 45, bothColor},
		{"secondary only", 75, 55, secondaryColor},
		{"background", 95, 5, color.RGBA{0, 0, 0, 255}},
	}
	for _, tt := range tests {
		if got := img.RGBAAt(tt.x, tt.y); got != tt.want {
			t.Errorf("%s (%d,%d): got %v, want %v", tt.name, tt.x, tt.y, got, tt.want)
		}
	}
}

func TestRenderOverlay_Label(t *testing.T) {
	primary := NewMask(200, 100)
	plain := RenderOverlay(primary, NewMask(1, 1), 0, 0, nil)
	labelled := RenderOverlay(primary, NewMask(1, 1), 0, 0, []string{"rot=90 score=0.91"})

	changed := false
	for y := 0; y < 20 && !changed; y++ {
		for x := 0; x < 100; x++ {
			if plain.RGBAAt(x, y) != labelled.RGBAAt(x, y) {
				changed = true
				break
			}
		}
	}
	if !changed {
		t.Error("label not drawn")
	}
}

func TestSavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "overlay.png")
	img := RenderOverlay(NewMask(30, 20), NewMask(5, 5), 0, 0, nil)

	if err := SavePNG(path, img); err != nil {
		t.Fatalf("SavePNG failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	defer f.Close()

	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 30 || b.Dy() != 20 {
		t.Errorf("size: got %dx%d", b.Dx(), b.Dy())
	}
}
