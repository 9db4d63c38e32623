package pipeline

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/ironsheep/cosmx-align/internal/transform"
)

// ErrInputMissing reports that a slide lacks its H&E or CosMx source image.
var ErrInputMissing = errors.New("input image missing")

// Directory names under the data root.
const (
	SlidesDir = "slides"
	CosMxDir  = "cosmx"
	OutputDir = "cosmx_tiles"
)

// primaryExts lists H&E extensions in lookup order.
var primaryExts = []string{".svs", ".png", ".tif", ".tiff", ".jpg", ".jpeg"}

// Layout resolves slide files under a data directory:
//
//	{root}/slides/{id}.svs|png       H&E primary
//	{root}/cosmx/{id}.png            CosMx secondary
//	{root}/cosmx_tiles/{id}/         per-slide output
type Layout struct {
	Root string
}

// NewLayout returns the layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{Root: root}
}

// SlideOutputDir is the directory holding a slide's outputs.
func (l Layout) SlideOutputDir(slideID string) string {
	return filepath.Join(l.Root, OutputDir, slideID)
}

// TransformPath is where a slide's transform record is written.
func (l Layout) TransformPath(slideID string) string {
	return filepath.Join(l.SlideOutputDir(slideID), transform.FileName)
}

// DebugPath is where a slide's debug overlay is written.
func (l Layout) DebugPath(slideID string) string {
	return filepath.Join(l.SlideOutputDir(slideID), transform.DebugFileName)
}

// FindPrimary returns the H&E image for slideID, trying each supported
// extension in order.
func (l Layout) FindPrimary(slideID string) (string, error) {
	for _, ext := range primaryExts {
		p := filepath.Join(l.Root, SlidesDir, slideID+ext)
		if fileExists(p) {
			return p, nil
		}
	}
	return "", errors.Wrapf(ErrInputMissing, "no H&E image for slide %s", slideID)
}

// FindSecondary returns the CosMx image for slideID. When cosmx/{id}.png is
// absent the directory is scanned for a PNG whose stem matches slideID
// case-insensitively.
func (l Layout) FindSecondary(slideID string) (string, error) {
	dir := filepath.Join(l.Root, CosMxDir)
	exact := filepath.Join(dir, slideID+".png")
	if fileExists(exact) {
		return exact, nil
	}

	names, err := pngStems(dir)
	if err != nil && !os.IsNotExist(errors.Cause(err)) {
		return "", err
	}
	for _, n := range names {
		if strings.EqualFold(n.stem, slideID) {
			return filepath.Join(dir, n.file), nil
		}
	}
	return "", errors.Wrapf(ErrInputMissing, "no CosMx image for slide %s", slideID)
}

// ListSlides returns the ids of every CosMx PNG, sorted.
func (l Layout) ListSlides() ([]string, error) {
	names, err := pngStems(filepath.Join(l.Root, CosMxDir))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(names))
	for _, n := range names {
		ids = append(ids, n.stem)
	}
	sort.Strings(ids)
	return ids, nil
}

type pngName struct {
	file string
	stem string
}

// pngStems lists the PNG files of dir in directory order (sorted by name).
func pngStems(dir string) ([]pngName, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", dir)
	}
	var out []pngName
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !strings.EqualFold(ext, ".png") {
			continue
		}
		out = append(out, pngName{file: e.Name(), stem: strings.TrimSuffix(e.Name(), ext)})
	}
	return out, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
