package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/tiff"
)

// DefaultMaxSize is the default bound on the longer side of a working image.
const DefaultMaxSize = 1024

// Modality identifies which instrument produced an image.
type Modality string

const (
	// ModalityHE is the primary H&E histology image.
	ModalityHE Modality = "he"

	// ModalityCosMx is the secondary CosMx spatial-omics image.
	ModalityCosMx Modality = "cosmx"
)

// Dimensions is a width/height pair in pixels.
type Dimensions struct {
	// Width is the horizontal extent in pixels.
	Width int `json:"width"`

	// Height is the vertical extent in pixels.
	Height int `json:"height"`
}

// Area returns Width*Height.
func (d Dimensions) Area() int {
	return d.Width * d.Height
}

// WorkingImage is a decoded image downscaled to the processing resolution.
//
// The raster is never modified after construction. Original records the
// full-resolution size of the source so results computed at working
// resolution can be mapped back.
type WorkingImage struct {
	// Modality is the instrument the image came from.
	Modality Modality

	// Image is the working-resolution raster.
	Image *image.NRGBA

	// Original is the size of the source image before downscaling.
	Original Dimensions
}

// Size returns the working-resolution dimensions.
func (w *WorkingImage) Size() Dimensions {
	b := w.Image.Bounds()
	return Dimensions{Width: b.Dx(), Height: b.Dy()}
}

// NewWorkingImage downscales img so that its longer side is at most maxSize,
// preserving the aspect ratio. Images already within the bound are copied
// unchanged. A maxSize <= 0 selects DefaultMaxSize.
func NewWorkingImage(img image.Image, modality Modality, maxSize int) *WorkingImage {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	b := img.Bounds()

	// Fit never upscales; it returns a clone when the image already fits.
	working := imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)

	return &WorkingImage{
		Modality: modality,
		Image:    working,
		Original: Dimensions{Width: b.Dx(), Height: b.Dy()},
	}
}

// DecodeFile decodes an image file from disk.
//
// PNG, JPEG, GIF, BMP and TIFF are decoded through disintegration/imaging.
// Files with an .svs extension are Aperio whole-slide TIFF containers; they
// are decoded with golang.org/x/image/tiff, which reads the first
// (full-resolution) directory. SVS files using JPEG or JPEG2000 tile
// compression are not supported by that decoder and return an error; convert
// those to PNG thumbnails first.
func DecodeFile(path string) (image.Image, error) {
	if strings.EqualFold(filepath.Ext(path), ".svs") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open image: %w", err)
		}
		defer f.Close()

		img, err := tiff.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("failed to decode slide %s: %w", filepath.Base(path), err)
		}
		return img, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// LoadWorkingImage decodes path and bounds it to maxSize on its longer side.
func LoadWorkingImage(path string, modality Modality, maxSize int) (*WorkingImage, error) {
	img, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return NewWorkingImage(img, modality, maxSize), nil
}

// ImageCache provides thread-safe caching of working images to avoid
// redundant disk reads and downscaling.
//
// Entries are keyed by path, modality and working size, so the same file
// loaded at two resolutions occupies two entries. Cached images remain in
// memory until removed via Evict() or Clear().
//
// # Example Usage
//
//	cache := imaging.NewImageCache()
//	he, err := cache.Load("data/slides/S1.png", imaging.ModalityHE, 1024)
//	if err != nil {
//	    return err
//	}
//	cache.Evict("data/slides/S1.png") // Optional: free memory
type ImageCache struct {
	mu     sync.RWMutex
	images map[cacheKey]*WorkingImage
}

type cacheKey struct {
	path     string
	modality Modality
	maxSize  int
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[cacheKey]*WorkingImage),
	}
}

// Load retrieves a working image from the cache or loads it from disk.
//
// The working image is cached using the exact path string provided.
// Different paths to the same file (relative vs absolute) result in separate
// cache entries.
func (c *ImageCache) Load(path string, modality Modality, maxSize int) (*WorkingImage, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	key := cacheKey{path: path, modality: modality, maxSize: maxSize}

	c.mu.RLock()
	if wi, ok := c.images[key]; ok {
		c.mu.RUnlock()
		return wi, nil
	}
	c.mu.RUnlock()

	wi, err := LoadWorkingImage(path, modality, maxSize)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[key] = wi
	c.mu.Unlock()

	return wi, nil
}

// Len returns the number of cached working images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear removes all images from the cache, freeing the associated memory.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[cacheKey]*WorkingImage)
	c.mu.Unlock()
}

// Evict removes every cached working image loaded from path, whatever its
// modality or working size. Unknown paths are ignored.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	for key := range c.images {
		if key.path == path {
			delete(c.images, key)
		}
	}
	c.mu.Unlock()
}
