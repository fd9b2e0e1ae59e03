// Package assets loads pipe textures for renderers.
package assets

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/h2non/filetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// SampleSize is the edge of the square a texture is resampled to.
const SampleSize = 16

var ErrNotImage = errors.New("not an image")

type Texture struct {
	// Key is the cache key: the cleaned path actually loaded.
	Key    string
	MIME   string
	Width  int
	Height int

	sample *image.RGBA
}

// At samples the texture with repeat wrapping; u and v are in texture units.
func (t *Texture) At(u, v float64) color.RGBA {
	x := wrap(u, SampleSize)
	y := wrap(v, SampleSize)
	return t.sample.RGBAAt(x, y)
}

// Average is the mean color of the texture.
func (t *Texture) Average() color.RGBA {
	var r, g, b, n int
	for y := 0; y < SampleSize; y++ {
		for x := 0; x < SampleSize; x++ {
			c := t.sample.RGBAAt(x, y)
			r += int(c.R)
			g += int(c.G)
			b += int(c.B)
			n++
		}
	}
	return color.RGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n), A: 0xff}
}

func wrap(f float64, n int) int {
	i := int(f*float64(n)) % n
	if i < 0 {
		i += n
	}
	return i
}

type entry struct {
	tex *Texture
	err error
}

// Cache loads each texture once. Failed loads are remembered too, so a missing file is
// only hit on disk the first time.
type Cache struct {
	root string

	mu      sync.Mutex
	entries map[string]entry
}

// NewCache resolves relative texture paths against root.
func NewCache(root string) *Cache {
	return &Cache{root: root, entries: map[string]entry{}}
}

// Key returns the path that Get would load for p.
func (c *Cache) Key(p string) string {
	if p == "" {
		return ""
	}
	if !filepath.IsAbs(p) && c.root != "" {
		p = filepath.Join(c.root, p)
	}
	return filepath.Clean(p)
}

func (c *Cache) Get(p string) (*Texture, error) {
	key := c.Key(p)
	if key == "" {
		return nil, errors.New("empty texture path")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.tex, e.err
	}
	tex, err := load(key)
	c.entries[key] = entry{tex: tex, err: err}
	return tex, err
}

// Len is the number of cached keys, misses included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func load(path string) (*Texture, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", path, err)
	}
	tex, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", path, err)
	}
	tex.Key = path
	return tex, nil
}

// Decode sniffs the image format from content and resamples it to SampleSize.
func Decode(b []byte) (*Texture, error) {
	kind, err := filetype.Match(b)
	if err != nil || kind == filetype.Unknown {
		return nil, ErrNotImage
	}
	var img image.Image
	r := bytes.NewReader(b)
	switch kind.MIME.Value {
	case "image/png":
		img, err = png.Decode(r)
	case "image/jpeg":
		img, err = jpeg.Decode(r)
	case "image/gif":
		img, err = gif.Decode(r)
	case "image/bmp":
		img, err = bmp.Decode(r)
	case "image/tiff":
		img, err = tiff.Decode(r)
	case "image/webp":
		img, err = webp.Decode(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotImage, kind.MIME.Value)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind.MIME.Value, err)
	}

	sample := image.NewRGBA(image.Rect(0, 0, SampleSize, SampleSize))
	draw.ApproxBiLinear.Scale(sample, sample.Bounds(), img, img.Bounds(), draw.Src, nil)
	bounds := img.Bounds()
	return &Texture{
		MIME:   kind.MIME.Value,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		sample: sample,
	}, nil
}
