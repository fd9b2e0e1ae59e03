package assets

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// writeStripes writes a w×h PNG with alternating red and white vertical stripes.
func writeStripes(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
			if x < w/2 {
				c = color.RGBA{R: 0xff, A: 0xff}
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestCache_LoadsOnceByCleanedPath(t *testing.T) {
	root := t.TempDir()
	writeStripes(t, filepath.Join(root, "images", "textures", "candycane.png"), 64, 64)

	c := NewCache(root)
	a, err := c.Get("./images/textures/candycane.png")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, err := c.Get("images/x/../textures/candycane.png")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a != b || c.Len() != 1 {
		t.Fatalf("expected one cached texture, len=%d same=%v", c.Len(), a == b)
	}
	if a.MIME != "image/png" || a.Width != 64 || a.Height != 64 {
		t.Fatalf("texture=%+v", a)
	}
	if a.Key != filepath.Join(root, "images", "textures", "candycane.png") {
		t.Fatalf("key=%s", a.Key)
	}
}

func TestCache_MissIsCached(t *testing.T) {
	root := t.TempDir()
	c := NewCache(root)
	if _, err := c.Get("late.png"); err == nil {
		t.Fatalf("expected miss")
	}
	// The file appearing later does not change the cached result.
	writeStripes(t, filepath.Join(root, "late.png"), 8, 8)
	if _, err := c.Get("late.png"); err == nil {
		t.Fatalf("expected cached miss")
	}
	if c.Len() != 1 {
		t.Fatalf("len=%d", c.Len())
	}
}

func TestDecode_RejectsNonImage(t *testing.T) {
	if _, err := Decode([]byte("plain text, not pixels")); !errors.Is(err, ErrNotImage) {
		t.Fatalf("err=%v", err)
	}
}

func TestTexture_SampleWraps(t *testing.T) {
	root := t.TempDir()
	writeStripes(t, filepath.Join(root, "s.png"), 32, 32)
	tex, err := NewCache(root).Get("s.png")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	left := tex.At(0.1, 0.5)
	right := tex.At(0.9, 0.5)
	if left.G != 0 || right.G != 0xff {
		t.Fatalf("left=%v right=%v", left, right)
	}
	if tex.At(1.1, 0.5) != left || tex.At(-0.9, 0.5) != left {
		t.Fatalf("sampling does not wrap")
	}
	avg := tex.Average()
	if avg.R != 0xff || avg.G < 0x70 || avg.G > 0x90 {
		t.Fatalf("average=%v", avg)
	}
}
