// Package term draws the pipe field on a terminal through tcell.
package term

import (
	"image/color"
	"log"
	"math"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl32"

	"pipescreen.ai/internal/render/assets"
	"pipescreen.ai/internal/render/camera"
	"pipescreen.ai/internal/sim/lattice"
	"pipescreen.ai/internal/sim/pipes"
)

// CellAspect is the height/width ratio of a terminal character cell.
const CellAspect = 2.0

// samplesPerSegment is how many points of each unit segment are plotted.
const samplesPerSegment = 6

const (
	GlyphBall   = '●'
	GlyphElbow  = '•'
	GlyphTeapot = '♨'
)

// Joints are drawn slightly in front of the tube they sit on.
const (
	ballRadius  = 0.3
	elbowRadius = 0.2
)

type prim struct {
	at    mgl32.Vec3
	glyph rune
	bias  float32
	pipe  lattice.PipeID
	// seq is the pipe-local draw index, used to stripe textures along the path.
	seq int
	// dir is the segment direction for line glyphs; zero for joints.
	dir mgl32.Vec3
}

type ink struct {
	base color.RGBA
	tex  *assets.Texture
	n    int
}

// Renderer implements pipes.Renderer and world.Presenter.
type Renderer struct {
	screen   tcell.Screen
	textures *assets.Cache
	logger   *log.Logger

	mu    sync.Mutex
	cam   *camera.Camera
	w, h  int
	depth []float32
	prims []prim
	inks  map[lattice.PipeID]*ink
}

// New sizes the renderer to screen and picks a camera view with r.
func New(screen tcell.Screen, textures *assets.Cache, r camera.Rand, logger *log.Logger) *Renderer {
	w, h := screen.Size()
	rd := &Renderer{
		screen:   screen,
		textures: textures,
		logger:   logger,
		cam:      camera.New(aspect(w, h)),
		inks:     map[lattice.PipeID]*ink{},
	}
	if r != nil {
		rd.cam.Look(r)
	}
	rd.resizeLocked(w, h)
	return rd
}

func aspect(w, h int) float32 {
	if w <= 0 || h <= 0 {
		return 1
	}
	return float32(w) / (float32(h) * CellAspect)
}

func vec(c lattice.Cell) mgl32.Vec3 { return mgl32.Vec3{float32(c.X), float32(c.Y), float32(c.Z)} }

func (r *Renderer) OnFieldReset(pipes.BatchConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prims = r.prims[:0]
	r.inks = map[lattice.PipeID]*ink{}
	r.clearDepthLocked()
	r.screen.Clear()
}

func (r *Renderer) OnPipeSpawned(pipe lattice.PipeID, at lattice.Cell, style pipes.Style) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inks[pipe] = r.inkFor(style)
	r.addLocked(prim{at: vec(at), glyph: GlyphBall, bias: ballRadius, pipe: pipe})
}

func (r *Renderer) OnSegment(pipe lattice.PipeID, from, to lattice.Cell, _ pipes.Style) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, b := vec(from), vec(to)
	dir := b.Sub(a)
	for i := 1; i <= samplesPerSegment; i++ {
		t := float32(i) / samplesPerSegment
		r.addLocked(prim{at: a.Add(dir.Mul(t)), pipe: pipe, dir: dir})
	}
}

func (r *Renderer) OnJoint(pipe lattice.PipeID, at lattice.Cell, kind pipes.JointKind, _ pipes.Style) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := prim{at: vec(at), pipe: pipe}
	switch kind {
	case pipes.JointBall:
		p.glyph, p.bias = GlyphBall, ballRadius
	case pipes.JointTeapot:
		p.glyph, p.bias = GlyphTeapot, ballRadius
	default:
		p.glyph, p.bias = GlyphElbow, elbowRadius
	}
	r.addLocked(p)
}

// Present flushes the frame.
func (r *Renderer) Present(uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.screen.Show()
}

// HandleEvent reacts to terminal resizes. Other events are ignored.
func (r *Renderer) HandleEvent(ev tcell.Event) {
	if _, ok := ev.(*tcell.EventResize); !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	w, h := r.screen.Size()
	r.resizeLocked(w, h)
	r.screen.Sync()
}

func (r *Renderer) resizeLocked(w, h int) {
	r.w, r.h = w, h
	r.cam.SetAspect(aspect(w, h))
	if cap(r.depth) >= w*h {
		r.depth = r.depth[:w*h]
	} else {
		r.depth = make([]float32, w*h)
	}
	r.clearDepthLocked()
	r.screen.Clear()
	for i := range r.prims {
		r.plotLocked(r.prims[i])
	}
}

func (r *Renderer) clearDepthLocked() {
	for i := range r.depth {
		r.depth[i] = float32(math.Inf(1))
	}
}

func (r *Renderer) addLocked(p prim) {
	if k := r.inks[p.pipe]; k != nil {
		p.seq = k.n
		k.n++
	}
	r.prims = append(r.prims, p)
	r.plotLocked(p)
}

func (r *Renderer) plotLocked(p prim) {
	x, y, _, ok := r.cam.ToScreen(p.at, r.w, r.h)
	if !ok {
		return
	}
	d := r.cam.DistanceTo(p.at) - p.bias
	i := y*r.w + x
	if d >= r.depth[i] {
		return
	}
	r.depth[i] = d

	glyph := p.glyph
	if glyph == 0 {
		glyph = r.lineGlyph(p)
	}
	r.screen.SetContent(x, y, glyph, nil, tcell.StyleDefault.Foreground(r.colorFor(p, d)))
}

// lineGlyph picks a box-drawing rune from the on-screen direction of a segment.
func (r *Renderer) lineGlyph(p prim) rune {
	a, okA := r.cam.Project(p.at)
	b, okB := r.cam.Project(p.at.Sub(p.dir))
	if !okA || !okB {
		return '·'
	}
	dx := float64(a.X()-b.X()) * float64(r.w)
	dy := float64(a.Y()-b.Y()) * float64(r.h)
	ax, ay := math.Abs(dx), math.Abs(dy)
	switch {
	case ax < 1e-3 && ay < 1e-3:
		// Pointing at the eye.
		return '∘'
	case ax > 2*ay:
		return '─'
	case ay > 2*ax:
		return '│'
	case (dx > 0) == (dy > 0):
		return '╱'
	default:
		return '╲'
	}
}

func (r *Renderer) colorFor(p prim, dist float32) tcell.Color {
	c := color.RGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}
	if k := r.inks[p.pipe]; k != nil {
		c = k.base
		if k.tex != nil {
			c = k.tex.At(float64(p.seq)/samplesPerSegment/2, 0.5)
		}
	}
	// Fade with distance from the eye.
	f := float64((2*camera.Distance - dist) / camera.Distance)
	f = math.Max(0.35, math.Min(1, f))
	return tcell.NewRGBColor(int32(float64(c.R)*f), int32(float64(c.G)*f), int32(float64(c.B)*f))
}

func (r *Renderer) inkFor(style pipes.Style) *ink {
	k := &ink{base: color.RGBA{
		R: uint8(style.Color >> 16),
		G: uint8(style.Color >> 8),
		B: uint8(style.Color),
		A: 0xff,
	}}
	if style.Texture != "" && r.textures != nil {
		tex, err := r.textures.Get(style.Texture)
		switch {
		case err == nil:
			k.tex = tex
			k.base = tex.Average()
		case r.logger != nil:
			r.logger.Printf("texture %s unavailable: %v", style.Texture, err)
			k.base = color.RGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}
		default:
			k.base = color.RGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}
		}
	}
	return k
}
