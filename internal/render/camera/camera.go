// Package camera projects lattice space onto a 2D viewport.
package camera

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	FovYDegrees = 45
	Near        = 1
	Far         = 100000

	// Distance is how far the eye sits from the origin.
	Distance = 14
)

// Rand is the random source for view selection. It is separate from the simulation
// source so camera choices never perturb the field.
type Rand interface {
	Float64() float64
}

type Camera struct {
	Eye    mgl32.Vec3
	Target mgl32.Vec3
	Up     mgl32.Vec3
	Aspect float32

	view mgl32.Mat4
	proj mgl32.Mat4
	vp   mgl32.Mat4
}

// New returns a head-on camera at (0, 0, Distance) looking at the origin.
func New(aspect float32) *Camera {
	c := &Camera{
		Eye:    mgl32.Vec3{0, 0, Distance},
		Up:     mgl32.Vec3{0, 1, 0},
		Aspect: aspect,
	}
	c.update()
	return c
}

// Look picks a view: half the time head-on, otherwise (Distance, 0, 0) rotated a quarter
// turn about a random axis.
func (c *Camera) Look(r Rand) {
	if r.Float64() < 0.5 {
		c.Eye = mgl32.Vec3{0, 0, Distance}
	} else {
		axis := mgl32.Vec3{rnd(r), rnd(r), rnd(r)}
		c.Eye = RotateAbout(mgl32.Vec3{Distance, 0, 0}, axis, math32.Pi/2)
	}
	c.update()
}

func rnd(r Rand) float32 { return float32(-1 + 2*r.Float64()) }

// RotateAbout rotates v by angle radians about axis. A zero axis leaves v unchanged.
func RotateAbout(v, axis mgl32.Vec3, angle float32) mgl32.Vec3 {
	if axis.Len() < 1e-6 {
		return v
	}
	m := mgl32.HomogRotate3D(angle, axis.Normalize())
	return m.Mul4x1(v.Vec4(1)).Vec3()
}

func (c *Camera) SetAspect(aspect float32) {
	if aspect <= 0 {
		return
	}
	c.Aspect = aspect
	c.update()
}

func (c *Camera) update() {
	up := c.Up
	dir := c.Target.Sub(c.Eye).Normalize()
	if math32.Abs(dir.Dot(up.Normalize())) > 0.999 {
		up = mgl32.Vec3{0, 0, 1}
	}
	c.view = mgl32.LookAtV(c.Eye, c.Target, up)
	c.proj = mgl32.Perspective(mgl32.DegToRad(FovYDegrees), c.Aspect, Near, Far)
	c.vp = c.proj.Mul4(c.view)
}

// Project maps a world point to normalized device coordinates. ok is false for points
// behind the eye or outside the depth range.
func (c *Camera) Project(p mgl32.Vec3) (ndc mgl32.Vec3, ok bool) {
	clip := c.vp.Mul4x1(p.Vec4(1))
	if clip.W() <= 0 {
		return mgl32.Vec3{}, false
	}
	ndc = clip.Vec3().Mul(1 / clip.W())
	if ndc.Z() < -1 || ndc.Z() > 1 {
		return ndc, false
	}
	return ndc, true
}

// ToScreen maps p to integer cell coordinates on a w×h viewport, with y growing down.
// depth is the NDC z; smaller is nearer.
func (c *Camera) ToScreen(p mgl32.Vec3, w, h int) (x, y int, depth float32, ok bool) {
	ndc, ok := c.Project(p)
	if !ok {
		return 0, 0, 0, false
	}
	fx := (ndc.X() + 1) * 0.5 * float32(w)
	fy := (1 - ndc.Y()) * 0.5 * float32(h)
	x, y = int(math32.Floor(fx)), int(math32.Floor(fy))
	if x < 0 || y < 0 || x >= w || y >= h {
		return x, y, ndc.Z(), false
	}
	return x, y, ndc.Z(), true
}

// Distance from the eye to p.
func (c *Camera) DistanceTo(p mgl32.Vec3) float32 { return p.Sub(c.Eye).Len() }
