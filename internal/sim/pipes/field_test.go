package pipes

import (
	"testing"
	"time"

	"pipescreen.ai/internal/sim/lattice"
)

var summer = time.Date(2026, time.July, 1, 12, 0, 0, 0, time.UTC)

func quietOptions(b lattice.Bounds) Options {
	o := DefaultOptions()
	o.Bounds = b
	o.Multiple = false
	o.Season = Never
	return o
}

func TestField_FixedPlusXStopsAtBoundary(t *testing.T) {
	f, rec := newTestField(t, quietOptions(lattice.Cube(1)), 1)
	f.SetPolicy(FixedPolicy(lattice.DirPosX))
	p := placePipe(f, lattice.Cell{})

	res := f.Tick(summer)
	if res.Moved != 1 || res.Reset {
		t.Fatalf("first tick: %+v", res)
	}
	if got := p.Current(); got != (lattice.Cell{X: 1}) {
		t.Fatalf("current=%v want (1,0,0)", got)
	}

	for i := 0; i < 20; i++ {
		res := f.Tick(summer)
		if res.Moved != 0 || res.Stuck != 1 || res.Reset {
			t.Fatalf("tick %d: %+v", i, res)
		}
	}
	if p.Len() != 2 || p.Current() != (lattice.Cell{X: 1}) {
		t.Fatalf("stuck pipe moved: len=%d current=%v", p.Len(), p.Current())
	}
	if rec.count("segment") != 1 || rec.count("joint") != 0 {
		t.Fatalf("events: segments=%d joints=%d", rec.count("segment"), rec.count("joint"))
	}
	if f.StuckTicks() != 20 {
		t.Fatalf("stuck ticks=%d", f.StuckTicks())
	}
}

func TestField_AlternatingStepsRequestOneJointPerTurn(t *testing.T) {
	f, rec := newTestField(t, quietOptions(lattice.Cube(10)), 1)
	f.SetPolicy(&SequencePolicy{Steps: []lattice.Direction{lattice.DirPosX, lattice.DirPosY}})
	joints := &countingJoints{}
	f.SetJoints(joints)
	p := placePipe(f, lattice.Cell{})

	const steps = 12
	for i := 0; i < steps; i++ {
		if res := f.Tick(summer); res.Moved != 1 {
			t.Fatalf("tick %d did not move: %+v", i, res)
		}
	}
	if joints.calls != steps-1 {
		t.Fatalf("joint requests=%d want %d", joints.calls, steps-1)
	}
	if rec.count("joint") != steps-1 || rec.count("segment") != steps {
		t.Fatalf("events: joints=%d segments=%d", rec.count("joint"), rec.count("segment"))
	}
	// Joints sit on the pre-move cell.
	path := p.Path()
	ji := 0
	for _, e := range rec.events {
		if e.kind != "joint" {
			continue
		}
		ji++
		if e.from != path[ji] {
			t.Fatalf("joint %d at %v want %v", ji, e.from, path[ji])
		}
	}
}

func TestField_RandomChoiceEqualToPrevIsNotATurn(t *testing.T) {
	f, _ := newTestField(t, quietOptions(lattice.Cube(10)), 1)
	f.SetPolicy(FixedPolicy(lattice.DirNegY))
	joints := &countingJoints{}
	f.SetJoints(joints)
	placePipe(f, lattice.Cell{})
	for i := 0; i < 5; i++ {
		f.Tick(summer)
	}
	if joints.calls != 0 {
		t.Fatalf("straight run requested %d joints", joints.calls)
	}
}

func TestField_EmptyFieldClearsGridThenSpawns(t *testing.T) {
	f, rec := newTestField(t, quietOptions(lattice.Cube(3)), 7)
	stale := lattice.Cell{X: 3, Y: 3, Z: 3}
	f.grid.Claim(stale, 999)

	res := f.Tick(summer)
	if !res.Reset || res.Spawned < 1 {
		t.Fatalf("first tick: %+v", res)
	}
	if id, ok := f.OccupantOf(stale); ok && id == 999 {
		t.Fatalf("stale claim survived the reset")
	}
	if len(rec.events) == 0 || rec.events[0].kind != "reset" {
		t.Fatalf("expected reset before spawns, got %+v", rec.events)
	}
	if rec.count("spawn") != res.Spawned || len(f.Pipes()) != res.Spawned {
		t.Fatalf("spawned=%d events=%d pipes=%d", res.Spawned, rec.count("spawn"), len(f.Pipes()))
	}
	if f.Batch().Seq != 1 {
		t.Fatalf("batch seq=%d", f.Batch().Seq)
	}
	if err := f.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestField_SpawnCount(t *testing.T) {
	cases := []struct {
		multiple bool
		extra    float64
		want     int
	}{
		{false, 1, 1},
		{true, 0, 2},
		{true, 1, 3},
	}
	for _, tc := range cases {
		o := quietOptions(lattice.Cube(5))
		o.Multiple = tc.multiple
		o.ExtraPipeChance = tc.extra
		f, _ := newTestField(t, o, 11)
		for i := 0; i < 20; i++ {
			f.Clear()
			if res := f.Tick(summer); res.Spawned != tc.want {
				t.Fatalf("multiple=%v extra=%v: spawned %d want %d", tc.multiple, tc.extra, res.Spawned, tc.want)
			}
			if f.Batch().Pipes != tc.want {
				t.Fatalf("batch pipes=%d want %d", f.Batch().Pipes, tc.want)
			}
		}
	}
}

func TestField_JointModes(t *testing.T) {
	cases := map[JointMode]float64{
		JointsElbow: 0,
		JointsBall:  1,
		JointsMixed: DefaultMixedBallChance,
	}
	for mode, want := range cases {
		o := quietOptions(lattice.Cube(2))
		o.Joints = mode
		f, _ := newTestField(t, o, 3)
		f.Tick(summer)
		b := f.Batch()
		if b.Joints != mode || b.BallJointChance != want || b.TeapotChance != DefaultTeapotChance {
			t.Fatalf("mode %s: batch %+v", mode, b)
		}
	}
}

func TestField_CycleModeWraps(t *testing.T) {
	o := quietOptions(lattice.Cube(2))
	o.Joints = JointsCycle
	o.Cycle = []JointMode{JointsBall, JointsElbow}
	f, _ := newTestField(t, o, 3)
	want := []JointMode{JointsBall, JointsElbow, JointsBall, JointsElbow}
	for i, w := range want {
		f.Clear()
		f.Tick(summer)
		if got := f.Batch().Joints; got != w {
			t.Fatalf("batch %d: joints=%s want %s", i, got, w)
		}
	}
}

func TestField_FestiveOverride(t *testing.T) {
	o := quietOptions(lattice.Cube(2))
	o.FestiveChance = 1
	o.Season = Always
	f, _ := newTestField(t, o, 9)
	f.Tick(summer)
	b := f.Batch()
	if !b.Festive || b.TeapotChance != DefaultFestiveTeapotChance || b.Texture != DefaultFestiveTexture {
		t.Fatalf("batch %+v", b)
	}
	for _, p := range f.Pipes() {
		if p.Style().Texture != DefaultFestiveTexture || p.Style().Color != 0 {
			t.Fatalf("festive pipe style %+v", p.Style())
		}
	}

	o.Season = Never
	f, _ = newTestField(t, o, 9)
	f.Tick(summer)
	if f.Batch().Festive {
		t.Fatalf("festive outside season")
	}
}

func TestWinter(t *testing.T) {
	cases := []struct {
		t    time.Time
		want bool
	}{
		{time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC), false},
		{summer, false},
		{time.Date(2026, time.December, 30, 23, 0, 0, 0, time.UTC), false},
		{time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC), true},
	}
	for _, tc := range cases {
		if got := Winter(tc.t); got != tc.want {
			t.Fatalf("Winter(%s)=%v want %v", tc.t, got, tc.want)
		}
	}
}

func TestField_StuckResetTicks(t *testing.T) {
	o := quietOptions(lattice.Bounds{})
	o.StuckResetTicks = 3
	f, _ := newTestField(t, o, 5)

	if res := f.Tick(summer); !res.Reset {
		t.Fatalf("tick 1 should spawn: %+v", res)
	}
	for i := 2; i <= 3; i++ {
		if res := f.Tick(summer); res.Reset || res.Stuck != 1 {
			t.Fatalf("tick %d: %+v", i, res)
		}
	}
	res := f.Tick(summer)
	if !res.Reset || res.Spawned != 1 {
		t.Fatalf("tick 4 should reset: %+v", res)
	}
	if f.Batch().Seq != 2 {
		t.Fatalf("batch seq=%d want 2", f.Batch().Seq)
	}
}

func TestField_StuckPipesKeptWithoutStuckReset(t *testing.T) {
	f, _ := newTestField(t, quietOptions(lattice.Bounds{}), 5)
	f.Tick(summer)
	for i := 0; i < 50; i++ {
		if res := f.Tick(summer); res.Reset {
			t.Fatalf("tick %d reset a stuck field", i)
		}
	}
	if f.Batch().Seq != 1 {
		t.Fatalf("batch seq=%d", f.Batch().Seq)
	}
}

func TestField_SetOptionsWaitsForNextBatch(t *testing.T) {
	o := quietOptions(lattice.Cube(4))
	o.Joints = JointsMixed
	f, _ := newTestField(t, o, 12)
	f.Tick(summer)

	next := o
	next.Joints = JointsElbow
	next.Bounds = lattice.Cube(2)
	if err := f.SetOptions(next); err != nil {
		t.Fatalf("SetOptions: %v", err)
	}
	f.Tick(summer)
	if f.Batch().Joints != JointsMixed || f.Bounds() != lattice.Cube(4) {
		t.Fatalf("options applied mid-batch: %+v bounds=%v", f.Batch(), f.Bounds())
	}
	f.Clear()
	f.Tick(summer)
	if f.Batch().Joints != JointsElbow || f.Bounds() != lattice.Cube(2) {
		t.Fatalf("options not applied at batch boundary: %+v bounds=%v", f.Batch(), f.Bounds())
	}

	bad := o
	bad.TeapotChance = 2
	if err := f.SetOptions(bad); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestField_RandomRunKeepsInvariants(t *testing.T) {
	o := DefaultOptions()
	o.Bounds = lattice.Cube(2)
	o.StuckResetTicks = 30
	o.Season = Always
	f, rec := newTestField(t, o, 42)

	for i := 0; i < 5000; i++ {
		f.Tick(summer)
		if i%50 == 0 {
			if err := f.Verify(); err != nil {
				t.Fatalf("tick %d: %v", i, err)
			}
		}
	}
	if err := f.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if f.Stats().Batches < 2 {
		t.Fatalf("expected several batches, got %d", f.Stats().Batches)
	}

	// Segments only ever join axis neighbours inside bounds.
	for _, e := range rec.events {
		if e.kind != "segment" {
			continue
		}
		if _, ok := lattice.Between(e.from, e.to); !ok {
			t.Fatalf("segment %v -> %v is not a unit step", e.from, e.to)
		}
		if !o.Bounds.Contains(e.to) {
			t.Fatalf("segment leaves bounds: %v", e.to)
		}
	}
}

func TestField_ExportRestore(t *testing.T) {
	o := DefaultOptions()
	o.Bounds = lattice.Cube(5)
	f, _ := newTestField(t, o, 77)
	for i := 0; i < 400; i++ {
		f.Tick(summer)
	}
	st := f.Export()

	g, _ := newTestField(t, o, 1)
	if err := g.Restore(st); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if g.Batch() != f.Batch() || g.Stats() != f.Stats() {
		t.Fatalf("batch/stats mismatch: %+v vs %+v", g.Batch(), f.Batch())
	}
	fp, gp := f.Pipes(), g.Pipes()
	if len(fp) != len(gp) {
		t.Fatalf("pipes %d vs %d", len(fp), len(gp))
	}
	for i := range fp {
		a, b := fp[i].Path(), gp[i].Path()
		if fp[i].ID() != gp[i].ID() || len(a) != len(b) {
			t.Fatalf("pipe %d mismatch", i)
		}
		for j := range a {
			if a[j] != b[j] {
				t.Fatalf("pipe %d step %d: %v vs %v", i, j, a[j], b[j])
			}
		}
	}
	for _, c := range f.OccupiedCells() {
		want, _ := f.OccupantOf(c)
		if got, ok := g.OccupantOf(c); !ok || got != want {
			t.Fatalf("cell %v: %d,%v want %d", c, got, ok, want)
		}
	}

	joints := 0
	for i := range fp {
		a, b := fp[i].Joints(), gp[i].Joints()
		if len(a) != len(b) {
			t.Fatalf("pipe %d: %d joints vs %d", i, len(a), len(b))
		}
		for j := range a {
			if a[j] != b[j] {
				t.Fatalf("pipe %d joint %d: %+v vs %+v", i, j, a[j], b[j])
			}
		}
		joints += len(a)
	}
	if joints == 0 {
		t.Fatalf("expected joints in the exported field")
	}

	before := g.Export()
	st.Pipes[0].Path = append(st.Pipes[0].Path, lattice.Cell{X: 99})
	if err := g.Restore(st); err == nil {
		t.Fatalf("expected restore to reject a corrupt path")
	}
	after := g.Export()
	if after.Occupancy != before.Occupancy || len(after.Pipes) != len(before.Pipes) ||
		len(after.Pipes[0].Path) != len(before.Pipes[0].Path) || after.Batch != before.Batch {
		t.Fatalf("failed restore left partial state")
	}
	if err := g.Verify(); err != nil {
		t.Fatalf("Verify after failed restore: %v", err)
	}
}

func TestField_RestoreRejectsMisplacedJoint(t *testing.T) {
	f, _ := newTestField(t, quietOptions(lattice.Cube(4)), 1)
	f.SetPolicy(&SequencePolicy{Steps: []lattice.Direction{lattice.DirPosX, lattice.DirPosY}})
	placePipe(f, lattice.Cell{})
	for i := 0; i < 3; i++ {
		f.Tick(summer)
	}
	st := f.Export()
	if len(st.Pipes[0].Joints) == 0 {
		t.Fatalf("expected a joint after a turn")
	}
	st.Pipes[0].Joints[0].Step = 0

	g, _ := newTestField(t, quietOptions(lattice.Cube(4)), 1)
	if err := g.Restore(st); err == nil {
		t.Fatalf("expected restore to reject a joint on the start cell")
	}
}

func TestField_RestoreAtMaxVolume(t *testing.T) {
	o := quietOptions(lattice.Bounds{Max: lattice.Cell{X: 255, Y: 255, Z: 255}})
	o.Multiple = true
	if err := o.Validate(); err != nil {
		t.Fatalf("Validate at cap: %v", err)
	}
	f, _ := newTestField(t, o, 9)
	for i := 0; i < 5; i++ {
		f.Tick(summer)
	}
	g, _ := newTestField(t, o, 2)
	if err := g.Restore(f.Export()); err != nil {
		t.Fatalf("Restore at max volume: %v", err)
	}
	if g.Occupied() != f.Occupied() || len(g.Pipes()) != len(f.Pipes()) {
		t.Fatalf("occupied %d pipes %d, want %d and %d", g.Occupied(), len(g.Pipes()), f.Occupied(), len(f.Pipes()))
	}

	o.Bounds = lattice.Cube(130)
	if err := o.Validate(); err == nil {
		t.Fatalf("expected radius 130 to be rejected")
	}
}

func TestField_SharedStartCellIsTolerated(t *testing.T) {
	o := quietOptions(lattice.Cube(4))
	f, _ := newTestField(t, o, 3)
	f.Tick(summer)
	f.Clear()

	origin := lattice.Cell{}
	first := placePipe(f, origin)
	second := placePipe(f, origin)
	if got, _ := f.OccupantOf(origin); got != second.ID() {
		t.Fatalf("occupant=%d want later pipe %d", got, second.ID())
	}

	for i := 0; i < 200; i++ {
		f.Tick(summer)
		if len(f.Pipes()) == 0 {
			break
		}
		if err := f.Verify(); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if got, _ := f.OccupantOf(origin); got != second.ID() {
		t.Fatalf("occupant=%d want later pipe %d", got, second.ID())
	}
	if first.Len() < 2 && second.Len() < 2 {
		t.Fatalf("neither pipe grew")
	}

	g, _ := newTestField(t, o, 8)
	if err := g.Restore(f.Export()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got, _ := g.OccupantOf(origin); got != second.ID() || len(g.Pipes()) != 2 {
		t.Fatalf("restored occupant=%d pipes=%d", got, len(g.Pipes()))
	}
}
