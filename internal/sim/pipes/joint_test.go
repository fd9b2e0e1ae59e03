package pipes

import "testing"

func TestWeightedJoints_TeapotWinsWhenCertain(t *testing.T) {
	j := WeightedJoints{Rand: seeded(1)}
	for i := 0; i < 1000; i++ {
		for _, ball := range []float64{0, 0.5, 1} {
			if got := j.Classify(ball, 1); got != JointTeapot {
				t.Fatalf("ball=%v: got %v want TEAPOT", ball, got)
			}
		}
	}
}

func TestWeightedJoints_BallWhenNoTeapot(t *testing.T) {
	j := WeightedJoints{Rand: seeded(2)}
	for i := 0; i < 1000; i++ {
		if got := j.Classify(1, 0); got != JointBall {
			t.Fatalf("got %v want BALL", got)
		}
	}
}

func TestWeightedJoints_ElbowFallback(t *testing.T) {
	j := WeightedJoints{Rand: seeded(3)}
	for i := 0; i < 1000; i++ {
		if got := j.Classify(0, 0); got != JointElbow {
			t.Fatalf("got %v want ELBOW", got)
		}
	}
}

func TestWeightedJoints_TestsTeapotBeforeBall(t *testing.T) {
	// First draw fails the teapot test, second passes the ball test.
	r := &scriptedRand{floats: []float64{0.5, 0.1}}
	if got := (WeightedJoints{Rand: r}).Classify(0.2, 0.4); got != JointBall {
		t.Fatalf("got %v want BALL", got)
	}
	if r.i != 2 {
		t.Fatalf("expected 2 draws, got %d", r.i)
	}

	// A passing teapot draw short-circuits the ball test.
	r = &scriptedRand{floats: []float64{0.1, 0.1}}
	if got := (WeightedJoints{Rand: r}).Classify(0.9, 0.4); got != JointTeapot {
		t.Fatalf("got %v want TEAPOT", got)
	}
	if r.i != 1 {
		t.Fatalf("expected 1 draw, got %d", r.i)
	}
}

func TestJointKind_ParseString(t *testing.T) {
	for _, k := range []JointKind{JointNone, JointBall, JointElbow, JointTeapot} {
		got, err := ParseJointKind(k.String())
		if err != nil || got != k {
			t.Fatalf("ParseJointKind(%q)=%v,%v", k.String(), got, err)
		}
	}
	if _, err := ParseJointKind("SPOUT"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
