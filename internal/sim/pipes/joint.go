package pipes

import "fmt"

// JointKind is the ornament placed where a pipe changes direction.
type JointKind uint8

const (
	JointNone JointKind = iota
	JointBall
	JointElbow
	JointTeapot
)

func (k JointKind) String() string {
	switch k {
	case JointNone:
		return "NONE"
	case JointBall:
		return "BALL"
	case JointElbow:
		return "ELBOW"
	case JointTeapot:
		return "TEAPOT"
	default:
		return fmt.Sprintf("JointKind(%d)", uint8(k))
	}
}

func ParseJointKind(s string) (JointKind, error) {
	switch s {
	case "NONE":
		return JointNone, nil
	case "BALL":
		return JointBall, nil
	case "ELBOW":
		return JointElbow, nil
	case "TEAPOT":
		return JointTeapot, nil
	}
	return JointNone, fmt.Errorf("unknown joint kind %q", s)
}

// JointClassifier picks the ornament for a direction change.
type JointClassifier interface {
	Classify(ballChance, teapotChance float64) JointKind
}

// WeightedJoints tests teapot, then ball, then falls back to elbow, each with an
// independent draw. The effective ball probability is ball*(1-teapot).
type WeightedJoints struct {
	Rand Rand
}

func (j WeightedJoints) Classify(ballChance, teapotChance float64) JointKind {
	if chance(j.Rand, teapotChance) {
		return JointTeapot
	}
	if chance(j.Rand, ballChance) {
		return JointBall
	}
	return JointElbow
}
