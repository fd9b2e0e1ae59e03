package observerproto

// Version is the observer protocol version.
const Version = "1.0"

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// Event kinds carried in TickMsg.Events.
const (
	EventReset   = "RESET"
	EventSpawn   = "SPAWN"
	EventSegment = "SEGMENT"
	EventJoint   = "JOINT"
)

// Event is one growth event. Fields are present per kind:
// RESET: batch; SPAWN: pipe, at, style; SEGMENT: pipe, at, to; JOINT: pipe, at, joint.
type Event struct {
	Kind  string  `json:"kind"`
	Pipe  uint32  `json:"pipe,omitempty"`
	At    *[3]int `json:"at,omitempty"`
	To    *[3]int `json:"to,omitempty"`
	Joint string  `json:"joint,omitempty"`
	Style *Style  `json:"style,omitempty"`
	Batch *Batch  `json:"batch,omitempty"`
}

type Style struct {
	Texture string `json:"texture,omitempty"`
	Color   uint32 `json:"color"`
}

type Batch struct {
	Seq             uint64  `json:"seq"`
	Joints          string  `json:"joints"`
	BallJointChance float64 `json:"ball_joint_chance"`
	TeapotChance    float64 `json:"teapot_chance"`
	Texture         string  `json:"texture,omitempty"`
	Festive         bool    `json:"festive,omitempty"`
	Pipes           int     `json:"pipes"`
}

// Server -> Client. Sent after every tick that produced events.
type TickMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Tick            uint64  `json:"tick"`
	Events          []Event `json:"events"`
}

// Server -> Client. Full field state, sent after SUBSCRIBE and again after a dropped TICK.
// Also served by GET /v1/observer/bootstrap. Tick is the next tick to run.
type StateMsg struct {
	ProtocolVersion string     `json:"protocol_version"`
	Type            string     `json:"type"`
	WorldID         string     `json:"world_id"`
	RunID           string     `json:"run_id"`
	Tick            uint64     `json:"tick"`
	TickRateHz      int        `json:"tick_rate_hz"`
	Drawing         bool       `json:"drawing"`
	Bounds          Bounds     `json:"bounds"`
	Batch           Batch      `json:"batch"`
	Pipes           []PipeInfo `json:"pipes"`
	Occupancy       Occupancy  `json:"occupancy"`
}

type Bounds struct {
	Min [3]int `json:"min"`
	Max [3]int `json:"max"`
}

type PipeInfo struct {
	ID    uint32   `json:"id"`
	Style Style    `json:"style"`
	Path  [][3]int `json:"path"`
}

// Occupancy is the x-fastest grid over Bounds; 0 is empty, n is Pipes[n-1].
type Occupancy struct {
	Encoding string `json:"encoding"`
	Data     string `json:"data"`
}
