// Package trace decodes recorded ground-truth runs: a timestamped sequence of ego and
// NPC kinematics, the vehicles' bounding boxes and free-form scenario metadata.
package trace

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/geom"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/vehicle"
)

// Names under which the recorder stores the two bounding boxes.
const (
	EgoName = "ego"
	NPCName = "npc1"
)

var (
	// ErrNotFound is returned when a named vehicle, metadata key or timestamp is absent.
	ErrNotFound = errors.New("not found")

	// ErrMalformed is returned when a trace violates its structural invariants.
	ErrMalformed = errors.New("malformed trace")
)

// Vector3 is a recorder vector. Rotations are in degrees.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// XY drops the vertical component.
func (v Vector3) XY() geom.Vec2 { return geom.V(v.X, v.Y) }

// Norm is the 3D magnitude.
func (v Vector3) Norm() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

type Pose struct {
	Position Vector3 `json:"position"`
	Rotation Vector3 `json:"rotation"` // roll, pitch, yaw in degrees
}

type Twist struct {
	Linear Vector3 `json:"linear"` // m/s
}

// Kinematic is the pose and velocity of one vehicle at one tick.
type Kinematic struct {
	Name  string `json:"name,omitempty"`
	Pose  Pose   `json:"pose"`
	Twist Twist  `json:"twist"`
}

// Speed is the magnitude of the recorded linear velocity.
func (k Kinematic) Speed() float64 { return k.Twist.Linear.Norm() }

// Heading is the yaw in radians.
func (k Kinematic) Heading() float64 { return k.Pose.Rotation.Z * math.Pi / 180 }

// Vehicle places a vehicle with bounding box sz at this pose. The recorded position is
// the vehicle's reference point and the box centre is offset from it in the body frame.
func (k Kinematic) Vehicle(sz Size) vehicle.Vehicle {
	return vehicle.Vehicle{
		Position:     k.Pose.Position.XY(),
		Heading:      k.Heading(),
		Velocity:     k.Twist.Linear.XY(),
		Length:       sz.Size.X,
		Width:        sz.Size.Y,
		CenterOffset: sz.Center.XY(),
	}
}

// Tick is a single recorded sample.
type Tick struct {
	Timestamp float64     `json:"timestamp"` // s
	Ego       *Kinematic  `json:"groundtruth_ego"`
	Vehicles  []Kinematic `json:"groundtruth_vehicles"`
}

// NPC returns the first non-ego vehicle. Ticks from a validated trace always have one.
func (t Tick) NPC() Kinematic { return t.Vehicles[0] }

// Size is a recorded bounding box: its centre relative to the vehicle reference point
// and its full extent.
type Size struct {
	Name   string  `json:"name"`
	Center Vector3 `json:"center"`
	Size   Vector3 `json:"size"` // x = length, y = width, z = height
}

// Sizes maps a vehicle name to its bounding box.
type Sizes map[string]Size

// UnmarshalJSON accepts both the {"vehicle_sizes": [...]} object and a bare list of
// boxes, as written by different recorder versions.
func (s *Sizes) UnmarshalJSON(data []byte) error {
	var list []Size
	if err := json.Unmarshal(data, &list); err != nil {
		var wrapped struct {
			VehicleSizes []Size `json:"vehicle_sizes"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return errors.Wrap(err, "groundtruth_size")
		}
		list = wrapped.VehicleSizes
	}

	*s = make(Sizes, len(list))
	for _, sz := range list {
		(*s)[sz.Name] = sz
	}
	return nil
}

// MarshalJSON writes the object form with boxes ordered by name.
func (s Sizes) MarshalJSON() ([]byte, error) {
	list := make([]Size, 0, len(s))
	for _, sz := range s {
		list = append(list, sz)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return json.Marshal(struct {
		VehicleSizes []Size `json:"vehicle_sizes"`
	}{list})
}

// Trace is a decoded recording.
type Trace struct {
	Name     string                     `json:"-"` // file name, for error context
	Ticks    []Tick                     `json:"groundtruth_kinematic"`
	Sizes    Sizes                      `json:"groundtruth_size"`
	Metadata map[string]json.RawMessage `json:"metadata"`
}

// Load reads and validates the trace at path.
func Load(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening trace")
	}
	defer f.Close()
	return Decode(f, filepath.Base(path))
}

// Decode reads and validates a trace; name identifies it in errors.
func Decode(r io.Reader, name string) (*Trace, error) {
	var tr Trace
	if err := json.NewDecoder(r).Decode(&tr); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "%s: %v", name, err)
	}
	tr.Name = name
	if err := tr.Validate(); err != nil {
		return nil, err
	}
	return &tr, nil
}

// Validate checks that every tick carries both vehicles and that timestamps strictly
// increase.
func (t *Trace) Validate() error {
	if len(t.Ticks) == 0 {
		return errors.Wrapf(ErrMalformed, "%s: no groundtruth_kinematic ticks", t.Name)
	}
	prev := math.Inf(-1)
	for i, tick := range t.Ticks {
		switch {
		case tick.Ego == nil:
			return errors.Wrapf(ErrMalformed, "%s: tick %d (t=%.3f): missing groundtruth_ego", t.Name, i, tick.Timestamp)
		case len(tick.Vehicles) == 0:
			return errors.Wrapf(ErrMalformed, "%s: tick %d (t=%.3f): missing groundtruth_vehicles", t.Name, i, tick.Timestamp)
		case tick.Timestamp <= prev:
			return errors.Wrapf(ErrMalformed, "%s: tick %d (t=%.3f): timestamp not after %.3f", t.Name, i, tick.Timestamp, prev)
		}
		prev = tick.Timestamp
	}
	return nil
}

// Size returns the bounding box recorded for name.
func (t *Trace) Size(name string) (Size, error) {
	sz, ok := t.Sizes[name]
	if !ok {
		return Size{}, errors.Wrapf(ErrNotFound, "%s: vehicle size %q", t.Name, name)
	}
	return sz, nil
}

// Point decodes the metadata entry key as a position.
func (t *Trace) Point(key string) (geom.Vec2, error) {
	raw, ok := t.Metadata[key]
	if !ok {
		return geom.Vec2{}, errors.Wrapf(ErrNotFound, "%s: metadata %q", t.Name, key)
	}
	var v Vector3
	if err := json.Unmarshal(raw, &v); err != nil {
		return geom.Vec2{}, errors.Wrapf(ErrMalformed, "%s: metadata %q: %v", t.Name, key, err)
	}
	return v.XY(), nil
}

// HasMetadata reports whether key is present in the metadata.
func (t *Trace) HasMetadata(key string) bool {
	_, ok := t.Metadata[key]
	return ok
}

// At returns the tick recorded exactly at ts.
func (t *Trace) At(ts float64) (Tick, error) {
	for _, tick := range t.Ticks {
		if tick.Timestamp == ts {
			return tick, nil
		}
	}
	return Tick{}, errors.Wrapf(ErrNotFound, "%s: no tick at t=%.3f", t.Name, ts)
}

// Pair holds the ego and NPC bounding boxes of a trace.
type Pair struct {
	Ego, NPC Size
}

// Boxes looks up the ego and NPC bounding boxes.
func (t *Trace) Boxes() (Pair, error) {
	ego, err := t.Size(EgoName)
	if err != nil {
		return Pair{}, err
	}
	npc, err := t.Size(NPCName)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Ego: ego, NPC: npc}, nil
}

// Vehicles places both vehicles at tick.
func (p Pair) Vehicles(tick Tick) (ego, npc vehicle.Vehicle) {
	return tick.Ego.Vehicle(p.Ego), tick.NPC().Vehicle(p.NPC)
}
