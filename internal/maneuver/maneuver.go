package maneuver

import (
	"encoding/json"
	"fmt"

	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/geom"
)

// Kind is the JSON discriminator of a maneuver.
type Kind string

const (
	KindSwerve Kind = "swerve"
	KindUTurn  Kind = "uturn"
)

// Maneuver is the contract every NPC trajectory controller satisfies. Implementations
// carry their own per-run state and must not be shared between simulations.
type Maneuver interface {
	Kind() Kind

	// ReferenceOffset is the body-frame offset from the point the controller maintains
	// as the NPC position to the footprint centre.
	ReferenceOffset() geom.Vec2

	// Trigger generates the maneuver's waypoints from the NPC's current pose. It reports
	// false when the parameters are degenerate; the NPC then keeps driving straight.
	Trigger(npc *NPC) bool

	// Step advances a triggered NPC by dt seconds.
	Step(npc *NPC, dt float64)
}

// Advance moves the NPC by dt seconds: straight ahead until the maneuver is triggered,
// under the maneuver's control afterwards.
func Advance(npc *NPC, m Maneuver, dt float64) {
	if npc.Cruise <= 0 {
		return
	}
	if !npc.Triggered || len(npc.Waypoints) == 0 {
		npc.driveStraight(npc.Cruise * dt)
		npc.syncVelocity()
		return
	}
	m.Step(npc, dt)
	npc.syncVelocity()
}

// Start triggers m on npc once. It is a no-op on an already triggered NPC.
func Start(npc *NPC, m Maneuver) {
	if npc.Triggered {
		return
	}
	npc.Triggered = true
	if !m.Trigger(npc) {
		npc.Waypoints = nil
	}
}

// Spec is a JSON-decodable maneuver description: exactly one of Swerve or UTurn is set.
type Spec struct {
	Swerve *SwerveParams
	UTurn  *UTurnParams
}

// kindDisc is the minimum JSON structure needed to read the maneuver discriminator.
type kindDisc struct {
	Type Kind `json:"type"`
}

// UnmarshalJSON implements json.Unmarshaler for Spec. The object must contain a "type"
// discriminator selecting the concrete parameter set; the remaining keys are decoded
// into it.
//
// Supported types:
//   - "swerve": lateral swerve into the ego lane and back.
//   - "uturn":  circular-arc U-turn across the ego's path.
func (s *Spec) UnmarshalJSON(data []byte) error {
	var disc kindDisc
	if err := json.Unmarshal(data, &disc); err != nil {
		return fmt.Errorf("reading maneuver type: %w", err)
	}

	switch disc.Type {
	case KindSwerve:
		p := DefaultSwerveParams()
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("parsing swerve maneuver: %w", err)
		}
		*s = Spec{Swerve: &p}
	case KindUTurn:
		p := DefaultUTurnParams()
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("parsing uturn maneuver: %w", err)
		}
		*s = Spec{UTurn: &p}
	case "":
		return fmt.Errorf("maneuver: missing \"type\" field")
	default:
		return fmt.Errorf("maneuver: unknown type %q", disc.Type)
	}
	return nil
}

// MarshalJSON writes the active parameter set with its discriminator.
func (s Spec) MarshalJSON() ([]byte, error) {
	switch {
	case s.Swerve != nil:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			SwerveParams
		}{KindSwerve, *s.Swerve})
	case s.UTurn != nil:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			UTurnParams
		}{KindUTurn, *s.UTurn})
	default:
		return nil, fmt.Errorf("maneuver: empty spec")
	}
}

// Kind returns the discriminator of the active parameter set, or "" if none is set.
func (s Spec) Kind() Kind {
	switch {
	case s.Swerve != nil:
		return KindSwerve
	case s.UTurn != nil:
		return KindUTurn
	default:
		return ""
	}
}
