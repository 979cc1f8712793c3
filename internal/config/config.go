// Package config holds the environment profiles and maneuver trigger-distance tables
// the scenarios are parameterised with.
//
// Lookups never fail: an unknown profile or parameter combination falls back to the
// documented default and logs a warning.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	log "github.com/sirupsen/logrus"
)

// DefaultProfile is the environment used when none is named.
const DefaultProfile = "awsim"

// SwerveBenchProfile is the geometry the reference swerve sweep is defined against.
const SwerveBenchProfile = "swerve_bench"

// Profile describes the road and vehicle geometry of one simulator environment.
type Profile struct {
	Name        string  `json:"name"`
	LaneWidth   float64 `json:"lane_width"`   // m
	MedianStrip float64 `json:"median_strip"` // m, between the two directions of travel
	EgoLength   float64 `json:"ego_length"`   // m
	EgoWidth    float64 `json:"ego_width"`    // m
	NPCLength   float64 `json:"npc_length"`   // m
	NPCWidth    float64 `json:"npc_width"`    // m
}

// Validate reports a profile whose geometry cannot be simulated.
func (p Profile) Validate() error {
	if p.LaneWidth <= 0 || p.EgoLength <= 0 || p.EgoWidth <= 0 || p.NPCLength <= 0 || p.NPCWidth <= 0 {
		return fmt.Errorf("profile %q: lane and vehicle dimensions must be positive", p.Name)
	}
	if p.MedianStrip < 0 {
		return fmt.Errorf("profile %q: negative median strip", p.Name)
	}
	return nil
}

// Profiles is a set of environment profiles keyed by name.
type Profiles map[string]Profile

// Builtin returns the reference environments.
func Builtin() Profiles {
	return Profiles{
		"carla": {
			Name: "carla", LaneWidth: 3.5, MedianStrip: 0.2,
			EgoLength: 4.5, EgoWidth: 2.0, NPCLength: 3.7, NPCWidth: 1.8,
		},
		"carla_town07": {
			Name: "carla_town07", LaneWidth: 3.2, MedianStrip: 0.0,
			EgoLength: 4.5, EgoWidth: 2.0, NPCLength: 3.7, NPCWidth: 1.8,
		},
		SwerveBenchProfile: {
			Name: SwerveBenchProfile, LaneWidth: 3.5, MedianStrip: 0.0,
			EgoLength: 4.8, EgoWidth: 2.0, NPCLength: 4.0, NPCWidth: 1.9,
		},
		"awsim": {
			Name: "awsim", LaneWidth: 3.3, MedianStrip: 1.0,
			EgoLength: 4.9, EgoWidth: 2.2, NPCLength: 4.0, NPCWidth: 1.9,
		},
	}
}

// Lookup returns the named profile. An empty name selects DefaultProfile; an unknown
// one falls back to it with a warning.
func (ps Profiles) Lookup(name string) Profile {
	if name == "" {
		name = DefaultProfile
	}
	if p, ok := ps[name]; ok {
		return p
	}
	log.WithFields(log.Fields{
		"profile":  name,
		"fallback": DefaultProfile,
	}).Warn("config: unknown environment profile")
	if p, ok := ps[DefaultProfile]; ok {
		return p
	}
	return Builtin()[DefaultProfile]
}

// Names returns the profile names in sorted order.
func (ps Profiles) Names() []string {
	names := make([]string, 0, len(ps))
	for n := range ps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LoadFile reads a JSON object of profiles keyed by name and merges it over the
// built-in set. Fields omitted in the file keep the built-in value for known names.
func LoadFile(path string) (Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profiles: %w", err)
	}
	return Parse(data)
}

// Parse merges the JSON-encoded profiles in data over the built-in set.
func Parse(data []byte) (Profiles, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid profiles JSON: %w", err)
	}

	ps := Builtin()
	for name, msg := range raw {
		p := ps[name]
		if err := json.Unmarshal(msg, &p); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		p.Name = name
		if err := p.Validate(); err != nil {
			return nil, err
		}
		ps[name] = p
	}
	return ps, nil
}
