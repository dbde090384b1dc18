package ada

import "strings"

// Capability is one optional behaviour a connected instrument supports.
// The set is discovered by protocol probing at handshake time, never assumed
// from a previous session: firmware or even the attached model may have
// changed between connects.
type Capability uint32

const (
	CanSlew Capability = 1 << iota
	CanSync
	CanAbort
	CanPark
	CanParkNatively
	CanUnparkNatively
	CanGuide
	CanGuideRate
	CanFindHome
	CanGoHome
	CanSetHome
	CanTrackMode
	CanTrackRate
	CanControlTrack
	HasPierSide
	HasDustCap
	HasLightBox
	HasDimmableLight
	HasHeater
)

var capabilityNames = map[Capability]string{
	CanSlew:           "CanSlew",
	CanSync:           "CanSync",
	CanAbort:          "CanAbort",
	CanPark:           "CanPark",
	CanParkNatively:   "CanParkNatively",
	CanUnparkNatively: "CanUnparkNatively",
	CanGuide:          "CanGuide",
	CanGuideRate:      "CanGuideRate",
	CanFindHome:       "CanFindHome",
	CanGoHome:         "CanGoHome",
	CanSetHome:        "CanSetHome",
	CanTrackMode:      "CanTrackMode",
	CanTrackRate:      "CanTrackRate",
	CanControlTrack:   "CanControlTrack",
	HasPierSide:       "HasPierSide",
	HasDustCap:        "HasDustCap",
	HasLightBox:       "HasLightBox",
	HasDimmableLight:  "HasDimmableLight",
	HasHeater:         "HasHeater",
}

// CapabilityByName resolves a capability from its canonical name, as used
// by rule files. The second return is false for unknown names.
func CapabilityByName(name string) (Capability, bool) {
	for c, n := range capabilityNames {
		if n == name {
			return c, true
		}
	}

	return 0, false
}

func (c Capability) String() string {
	if n, ok := capabilityNames[c]; ok {
		return n
	}

	return "Unknown"
}

// CapabilitySet is the session scoped bitmask of supported behaviours.
type CapabilitySet uint32

func NewCapabilitySet(caps ...Capability) CapabilitySet {
	var s CapabilitySet
	return s.With(caps...)
}

func (s CapabilitySet) Has(c Capability) bool {
	return s&CapabilitySet(c) != 0
}

func (s CapabilitySet) With(caps ...Capability) CapabilitySet {
	for _, c := range caps {
		s |= CapabilitySet(c)
	}

	return s
}

func (s CapabilitySet) Without(caps ...Capability) CapabilitySet {
	for _, c := range caps {
		s &^= CapabilitySet(c)
	}

	return s
}

// List returns the capabilities present in the set, lowest bit first.
func (s CapabilitySet) List() []Capability {
	var caps []Capability

	for c := Capability(1); c != 0 && c <= HasHeater; c <<= 1 {
		if s.Has(c) {
			caps = append(caps, c)
		}
	}

	return caps
}

func (s CapabilitySet) String() string {
	var names []string

	for c := Capability(1); c != 0 && c <= HasHeater; c <<= 1 {
		if s.Has(c) {
			names = append(names, c.String())
		}
	}

	return strings.Join(names, "|")
}
