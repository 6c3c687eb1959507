// Package stream names the physical data streams of a multi-sensor depth
// camera and maps vendor stream identifiers onto them.
package stream

import (
	"fmt"
	"strings"
)

// Kind identifies one physical stream category. Each kind has its own
// cadence and its own admission state.
type Kind int

const (
	Motion Kind = iota
	Fisheye
	Color
	Infrared1
	Infrared2
	Depth
)

// NumKinds is the number of stream kinds; valid kinds are 0..NumKinds-1.
const NumKinds = 6

// All lists every kind in declaration order.
var All = []Kind{Motion, Fisheye, Color, Infrared1, Infrared2, Depth}

var kindNames = [NumKinds]string{
	Motion:    "motion",
	Fisheye:   "fisheye",
	Color:     "color",
	Infrared1: "infrared1",
	Infrared2: "infrared2",
	Depth:     "depth",
}

// Publication topics, one per kind, plus the derived pointcloud topic.
const (
	TopicImu        = "imu"
	TopicFisheye    = "fisheye"
	TopicColor      = "color"
	TopicInfrared   = "infrared"
	TopicInfrared2  = "infrared_2"
	TopicDepth      = "depth"
	TopicPointcloud = "pointcloud"
)

var kindTopics = [NumKinds]string{
	Motion:    TopicImu,
	Fisheye:   TopicFisheye,
	Color:     TopicColor,
	Infrared1: TopicInfrared,
	Infrared2: TopicInfrared2,
	Depth:     TopicDepth,
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= 0 && int(k) < NumKinds
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Topic returns the publication topic for k.
func (k Kind) Topic() string {
	if !k.Valid() {
		return ""
	}
	return kindTopics[k]
}

// MarshalText encodes the kind by name so JSON maps keyed by Kind are readable.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid stream kind %d", int(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind accepts a kind name or a publication topic, case-insensitively.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i := 0; i < NumKinds; i++ {
		if kindNames[i] == name || kindTopics[i] == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stream kind %q", s)
}

// ClassifyStreamID maps a vendor SDK stream identifier to a Kind. Frames
// from the two infrared imagers are independent kinds because their
// arrival is not guaranteed to interleave 1:1.
func ClassifyStreamID(id string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case "fisheye":
		return Fisheye, true
	case "color", "rgb":
		return Color, true
	case "infrared", "infrared1", "ir", "ir1":
		return Infrared1, true
	case "infrared2", "infrared_2", "ir2":
		return Infrared2, true
	case "depth":
		return Depth, true
	}
	return 0, false
}
