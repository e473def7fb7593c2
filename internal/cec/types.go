// Package cec implements the CEC target-resolution and command-dispatch
// engine for the matrix: deriving which physical port should receive which
// category of command from live routing state, manual overrides, and
// per-scene configuration.
package cec

import (
	"fmt"
	"sort"

	"github.com/renholt/crossbar/internal/port"
)

// Category groups CEC commands by the kind of device they address.
type Category string

const (
	CategoryPower      Category = "power"
	CategoryNavigation Category = "navigation"
	CategoryPlayback   Category = "playback"
	CategoryVolume     Category = "volume"
)

// Power commands select between the power-on and power-off target lists.
const (
	CmdPowerOn  = "power_on"
	CmdPowerOff = "power_off"
)

// vocabulary is the full command set per category. Dispatch validates
// against this table so command names live in exactly one place.
var vocabulary = map[Category][]string{
	CategoryPower:      {CmdPowerOn, CmdPowerOff},
	CategoryNavigation: {"up", "down", "left", "right", "select", "back", "menu", "home"},
	CategoryPlayback:   {"play", "pause", "stop", "rewind", "fast_forward", "next", "previous"},
	CategoryVolume:     {"volume_up", "volume_down", "mute"},
}

// ParseCategory validates a raw category string.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if _, ok := vocabulary[c]; !ok {
		return "", fmt.Errorf("cec: unknown category %q", s)
	}
	return c, nil
}

// ValidCommand reports whether command belongs to the category's vocabulary.
func ValidCommand(c Category, command string) bool {
	for _, cmd := range vocabulary[c] {
		if cmd == command {
			return true
		}
	}
	return false
}

// Commands returns the command vocabulary for a category.
func Commands(c Category) []string {
	cmds := vocabulary[c]
	out := make([]string, len(cmds))
	copy(out, cmds)
	return out
}

// Categories returns all categories in stable order.
func Categories() []Category {
	out := make([]Category, 0, len(vocabulary))
	for c := range vocabulary {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Target is a resolved dispatch destination. DisplayName is looked up from
// the naming store at resolution time and is never cached across renames.
type Target struct {
	Port        port.Ref `json:"port"`
	DisplayName string   `json:"display_name"`
}

// TargetSet is the output of a full resolution pass. Navigation, Playback
// and Volume are nil when no target is configured for the category; the
// power lists are empty unless a scene config supplies them explicitly.
type TargetSet struct {
	Navigation *Target  `json:"navigation"`
	Playback   *Target  `json:"playback"`
	Volume     *Target  `json:"volume"`
	PowerOn    []Target `json:"power_on"`
	PowerOff   []Target `json:"power_off"`
}

// Overrides holds per-category manual target pins. A nil entry means the
// resolver decides automatically. Power has no override: its targets come
// from scene config or the dispatch-time fallback set.
type Overrides struct {
	Navigation *port.Ref
	Playback   *port.Ref
	Volume     *port.Ref
}

// SceneConfig is the stored per-scene CEC configuration. Target strings use
// the "<input|output>_<n>" wire encoding and are parsed into port.Ref at
// resolution time; malformed entries are dropped, never fatal.
type SceneConfig struct {
	NavTargets      []string `json:"nav_targets"`
	PlaybackTargets []string `json:"playback_targets"`
	VolumeTargets   []string `json:"volume_targets"`
	PowerOnTargets  []string `json:"power_on_targets"`
	PowerOffTargets []string `json:"power_off_targets"`
	AutoResolved    bool     `json:"auto_resolved"`
}

// OutputState is the per-output metadata relevant to resolution.
type OutputState struct {
	DisplayConnected bool `json:"display_connected"`
	ArcEnabled       bool `json:"arc_enabled"`
}

// InputState is the per-input metadata reported by the unit.
type InputState struct {
	SignalDetected bool `json:"signal_detected"`
}

// Snapshot is a read-only view of current routing and port metadata,
// supplied fresh by the state store on every change notification.
type Snapshot struct {
	Inputs   int
	Outputs  int
	Routing  map[int]int // output number -> input number
	OutState map[int]OutputState
	InState  map[int]InputState
}

// Namer resolves live display names for ports.
type Namer interface {
	InputName(n int) string
	OutputName(n int) string
}
