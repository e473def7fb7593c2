package cec

import "github.com/renholt/crossbar/internal/port"

// Resolve computes the target set for the given snapshot, manual overrides,
// and optional scene config. It is pure: identical inputs yield identical
// output, and it never fails — malformed scene entries are skipped and empty
// configurations degrade to nil/empty categories.
//
// Precedence: a scene config with AutoResolved=false wins outright and
// manual overrides are ignored while it is active. Otherwise targets are
// derived from live routing with overrides applied per category.
func Resolve(snap Snapshot, names Namer, ov Overrides, scene *SceneConfig) TargetSet {
	if scene != nil && !scene.AutoResolved {
		return resolveScene(snap, names, scene)
	}
	return resolveAuto(snap, names, ov)
}

// resolveScene parses the scene's declared target lists. Navigation,
// playback and volume take the first valid entry; the power lists keep every
// valid entry as a separate dispatch target. Playback falls back to the
// resolved navigation target when its own list is empty.
func resolveScene(snap Snapshot, names Namer, scene *SceneConfig) TargetSet {
	var set TargetSet

	if refs := port.ParseList(scene.NavTargets, snap.Inputs, snap.Outputs); len(refs) > 0 {
		set.Navigation = target(refs[0], names)
	}
	if refs := port.ParseList(scene.PlaybackTargets, snap.Inputs, snap.Outputs); len(refs) > 0 {
		set.Playback = target(refs[0], names)
	} else if set.Navigation != nil {
		set.Playback = target(set.Navigation.Port, names)
	}
	if refs := port.ParseList(scene.VolumeTargets, snap.Inputs, snap.Outputs); len(refs) > 0 {
		set.Volume = target(refs[0], names)
	}
	set.PowerOn = targets(port.ParseList(scene.PowerOnTargets, snap.Inputs, snap.Outputs), names)
	set.PowerOff = targets(port.ParseList(scene.PowerOffTargets, snap.Inputs, snap.Outputs), names)
	return set
}

// resolveAuto derives targets from live routing. The primary output is the
// lowest-numbered output with a connected display (output 1 when none
// report connected); the primary input is whatever is routed to it.
func resolveAuto(snap Snapshot, names Namer, ov Overrides) TargetSet {
	primaryOut := 1
	for n := 1; n <= snap.Outputs; n++ {
		if snap.OutState[n].DisplayConnected {
			primaryOut = n
			break
		}
	}
	primaryIn := 1
	if in, ok := snap.Routing[primaryOut]; ok && in >= 1 && in <= snap.Inputs {
		primaryIn = in
	}

	var set TargetSet

	if ref, ok := override(ov.Navigation, snap); ok {
		set.Navigation = target(ref, names)
	} else {
		set.Navigation = target(port.Ref{Kind: port.KindInput, Number: primaryIn}, names)
	}

	if ref, ok := override(ov.Playback, snap); ok {
		set.Playback = target(ref, names)
	} else {
		set.Playback = target(set.Navigation.Port, names)
	}

	if ref, ok := override(ov.Volume, snap); ok {
		set.Volume = target(ref, names)
	} else {
		vol := port.Ref{Kind: port.KindOutput, Number: primaryOut}
		for n := 1; n <= snap.Outputs; n++ {
			if snap.OutState[n].ArcEnabled {
				vol = port.Ref{Kind: port.KindOutput, Number: n}
				break
			}
		}
		set.Volume = target(vol, names)
	}

	// No scene config active, so no declared power targets. Dispatch falls
	// back to the navigation/volume pair for power commands.
	set.PowerOn = []Target{}
	set.PowerOff = []Target{}
	return set
}

// override returns a manual pin when it is set and within the matrix
// dimensions. Out-of-range pins are rejected here, not silently clamped.
func override(ref *port.Ref, snap Snapshot) (port.Ref, bool) {
	if ref == nil || !ref.InRange(snap.Inputs, snap.Outputs) {
		return port.Ref{}, false
	}
	return *ref, true
}

func target(ref port.Ref, names Namer) *Target {
	t := Target{Port: ref}
	switch ref.Kind {
	case port.KindInput:
		t.DisplayName = names.InputName(ref.Number)
	case port.KindOutput:
		t.DisplayName = names.OutputName(ref.Number)
	}
	return &t
}

func targets(refs []port.Ref, names Namer) []Target {
	out := make([]Target, 0, len(refs))
	for _, ref := range refs {
		out = append(out, *target(ref, names))
	}
	return out
}

// ConfigFromTargets snapshots a resolved target set into a scene config
// using the wire encoding, used by scene auto-resolve.
func ConfigFromTargets(set TargetSet) SceneConfig {
	cfg := SceneConfig{
		NavTargets:      []string{},
		PlaybackTargets: []string{},
		VolumeTargets:   []string{},
		PowerOnTargets:  []string{},
		PowerOffTargets: []string{},
		AutoResolved:    true,
	}
	if set.Navigation != nil {
		cfg.NavTargets = []string{set.Navigation.Port.String()}
	}
	if set.Playback != nil {
		cfg.PlaybackTargets = []string{set.Playback.Port.String()}
	}
	if set.Volume != nil {
		cfg.VolumeTargets = []string{set.Volume.Port.String()}
	}
	for _, t := range set.PowerOn {
		cfg.PowerOnTargets = append(cfg.PowerOnTargets, t.Port.String())
	}
	for _, t := range set.PowerOff {
		cfg.PowerOffTargets = append(cfg.PowerOffTargets, t.Port.String())
	}
	return cfg
}
