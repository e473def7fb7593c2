package cec

import (
	"context"
	"fmt"
	"sync"

	"github.com/renholt/crossbar/internal/port"
)

// Transport sends a single CEC command to a physical port on the matrix.
type Transport interface {
	SendCEC(ctx context.Context, kind port.Kind, number int, command string) error
}

// Status classifies the outcome of a dispatch across all its targets.
type Status string

const (
	StatusAllSucceeded   Status = "all_succeeded"
	StatusPartialFailure Status = "partial_failure"
	StatusAllFailed      Status = "all_failed"
	StatusNoTarget       Status = "no_target"
)

// Outcome records the result of one transport call.
type Outcome struct {
	Target Target
	Err    error
}

// DispatchResult aggregates per-target outcomes. Transport-level errors are
// captured here, never raised; callers must check Status before assuming a
// command was sent anywhere.
type DispatchResult struct {
	Status    Status
	Succeeded int
	Failed    int
	Outcomes  []Outcome
}

// Dispatcher maps a (category, command) pair to its resolved target(s) and
// drives the transport.
type Dispatcher struct {
	transport Transport
}

// NewDispatcher creates a dispatcher over the given transport.
func NewDispatcher(t Transport) *Dispatcher {
	return &Dispatcher{transport: t}
}

// Dispatch sends command to every target the set resolves for the category.
// All transport calls run concurrently and are waited to completion: a slow
// or failing target never blocks or aborts the others. An error is returned
// only for caller mistakes (unknown category or command); runtime failures
// are folded into the result.
func (d *Dispatcher) Dispatch(ctx context.Context, category Category, command string, set TargetSet) (DispatchResult, error) {
	if _, ok := vocabulary[category]; !ok {
		return DispatchResult{}, fmt.Errorf("cec: unknown category %q", category)
	}
	if !ValidCommand(category, command) {
		return DispatchResult{}, fmt.Errorf("cec: command %q not in %s vocabulary", command, category)
	}

	targets := targetsFor(category, command, set)
	if len(targets) == 0 {
		return DispatchResult{Status: StatusNoTarget}, nil
	}

	outcomes := make([]Outcome, len(targets))
	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func(i int, t Target) {
			defer wg.Done()
			outcomes[i] = Outcome{
				Target: t,
				Err:    d.transport.SendCEC(ctx, t.Port.Kind, t.Port.Number, command),
			}
		}(i, t)
	}
	wg.Wait()

	res := DispatchResult{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Err != nil {
			res.Failed++
		} else {
			res.Succeeded++
		}
	}
	switch {
	case res.Failed == 0:
		res.Status = StatusAllSucceeded
	case res.Succeeded == 0:
		res.Status = StatusAllFailed
	default:
		res.Status = StatusPartialFailure
	}
	return res, nil
}

// targetsFor selects the dispatch destinations for a category. Power
// commands use the scene-declared lists; when both are empty the fallback
// set is the navigation and volume targets deduplicated by port, so
// powering on hits both the source device and the display/audio sink.
func targetsFor(category Category, command string, set TargetSet) []Target {
	switch category {
	case CategoryNavigation:
		return single(set.Navigation)
	case CategoryPlayback:
		return single(set.Playback)
	case CategoryVolume:
		return single(set.Volume)
	case CategoryPower:
		list := set.PowerOn
		if command == CmdPowerOff {
			list = set.PowerOff
		}
		if len(list) > 0 {
			return list
		}
		if len(set.PowerOn) == 0 && len(set.PowerOff) == 0 {
			return dedupe(single(set.Navigation), single(set.Volume))
		}
		return nil
	}
	return nil
}

func single(t *Target) []Target {
	if t == nil {
		return nil
	}
	return []Target{*t}
}

// dedupe concatenates target lists keeping first occurrence per port,
// order-stable.
func dedupe(lists ...[]Target) []Target {
	seen := make(map[port.Ref]struct{})
	var out []Target
	for _, list := range lists {
		for _, t := range list {
			if _, ok := seen[t.Port]; ok {
				continue
			}
			seen[t.Port] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
