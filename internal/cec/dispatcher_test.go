package cec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/renholt/crossbar/internal/port"
)

// fakeTransport records sends and fails ports listed in failPorts.
type fakeTransport struct {
	mu        sync.Mutex
	sent      []string
	failPorts map[string]error
}

func (f *fakeTransport) SendCEC(_ context.Context, kind port.Kind, number int, command string) error {
	key := fmt.Sprintf("%s_%d", kind, number)
	f.mu.Lock()
	f.sent = append(f.sent, key+":"+command)
	f.mu.Unlock()
	if err, ok := f.failPorts[key]; ok {
		return err
	}
	return nil
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func targetFor(kind port.Kind, n int) *Target {
	return &Target{Port: port.Ref{Kind: kind, Number: n}}
}

func TestDispatch_NoTarget(t *testing.T) {
	tr := &fakeTransport{}
	d := NewDispatcher(tr)

	res, err := d.Dispatch(context.Background(), CategoryNavigation, "up", TargetSet{})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Status != StatusNoTarget {
		t.Errorf("status = %s, want no_target", res.Status)
	}
	if tr.sentCount() != 0 {
		t.Errorf("transport called %d times for nil target", tr.sentCount())
	}
}

func TestDispatch_SingleTargetSuccess(t *testing.T) {
	tr := &fakeTransport{}
	d := NewDispatcher(tr)

	set := TargetSet{Volume: targetFor(port.KindOutput, 5)}
	res, err := d.Dispatch(context.Background(), CategoryVolume, "mute", set)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Status != StatusAllSucceeded || res.Succeeded != 1 {
		t.Errorf("result = %+v, want single success", res)
	}
}

func TestDispatch_UnknownCommandRejected(t *testing.T) {
	d := NewDispatcher(&fakeTransport{})
	set := TargetSet{Navigation: targetFor(port.KindInput, 1)}

	if _, err := d.Dispatch(context.Background(), CategoryNavigation, "volume_up", set); err == nil {
		t.Error("volume_up should not be valid for navigation")
	}
	if _, err := d.Dispatch(context.Background(), Category("remote"), "up", set); err == nil {
		t.Error("unknown category should be rejected")
	}
}

func TestDispatch_PowerFallbackSet(t *testing.T) {
	tr := &fakeTransport{}
	d := NewDispatcher(tr)

	set := TargetSet{
		Navigation: targetFor(port.KindInput, 2),
		Playback:   targetFor(port.KindInput, 2),
		Volume:     targetFor(port.KindOutput, 1),
	}
	res, err := d.Dispatch(context.Background(), CategoryPower, CmdPowerOn, set)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Status != StatusAllSucceeded {
		t.Fatalf("status = %s", res.Status)
	}
	if len(res.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want navigation + volume", len(res.Outcomes))
	}
	if res.Outcomes[0].Target.Port != (port.Ref{Kind: port.KindInput, Number: 2}) {
		t.Errorf("first target = %v, want input 2", res.Outcomes[0].Target.Port)
	}
	if res.Outcomes[1].Target.Port != (port.Ref{Kind: port.KindOutput, Number: 1}) {
		t.Errorf("second target = %v, want output 1", res.Outcomes[1].Target.Port)
	}
}

func TestDispatch_PowerFallbackDeduplicates(t *testing.T) {
	tr := &fakeTransport{}
	d := NewDispatcher(tr)

	// Navigation and volume both pinned to the same output.
	set := TargetSet{
		Navigation: targetFor(port.KindOutput, 1),
		Volume:     targetFor(port.KindOutput, 1),
	}
	res, err := d.Dispatch(context.Background(), CategoryPower, CmdPowerOff, set)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(res.Outcomes) != 1 {
		t.Errorf("outcomes = %d, want deduplicated single target", len(res.Outcomes))
	}
}

func TestDispatch_ScenePowerListsWin(t *testing.T) {
	tr := &fakeTransport{}
	d := NewDispatcher(tr)

	set := TargetSet{
		Navigation: targetFor(port.KindInput, 2),
		Volume:     targetFor(port.KindOutput, 1),
		PowerOff: []Target{
			*targetFor(port.KindOutput, 3),
			*targetFor(port.KindOutput, 4),
		},
	}
	res, err := d.Dispatch(context.Background(), CategoryPower, CmdPowerOff, set)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(res.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want the two scene targets", len(res.Outcomes))
	}
	for _, o := range res.Outcomes {
		if o.Target.Port.Kind != port.KindOutput || (o.Target.Port.Number != 3 && o.Target.Port.Number != 4) {
			t.Errorf("unexpected target %v", o.Target.Port)
		}
	}
}

func TestDispatch_PowerOnEmptyButPowerOffDeclared(t *testing.T) {
	// One declared list suppresses the fallback for the other command too:
	// the scene made an explicit choice.
	d := NewDispatcher(&fakeTransport{})
	set := TargetSet{
		Navigation: targetFor(port.KindInput, 2),
		Volume:     targetFor(port.KindOutput, 1),
		PowerOff:   []Target{*targetFor(port.KindOutput, 3)},
	}
	res, err := d.Dispatch(context.Background(), CategoryPower, CmdPowerOn, set)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Status != StatusNoTarget {
		t.Errorf("status = %s, want no_target", res.Status)
	}
}

func TestDispatch_PartialFailure(t *testing.T) {
	tr := &fakeTransport{failPorts: map[string]error{
		"output_1": errors.New("device unreachable"),
	}}
	d := NewDispatcher(tr)

	set := TargetSet{
		Navigation: targetFor(port.KindInput, 2),
		Volume:     targetFor(port.KindOutput, 1),
	}
	res, err := d.Dispatch(context.Background(), CategoryPower, CmdPowerOn, set)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Status != StatusPartialFailure {
		t.Errorf("status = %s, want partial_failure", res.Status)
	}
	if res.Succeeded != 1 || res.Failed != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 1/1", res.Succeeded, res.Failed)
	}
}

func TestDispatch_AllFailed(t *testing.T) {
	tr := &fakeTransport{failPorts: map[string]error{
		"input_2":  errors.New("nack"),
		"output_1": errors.New("nack"),
	}}
	d := NewDispatcher(tr)

	set := TargetSet{
		Navigation: targetFor(port.KindInput, 2),
		Volume:     targetFor(port.KindOutput, 1),
	}
	res, err := d.Dispatch(context.Background(), CategoryPower, CmdPowerOn, set)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Status != StatusAllFailed || res.Failed != 2 {
		t.Errorf("result = %+v, want all_failed with 2 failures", res)
	}
}
