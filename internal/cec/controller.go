package cec

import (
	"context"
	"log/slog"
	"sync"

	"github.com/renholt/crossbar/internal/apperr"
	"github.com/renholt/crossbar/internal/port"
)

// StateSource is the external routing/naming store the controller observes.
// Subscribe must deliver the snapshot taken at notification time; the
// controller re-resolves against that snapshot, not a fresh read.
type StateSource interface {
	Namer
	Snapshot() Snapshot
	Subscribe(func(Snapshot))
}

// ConfigStore supplies per-scene CEC configuration. A nil config with nil
// error means the scene has no stored configuration.
type ConfigStore interface {
	GetCecConfig(ctx context.Context, sceneID string) (*SceneConfig, error)
}

// Controller owns manual override state, the cached resolution, and the
// active-scene linkage. It registers against the state store at construction
// and re-resolves on every change notification; callers read the cached set
// with ResolvedTargets, which never triggers I/O.
type Controller struct {
	names      Namer
	dispatcher *Dispatcher
	scenes     ConfigStore
	logger     *slog.Logger
	onResolved func(TargetSet)

	mu        sync.Mutex
	snap      Snapshot
	overrides Overrides
	sceneID   string
	sceneCfg  *SceneConfig
	sceneGen  uint64
	targets   TargetSet
}

// NewController builds a controller bound to the given collaborators and
// performs the initial resolution from the store's current snapshot.
// onResolved, if non-nil, is invoked after every completed resolution with
// the new target set (used to push SSE events); it runs outside the
// controller lock.
func NewController(source StateSource, scenes ConfigStore, transport Transport, logger *slog.Logger, onResolved func(TargetSet)) *Controller {
	c := &Controller{
		names:      source,
		dispatcher: NewDispatcher(transport),
		scenes:     scenes,
		logger:     logger,
		onResolved: onResolved,
		snap:       source.Snapshot(),
	}
	c.mu.Lock()
	set := c.resolveLocked()
	c.mu.Unlock()
	c.notify(set)
	source.Subscribe(c.OnStateChanged)
	return c
}

// OnStateChanged re-resolves using the snapshot carried by the notification.
func (c *Controller) OnStateChanged(snap Snapshot) {
	c.mu.Lock()
	c.snap = snap
	set := c.resolveLocked()
	c.mu.Unlock()
	c.notify(set)
}

// SetOverride pins a category to a fixed port, or restores automatic
// resolution when ref is nil. Power has no override.
func (c *Controller) SetOverride(category Category, ref *port.Ref) error {
	c.mu.Lock()
	switch category {
	case CategoryNavigation:
		c.overrides.Navigation = ref
	case CategoryPlayback:
		c.overrides.Playback = ref
	case CategoryVolume:
		c.overrides.Volume = ref
	default:
		c.mu.Unlock()
		return apperr.ErrBadTarget
	}
	set := c.resolveLocked()
	c.mu.Unlock()
	c.notify(set)
	return nil
}

// SetActiveScene links a scene to the controller, fetching its CEC config
// from the store. An empty sceneID deactivates. A failed fetch degrades to
// "no scene config" rather than failing the controller; the previous cached
// resolution stays intact until the new one completes. A generation counter
// discards a fetch that finishes after a newer activation superseded it.
func (c *Controller) SetActiveScene(ctx context.Context, sceneID string) {
	c.mu.Lock()
	c.sceneGen++
	gen := c.sceneGen
	c.mu.Unlock()

	var cfg *SceneConfig
	if sceneID != "" {
		var err error
		cfg, err = c.scenes.GetCecConfig(ctx, sceneID)
		if err != nil {
			c.logger.Warn("scene cec config fetch failed, falling back to auto",
				slog.String("scene_id", sceneID),
				slog.String("error", err.Error()))
			cfg = nil
		}
	}

	c.mu.Lock()
	if gen != c.sceneGen {
		c.mu.Unlock()
		return
	}
	c.sceneID = sceneID
	c.sceneCfg = cfg
	set := c.resolveLocked()
	c.mu.Unlock()
	c.notify(set)
}

// ActiveScene returns the currently linked scene ID, empty when none.
func (c *Controller) ActiveScene() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sceneID
}

// ResolvedTargets returns the most recently completed resolution.
func (c *Controller) ResolvedTargets() TargetSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targets
}

// Execute dispatches a command against the cached resolution.
func (c *Controller) Execute(ctx context.Context, category Category, command string) (DispatchResult, error) {
	c.mu.Lock()
	set := c.targets
	c.mu.Unlock()
	return c.dispatcher.Dispatch(ctx, category, command, set)
}

func (c *Controller) resolveLocked() TargetSet {
	c.targets = Resolve(c.snap, c.names, c.overrides, c.sceneCfg)
	return c.targets
}

func (c *Controller) notify(set TargetSet) {
	if c.onResolved != nil {
		c.onResolved(set)
	}
}
