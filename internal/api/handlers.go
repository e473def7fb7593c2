package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/renholt/crossbar/internal/apperr"
	"github.com/renholt/crossbar/internal/cec"
	"github.com/renholt/crossbar/internal/matrixstate"
	"github.com/renholt/crossbar/internal/port"
	"github.com/renholt/crossbar/internal/scenes"
	"github.com/renholt/crossbar/internal/sse"
)

// Switcher applies a routing change on the matrix unit.
type Switcher interface {
	SwitchInput(ctx context.Context, output, input int) error
}

// Handler holds API route handlers.
type Handler struct {
	ctrl   *cec.Controller
	scenes scenes.Store
	state  *matrixstate.Store
	unit   Switcher
	broker *sse.Broker
}

// NewHandler creates a new Handler.
func NewHandler(ctrl *cec.Controller, sceneStore scenes.Store, state *matrixstate.Store, unit Switcher, broker *sse.Broker) *Handler {
	return &Handler{ctrl: ctrl, scenes: sceneStore, state: state, unit: unit, broker: broker}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{ Validate() error }) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if err := dst.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return false
	}
	return true
}

// GetTargets handles GET /api/cec/targets.
//
//	@Summary		Current resolved CEC targets
//	@Tags			cec
//	@Produce		json
//	@Success		200	{object}	TargetSetResponse
//	@Security		BearerAuth
//	@Router			/cec/targets [get]
func (h *Handler) GetTargets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toTargetSetResponse(h.ctrl.ResolvedTargets(), h.ctrl.ActiveScene()))
}

// ExecuteCommand handles POST /api/cec/command.
//
//	@Summary		Dispatch a CEC command to its resolved target(s)
//	@Tags			cec
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CommandRequest	true	"Command to dispatch"
//	@Success		200		{object}	DispatchResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	DispatchResponse	"No target configured"
//	@Failure		502		{object}	DispatchResponse	"All targets failed"
//	@Security		BearerAuth
//	@Router			/cec/command [post]
func (h *Handler) ExecuteCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if !decodeBody(w, r, &req) {
		return
	}
	category, _ := cec.ParseCategory(req.Category)

	res, err := h.ctrl.Execute(r.Context(), category, req.Command)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	status := http.StatusOK
	switch res.Status {
	case cec.StatusNoTarget:
		status = http.StatusConflict
	case cec.StatusAllFailed:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, toDispatchResponse(res))
}

// SetOverride handles PUT /api/cec/override.
//
//	@Summary		Pin a category to a fixed port, or restore auto resolution
//	@Tags			cec
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OverrideRequest	true	"Override to apply"
//	@Success		200		{object}	TargetSetResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cec/override [put]
func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	var req OverrideRequest
	if !decodeBody(w, r, &req) {
		return
	}
	category, _ := cec.ParseCategory(req.Category)

	var ref *port.Ref
	if req.Target != nil {
		parsed, err := port.Parse(*req.Target)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		ref = &parsed
	}
	if err := h.ctrl.SetOverride(category, ref); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("category does not support overrides"))
		return
	}
	writeJSON(w, http.StatusOK, toTargetSetResponse(h.ctrl.ResolvedTargets(), h.ctrl.ActiveScene()))
}

// ListScenes handles GET /api/scenes.
func (h *Handler) ListScenes(w http.ResponseWriter, r *http.Request) {
	list, err := h.scenes.List(r.Context())
	if err != nil {
		slog.Error("list scenes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenes": list})
}

// CreateScene handles POST /api/scenes.
func (h *Handler) CreateScene(w http.ResponseWriter, r *http.Request) {
	var req CreateSceneRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sc, err := h.scenes.Create(r.Context(), req.Name, req.Routing)
	if err != nil {
		slog.Error("create scene failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

// GetScene handles GET /api/scenes/{id}.
func (h *Handler) GetScene(w http.ResponseWriter, r *http.Request) {
	sc, err := h.scenes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get scene failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// DeleteScene handles DELETE /api/scenes/{id}.
func (h *Handler) DeleteScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.scenes.Delete(r.Context(), id); err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	// Deleting the active scene drops the controller back to auto.
	if h.ctrl.ActiveScene() == id {
		h.ctrl.SetActiveScene(r.Context(), "")
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSceneCecConfig handles GET /api/scenes/{id}/cec-config.
//
//	@Summary		Read a scene's CEC configuration
//	@Tags			scenes
//	@Produce		json
//	@Param			id	path		string	true	"Scene ID"
//	@Success		200	{object}	CecConfigResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scenes/{id}/cec-config [get]
func (h *Handler) GetSceneCecConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cfg, err := h.scenes.GetCecConfig(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get cec config failed", slog.String("scene_id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	sum, err := h.scenes.CecConfigChecksum(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, CecConfigResponse{CecConfig: cfg, Checksum: sum})
}

// UpdateSceneCecConfig handles PUT /api/scenes/{id}/cec-config with
// optimistic concurrency via If-Match.
func (h *Handler) UpdateSceneCecConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var cfg cec.SceneConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)
	if err := h.scenes.UpdateCecConfig(r.Context(), id, &cfg, ifMatch); err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
		default:
			slog.Error("update cec config failed", slog.String("scene_id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	// Refresh the controller when the active scene's config changed.
	if h.ctrl.ActiveScene() == id {
		h.ctrl.SetActiveScene(r.Context(), id)
	}
	sum, _ := h.scenes.CecConfigChecksum(r.Context(), id)
	writeJSON(w, http.StatusOK, CecConfigResponse{CecConfig: &cfg, Checksum: sum})
}

// AutoResolveCecConfig handles POST /api/scenes/{id}/cec-config/auto-resolve.
// It snapshots the controller's current resolution into a scene config and
// persists it when ?persist=true.
func (h *Handler) AutoResolveCecConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.scenes.Get(r.Context(), id); err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}

	cfg := cec.ConfigFromTargets(h.ctrl.ResolvedTargets())
	persist := r.URL.Query().Get("persist") == "true"
	if persist {
		if err := h.scenes.UpdateCecConfig(r.Context(), id, &cfg, ""); err != nil {
			slog.Error("persist auto-resolved config failed", slog.String("scene_id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
			return
		}
	}
	writeJSON(w, http.StatusOK, AutoResolveResponse{ResolvedCecConfig: cfg, Persisted: persist})
}

// ActivateScene handles POST /api/scenes/{id}/activate: applies the scene's
// routing on the unit, mirrors it into the state store, and links the scene
// to the CEC controller.
func (h *Handler) ActivateScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sc, err := h.scenes.Get(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}

	outputs := make([]int, 0, len(sc.Routing))
	for out := range sc.Routing {
		outputs = append(outputs, out)
	}
	sort.Ints(outputs)
	for _, out := range outputs {
		if err := h.unit.SwitchInput(r.Context(), out, sc.Routing[out]); err != nil {
			slog.Error("scene routing switch failed",
				slog.String("scene_id", id),
				slog.Int("output", out),
				slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadGateway, errorBody("unit rejected routing change"))
			return
		}
	}
	if len(sc.Routing) > 0 {
		if err := h.state.ApplyRouting(sc.Routing); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
	}

	h.ctrl.SetActiveScene(r.Context(), id)
	h.broker.Publish(sse.Event{Type: "scene.activated", Data: map[string]string{"id": id, "name": sc.Name}})
	writeJSON(w, http.StatusOK, toTargetSetResponse(h.ctrl.ResolvedTargets(), id))
}

// DeactivateScene handles POST /api/scenes/deactivate.
func (h *Handler) DeactivateScene(w http.ResponseWriter, r *http.Request) {
	h.ctrl.SetActiveScene(r.Context(), "")
	h.broker.Publish(sse.Event{Type: "scene.deactivated", Data: map[string]string{}})
	writeJSON(w, http.StatusOK, toTargetSetResponse(h.ctrl.ResolvedTargets(), ""))
}

// UpdateRouting handles PUT /api/state/routing, the inlet for routing
// change notifications from whatever polls or proxies the unit.
func (h *Handler) UpdateRouting(w http.ResponseWriter, r *http.Request) {
	var req RoutingUpdateRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.state.ApplyRouting(req.Routing); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	h.broker.Publish(sse.Event{Type: "routing.changed", Data: req.Routing})
	w.WriteHeader(http.StatusNoContent)
}

// UpdateOutputs handles PUT /api/state/outputs.
func (h *Handler) UpdateOutputs(w http.ResponseWriter, r *http.Request) {
	var req OutputsUpdateRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.state.ApplyOutputs(req.Outputs); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateInputs handles PUT /api/state/inputs.
func (h *Handler) UpdateInputs(w http.ResponseWriter, r *http.Request) {
	var req InputsUpdateRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.state.ApplyInputs(req.Inputs); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetState handles GET /api/state.
func (h *Handler) GetState(w http.ResponseWriter, _ *http.Request) {
	snap := h.state.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"inputs":       snap.Inputs,
		"outputs":      snap.Outputs,
		"routing":      snap.Routing,
		"output_state": snap.OutState,
		"input_state":  snap.InState,
	})
}
