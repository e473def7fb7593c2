package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/renholt/crossbar/internal/cec"
	"github.com/renholt/crossbar/internal/port"
)

// CommandRequest is the request body for POST /cec/command.
type CommandRequest struct {
	Category string `json:"category" example:"navigation" validate:"required"`
	Command  string `json:"command" example:"select" validate:"required"`
}

// Validate checks the category and command against the vocabulary table.
func (r CommandRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Category, validation.Required, validation.By(validCategory)),
		validation.Field(&r.Command, validation.Required),
	)
}

// OverrideRequest is the request body for PUT /cec/override. A null target
// restores automatic resolution for the category.
type OverrideRequest struct {
	Category string  `json:"category" example:"volume" validate:"required"`
	Target   *string `json:"target" example:"output_5"`
}

// Validate checks the category and, when present, the target encoding.
func (r OverrideRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Category, validation.Required, validation.By(validCategory)),
		validation.Field(&r.Target, validation.By(validTargetString)),
	)
}

func validCategory(value interface{}) error {
	s, _ := value.(string)
	_, err := cec.ParseCategory(s)
	return err
}

func validTargetString(value interface{}) error {
	s, _ := value.(*string)
	if s == nil {
		return nil
	}
	_, err := port.Parse(*s)
	return err
}

// CreateSceneRequest is the request body for POST /scenes.
type CreateSceneRequest struct {
	Name    string      `json:"name" example:"Movie Night" validate:"required"`
	Routing map[int]int `json:"routing"`
}

// Validate requires a scene name; routing values are range-checked against
// the matrix dimensions by the state store at activation time.
func (r CreateSceneRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 120)),
	)
}

// RoutingUpdateRequest is the request body for PUT /state/routing.
type RoutingUpdateRequest struct {
	Routing map[int]int `json:"routing" validate:"required"`
}

// OutputsUpdateRequest is the request body for PUT /state/outputs.
type OutputsUpdateRequest struct {
	Outputs map[int]cec.OutputState `json:"outputs" validate:"required"`
}

// InputsUpdateRequest is the request body for PUT /state/inputs.
type InputsUpdateRequest struct {
	Inputs map[int]cec.InputState `json:"inputs" validate:"required"`
}

// TargetDTO is the wire form of a resolved target.
type TargetDTO struct {
	Target string `json:"target" example:"input_3" validate:"required"`
	Name   string `json:"name" example:"Apple TV" validate:"required"`
}

// TargetSetResponse is the wire form of the current resolution.
type TargetSetResponse struct {
	Navigation  *TargetDTO  `json:"navigation"`
	Playback    *TargetDTO  `json:"playback"`
	Volume      *TargetDTO  `json:"volume"`
	PowerOn     []TargetDTO `json:"power_on" validate:"required"`
	PowerOff    []TargetDTO `json:"power_off" validate:"required"`
	ActiveScene string      `json:"active_scene,omitempty" example:"b2f7..."`
}

// DispatchFailure reports a single failed target in a dispatch response.
type DispatchFailure struct {
	Target string `json:"target" example:"output_1" validate:"required"`
	Error  string `json:"error" example:"device unreachable" validate:"required"`
}

// DispatchResponse is the wire form of a dispatch result.
type DispatchResponse struct {
	Status    string            `json:"status" example:"partial_failure" validate:"required"`
	Succeeded int               `json:"succeeded" example:"1" validate:"required"`
	Failed    int               `json:"failed" example:"1" validate:"required"`
	Failures  []DispatchFailure `json:"failures,omitempty"`
}

// CecConfigResponse wraps a scene's stored CEC config. Checksum is the
// If-Match value for the next update.
type CecConfigResponse struct {
	CecConfig *cec.SceneConfig `json:"cec_config"`
	Checksum  string           `json:"checksum" validate:"required"`
}

// AutoResolveResponse is returned by scene auto-resolve.
type AutoResolveResponse struct {
	ResolvedCecConfig cec.SceneConfig `json:"resolved_cec_config" validate:"required"`
	Persisted         bool            `json:"persisted"`
}

func toTargetDTO(t *cec.Target) *TargetDTO {
	if t == nil {
		return nil
	}
	return &TargetDTO{Target: t.Port.String(), Name: t.DisplayName}
}

func toTargetDTOs(ts []cec.Target) []TargetDTO {
	out := make([]TargetDTO, len(ts))
	for i := range ts {
		out[i] = *toTargetDTO(&ts[i])
	}
	return out
}

func toTargetSetResponse(set cec.TargetSet, activeScene string) TargetSetResponse {
	return TargetSetResponse{
		Navigation:  toTargetDTO(set.Navigation),
		Playback:    toTargetDTO(set.Playback),
		Volume:      toTargetDTO(set.Volume),
		PowerOn:     toTargetDTOs(set.PowerOn),
		PowerOff:    toTargetDTOs(set.PowerOff),
		ActiveScene: activeScene,
	}
}

func toDispatchResponse(res cec.DispatchResult) DispatchResponse {
	out := DispatchResponse{
		Status:    string(res.Status),
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
	}
	for _, o := range res.Outcomes {
		if o.Err != nil {
			out.Failures = append(out.Failures, DispatchFailure{
				Target: o.Target.Port.String(),
				Error:  o.Err.Error(),
			})
		}
	}
	return out
}
