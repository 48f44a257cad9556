package handler

import (
	"encoding/json"

	"clinictrack/internal/therapy/service"
	dErrors "clinictrack/pkg/domain-errors"
	"clinictrack/pkg/validation"
)

type StartSessionRequest struct {
	User         string `json:"user" validate:"max=128"`
	Patient      string `json:"patient" validate:"required,notblank,max=128"`
	InitialState string `json:"initial_state" validate:"max=2000"`
}

func (r *StartSessionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

// ToCommand fills in the caller as the professional when the body omits it.
func (r *StartSessionRequest) ToCommand(tenant string, actor service.Actor) service.StartSessionCommand {
	user := r.User
	if user == "" {
		user = string(actor)
	}
	return service.StartSessionCommand{
		Tenant:       tenant,
		User:         user,
		Patient:      r.Patient,
		InitialState: r.InitialState,
		Actor:        actor,
	}
}

type FinishSessionRequest struct {
	FinalState string `json:"final_state" validate:"max=2000"`
}

func (r *FinishSessionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

type StartExerciseRequest struct {
	Scene string `json:"scene" validate:"required,notblank,max=128"`
}

func (r *StartExerciseRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

type RecordMetricRequest struct {
	Name string          `json:"name" validate:"required,notblank,max=128"`
	Data json.RawMessage `json:"data" validate:"required"`
}

func (r *RecordMetricRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}
