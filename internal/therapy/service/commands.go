package service

import (
	"encoding/json"
	"strings"

	dErrors "clinictrack/pkg/domain-errors"
)

// Actor is the user name of a professional caller. Professionals may only
// touch their own sessions; an empty Actor is the tenant account.
type Actor string

func (a Actor) owns(user string) bool {
	return a == "" || string(a) == user
}

type StartSessionCommand struct {
	Tenant       string
	User         string
	Patient      string
	InitialState string
	Actor        Actor
}

func (c *StartSessionCommand) Validate() error {
	c.User = strings.TrimSpace(c.User)
	if c.User == "" {
		return dErrors.New(dErrors.CodeValidation, "user is required")
	}
	if !c.Actor.owns(c.User) {
		return dErrors.New(dErrors.CodeForbidden, "professionals can only start their own sessions")
	}
	return nil
}

type FinishSessionCommand struct {
	Tenant     string
	SessionID  int64
	FinalState string
	Actor      Actor
}

type StartExerciseCommand struct {
	Tenant    string
	SessionID int64
	Scene     string
	Actor     Actor
}

type FinishExerciseCommand struct {
	Tenant     string
	ExerciseID int64
	Actor      Actor
}

type RecordMetricCommand struct {
	Tenant     string
	ExerciseID int64
	Name       string
	Data       json.RawMessage
	Actor      Actor
}

type ReportQuery struct {
	Tenant  string
	User    string
	Patient string
	Actor   Actor
}

func (q *ReportQuery) Validate() error {
	q.User = strings.TrimSpace(q.User)
	q.Patient = strings.TrimSpace(q.Patient)
	if q.User == "" && q.Actor != "" {
		q.User = string(q.Actor)
	}
	switch {
	case q.User == "":
		return dErrors.New(dErrors.CodeValidation, "user is required")
	case q.Patient == "":
		return dErrors.New(dErrors.CodeValidation, "patient is required")
	case !q.Actor.owns(q.User):
		return dErrors.New(dErrors.CodeForbidden, "professionals can only read their own patients")
	}
	return nil
}
