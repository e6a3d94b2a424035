package repair

import (
	"errors"
	"fmt"

	"github.com/limaJavier/scheduler/pkg/model"
)

var (
	ErrNoBaseline    = errors.New("no baseline schedule: reset the engine with an entity set first")
	ErrNothingToUndo = errors.New("the override ledger is empty")
	ErrVerification  = errors.New("solver returned a schedule breaking a hard rule")
)

// UnknownTargetError reports a command naming a course, component, room, faculty member or override that does not exist
type UnknownTargetError struct {
	Kind string
	ID   string
}

func (err *UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown %v %q", err.Kind, err.ID)
}

// InvalidSlotError reports a requested time that a non-forced override cannot use
type InvalidSlotError struct {
	Key    model.Key
	Day    string
	Start  string
	Reason string
}

func (err *InvalidSlotError) Error() string {
	return fmt.Sprintf("cannot pin %v to %v %v: %v", err.Key, err.Day, err.Start, err.Reason)
}

// InfeasibleError reports an override, or a baseline when Key is zero, that leaves no valid schedule. The previous state is kept
type InfeasibleError struct {
	Key  model.Key
	Core model.ConflictCore
}

func (err *InfeasibleError) Error() string {
	if err.Key == (model.Key{}) {
		return fmt.Sprintf("cannot build the schedule: %v", err.Core)
	}
	return fmt.Sprintf("cannot apply override on %v: %v", err.Key, err.Core)
}
