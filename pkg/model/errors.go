package model

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// InfeasibleEligibilityError reports an instance without a single eligible (option, room, faculty) tuple
type InfeasibleEligibilityError struct {
	Key    Key
	Reason string
}

func (err *InfeasibleEligibilityError) Error() string {
	return fmt.Sprintf("%v has no eligible slot, room and faculty combination: %v", err.Key, err.Reason)
}

// PinConflictError reports a non-forced pin breaking a hard rule, either on its own or together with Other
type PinConflictError struct {
	Pin   Pin
	Other *Pin
	Rule  Rule
}

func (err *PinConflictError) Error() string {
	if err.Other != nil {
		return fmt.Sprintf("%v conflicts with %v: %v", err.Pin, *err.Other, err.Rule)
	}
	return fmt.Sprintf("%v violates %v", err.Pin, err.Rule)
}

// ConflictCore is a set of instances and pins that cannot be scheduled together
type ConflictCore struct {
	Keys   []Key  `json:"keys"`
	Pins   []Pin  `json:"pins,omitempty"`
	Rules  []Rule `json:"rules"`
	Reason string `json:"reason"`
}

func (core ConflictCore) String() string {
	if len(core.Keys) == 0 {
		return core.Reason
	}
	members := lo.Map(core.Keys, func(key Key, _ int) string {
		if pin, ok := lo.Find(core.Pins, func(pin Pin) bool { return pin.Key == key }); ok {
			return fmt.Sprintf("%v (pin #%d)", key, pin.Seq)
		}
		return key.String()
	})
	rules := strings.Join(lo.Map(core.Rules, func(rule Rule, _ int) string { return string(rule) }), ", ")
	if rules == "" {
		return fmt.Sprintf("cannot satisfy %v simultaneously: %v", strings.Join(members, " and "), core.Reason)
	}
	return fmt.Sprintf("cannot satisfy %v simultaneously: %v", strings.Join(members, " and "), rules)
}
