package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

type Day int

const (
	Monday Day = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var dayNames = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func (day Day) String() string {
	if day < Monday || day > Sunday {
		return fmt.Sprintf("Day(%d)", int(day))
	}
	return dayNames[day]
}

// ParseDay accepts both short ("Mon") and long ("Monday") day names regardless of case
func ParseDay(value string) (Day, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if len(value) >= 3 {
		for i, name := range dayNames {
			if strings.HasPrefix(value, strings.ToLower(name)) {
				return Day(i), nil
			}
		}
	}
	return 0, fmt.Errorf("invalid day %q", value)
}

// Clock is a time of day expressed in minutes since midnight
type Clock int

func (clock Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(clock)/60, int(clock)%60)
}

func ParseClock(value string) (Clock, error) {
	hours, minutes, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", value)
	}
	h, err := strconv.Atoi(hours)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid time %q: bad hour", value)
	}
	m, err := strconv.Atoi(minutes)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q: bad minute", value)
	}
	return Clock(h*60 + m), nil
}

type ComponentType string

const (
	Lecture   ComponentType = "L"
	Tutorial  ComponentType = "T"
	Practical ComponentType = "P"
)

// ComponentOrder is the canonical processing order of components within a course
var ComponentOrder = []ComponentType{Lecture, Tutorial, Practical}

func (component ComponentType) Rank() int {
	for i, other := range ComponentOrder {
		if other == component {
			return i
		}
	}
	return len(ComponentOrder)
}

// ParseComponent canonicalises free-form component names ("LEC1", "tutorial", "Lab") into L, T or P
func ParseComponent(value string) (ComponentType, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch {
	case value == "":
		return "", fmt.Errorf("empty component")
	case strings.HasPrefix(value, "lec"):
		return Lecture, nil
	case strings.HasPrefix(value, "tut"):
		return Tutorial, nil
	case strings.HasPrefix(value, "prac"), strings.HasPrefix(value, "lab"):
		return Practical, nil
	case len(value) == 1 && strings.Contains("ltp", value):
		return ComponentType(strings.ToUpper(value)), nil
	}
	return "", fmt.Errorf("invalid component %q", value)
}
