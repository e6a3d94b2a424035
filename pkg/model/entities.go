package model

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/limaJavier/scheduler/pkg/catalog"
	"github.com/samber/lo"
)

type RoomType string

const (
	LectureHall RoomType = "lecture_hall"
	Lab         RoomType = "lab"
	Seminar     RoomType = "seminar"
)

// Room types a component may use when neither the component nor the course narrows them down
var defaultRoomTypes = map[catalog.ComponentType][]RoomType{
	catalog.Lecture:   {LectureHall, Seminar},
	catalog.Tutorial:  {Seminar, LectureHall},
	catalog.Practical: {Lab},
}

type Component struct {
	Type     catalog.ComponentType `json:"type" yaml:"type" mapstructure:"type" validate:"required,oneof=L T P"`
	Sessions int                   `json:"sessions" yaml:"sessions" mapstructure:"sessions" validate:"min=1,max=7"`
	RoomType RoomType              `json:"roomType,omitempty" yaml:"roomType" mapstructure:"roomType" validate:"omitempty,oneof=lecture_hall lab seminar"`
}

type Course struct {
	ID          string      `json:"id" yaml:"id" mapstructure:"id" validate:"required"`
	Title       string      `json:"title" yaml:"title" mapstructure:"title"`
	Credits     int         `json:"credits" yaml:"credits" mapstructure:"credits" validate:"min=0"`
	Components  []Component `json:"components" yaml:"components" mapstructure:"components" validate:"required,min=1,dive"`
	Groups      []string    `json:"groups,omitempty" yaml:"groups" mapstructure:"groups"`
	RoomType    RoomType    `json:"roomType,omitempty" yaml:"roomType" mapstructure:"roomType" validate:"omitempty,oneof=lecture_hall lab seminar"`
	MinCapacity int         `json:"minCapacity,omitempty" yaml:"minCapacity" mapstructure:"minCapacity" validate:"min=0"`
}

type Room struct {
	ID          string   `json:"id" yaml:"id" mapstructure:"id" validate:"required"`
	Capacity    int      `json:"capacity" yaml:"capacity" mapstructure:"capacity" validate:"min=1"`
	Type        RoomType `json:"type" yaml:"type" mapstructure:"type" validate:"required,oneof=lecture_hall lab seminar"`
	Unavailable []string `json:"unavailable,omitempty" yaml:"unavailable" mapstructure:"unavailable"` // Slot ids
}

// Teachable is a course component a faculty member may teach. An empty component stands for every component of the course
type Teachable struct {
	Course    string                `json:"course" yaml:"course" mapstructure:"course" validate:"required"`
	Component catalog.ComponentType `json:"component,omitempty" yaml:"component" mapstructure:"component" validate:"omitempty,oneof=L T P"`
}

type Faculty struct {
	ID          string      `json:"id" yaml:"id" mapstructure:"id" validate:"required"`
	Name        string      `json:"name" yaml:"name" mapstructure:"name"`
	Teaches     []Teachable `json:"teaches" yaml:"teaches" mapstructure:"teaches" validate:"dive"`
	Unavailable []string    `json:"unavailable,omitempty" yaml:"unavailable" mapstructure:"unavailable"`
	MaxDays     int         `json:"maxDays,omitempty" yaml:"maxDays" mapstructure:"maxDays" validate:"min=0,max=7"` // Zero means unlimited
}

type Group struct {
	ID      string   `json:"id" yaml:"id" mapstructure:"id" validate:"required"`
	Size    int      `json:"size" yaml:"size" mapstructure:"size" validate:"min=0"`
	Courses []string `json:"courses,omitempty" yaml:"courses" mapstructure:"courses"`
}

// Key identifies one (course, component) instance
type Key struct {
	Course    string                `json:"course"`
	Component catalog.ComponentType `json:"component"`
}

func (key Key) String() string {
	return key.Course + "/" + string(key.Component)
}

// CompareKeys orders keys by course and then by the canonical component order
func CompareKeys(a, b Key) int {
	return cmp.Or(
		cmp.Compare(a.Course, b.Course),
		cmp.Compare(a.Component.Rank(), b.Component.Rank()),
	)
}

type InvalidEntityError struct {
	Kind   string
	ID     string
	Reason string
}

func (err *InvalidEntityError) Error() string {
	if err.ID == "" {
		return fmt.Sprintf("invalid %v: %v", err.Kind, err.Reason)
	}
	return fmt.Sprintf("invalid %v %q: %v", err.Kind, err.ID, err.Reason)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Entities is the validated, read-only entity set of a session
type Entities struct {
	courses []Course
	rooms   []Room
	faculty []Faculty
	groups  []Group

	courseIndex  map[string]int
	roomIndex    map[string]int
	facultyIndex map[string]int
	groupIndex   map[string]int

	enrollment map[string][]string // Course -> sorted groups
	keys       []Key
}

func NewEntities(courses []Course, rooms []Room, faculty []Faculty, groups []Group) (*Entities, error) {
	entities := &Entities{
		courses:      sortedClone(courses, func(course Course) string { return course.ID }),
		rooms:        sortedClone(rooms, func(room Room) string { return room.ID }),
		faculty:      sortedClone(faculty, func(member Faculty) string { return member.ID }),
		groups:       sortedClone(groups, func(group Group) string { return group.ID }),
		courseIndex:  make(map[string]int),
		roomIndex:    make(map[string]int),
		facultyIndex: make(map[string]int),
		groupIndex:   make(map[string]int),
		enrollment:   make(map[string][]string),
	}

	//** Structural validation
	for i, course := range entities.courses {
		if err := validateRecord("course", course.ID, course); err != nil {
			return nil, err
		}
		if err := index(entities.courseIndex, "course", course.ID, i); err != nil {
			return nil, err
		}
		seen := make(map[catalog.ComponentType]bool)
		for _, component := range course.Components {
			if seen[component.Type] {
				return nil, &InvalidEntityError{Kind: "course", ID: course.ID, Reason: fmt.Sprintf("component %v declared twice", component.Type)}
			}
			seen[component.Type] = true
			entities.keys = append(entities.keys, Key{Course: course.ID, Component: component.Type})
		}
		entities.courses[i].Components = slices.Clone(course.Components)
		slices.SortFunc(entities.courses[i].Components, func(a, b Component) int { return cmp.Compare(a.Type.Rank(), b.Type.Rank()) })
	}
	for i, room := range entities.rooms {
		if err := validateRecord("room", room.ID, room); err != nil {
			return nil, err
		}
		if err := index(entities.roomIndex, "room", room.ID, i); err != nil {
			return nil, err
		}
	}
	for i, member := range entities.faculty {
		if err := validateRecord("faculty", member.ID, member); err != nil {
			return nil, err
		}
		if err := index(entities.facultyIndex, "faculty", member.ID, i); err != nil {
			return nil, err
		}
	}
	for i, group := range entities.groups {
		if err := validateRecord("group", group.ID, group); err != nil {
			return nil, err
		}
		if err := index(entities.groupIndex, "group", group.ID, i); err != nil {
			return nil, err
		}
	}

	//** References
	for _, member := range entities.faculty {
		for _, teachable := range member.Teaches {
			course, ok := entities.Course(teachable.Course)
			if !ok {
				return nil, &InvalidEntityError{Kind: "faculty", ID: member.ID, Reason: fmt.Sprintf("teaches unknown course %q", teachable.Course)}
			}
			if teachable.Component != "" && !lo.ContainsBy(course.Components, func(component Component) bool { return component.Type == teachable.Component }) {
				return nil, &InvalidEntityError{Kind: "faculty", ID: member.ID, Reason: fmt.Sprintf("teaches unknown component %v", Key{Course: course.ID, Component: teachable.Component})}
			}
		}
	}

	// Enrollment is the union of both directions
	for _, course := range entities.courses {
		for _, group := range course.Groups {
			if _, ok := entities.groupIndex[group]; !ok {
				return nil, &InvalidEntityError{Kind: "course", ID: course.ID, Reason: fmt.Sprintf("references unknown group %q", group)}
			}
			entities.enrollment[course.ID] = append(entities.enrollment[course.ID], group)
		}
	}
	for _, group := range entities.groups {
		for _, course := range group.Courses {
			if _, ok := entities.courseIndex[course]; !ok {
				return nil, &InvalidEntityError{Kind: "group", ID: group.ID, Reason: fmt.Sprintf("enrolled in unknown course %q", course)}
			}
			entities.enrollment[course] = append(entities.enrollment[course], group.ID)
		}
	}
	for course, groups := range entities.enrollment {
		slices.Sort(groups)
		entities.enrollment[course] = slices.Compact(groups)
	}

	slices.SortFunc(entities.keys, CompareKeys)
	return entities, nil
}

func (entities *Entities) Courses() []Course  { return slices.Clone(entities.courses) }
func (entities *Entities) Rooms() []Room      { return slices.Clone(entities.rooms) }
func (entities *Entities) Faculty() []Faculty { return slices.Clone(entities.faculty) }
func (entities *Entities) Groups() []Group    { return slices.Clone(entities.groups) }

// Keys returns every (course, component) instance ordered by course id and component
func (entities *Entities) Keys() []Key { return slices.Clone(entities.keys) }

func (entities *Entities) Course(id string) (Course, bool) {
	return lookup(entities.courses, entities.courseIndex, id)
}

func (entities *Entities) Room(id string) (Room, bool) {
	return lookup(entities.rooms, entities.roomIndex, id)
}

func (entities *Entities) FacultyMember(id string) (Faculty, bool) {
	return lookup(entities.faculty, entities.facultyIndex, id)
}

func (entities *Entities) Group(id string) (Group, bool) {
	return lookup(entities.groups, entities.groupIndex, id)
}

func (entities *Entities) Component(key Key) (Component, bool) {
	course, ok := entities.Course(key.Course)
	if !ok {
		return Component{}, false
	}
	return lo.Find(course.Components, func(component Component) bool { return component.Type == key.Component })
}

// GroupsOf returns the groups enrolled in the course
func (entities *Entities) GroupsOf(course string) []string {
	return slices.Clone(entities.enrollment[course])
}

// CapacityNeed is the number of seats an instance of the course requires
func (entities *Entities) CapacityNeed(course string) int {
	need := lo.SumBy(entities.enrollment[course], func(id string) int {
		group, _ := entities.Group(id)
		return group.Size
	})
	if record, ok := entities.Course(course); ok && record.MinCapacity > need {
		need = record.MinCapacity
	}
	return need
}

// RoomTypes returns the room types compatible with the instance, narrowed by the component first and the course second
func (entities *Entities) RoomTypes(key Key) []RoomType {
	if component, ok := entities.Component(key); ok && component.RoomType != "" {
		return []RoomType{component.RoomType}
	}
	if course, ok := entities.Course(key.Course); ok && course.RoomType != "" {
		return []RoomType{course.RoomType}
	}
	return slices.Clone(defaultRoomTypes[key.Component])
}

func (entities *Entities) MayTeach(faculty string, key Key) bool {
	member, ok := entities.FacultyMember(faculty)
	if !ok {
		return false
	}
	return lo.ContainsBy(member.Teaches, func(teachable Teachable) bool {
		return teachable.Course == key.Course && (teachable.Component == "" || teachable.Component == key.Component)
	})
}

// TeachersOf returns the ids of the faculty members allowed to teach the instance
func (entities *Entities) TeachersOf(key Key) []string {
	return lo.FilterMap(entities.faculty, func(member Faculty, _ int) (string, bool) {
		return member.ID, entities.MayTeach(member.ID, key)
	})
}

func validateRecord(kind, id string, record any) error {
	if err := validate.Struct(record); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			reasons := lo.Map(errs, func(fieldErr validator.FieldError, _ int) string {
				return fmt.Sprintf("%v fails %q", fieldErr.Namespace(), fieldErr.Tag())
			})
			return &InvalidEntityError{Kind: kind, ID: id, Reason: strings.Join(reasons, ", ")}
		}
		return &InvalidEntityError{Kind: kind, ID: id, Reason: err.Error()}
	}
	return nil
}

func index(indices map[string]int, kind, id string, i int) error {
	if _, ok := indices[id]; ok {
		return &InvalidEntityError{Kind: kind, ID: id, Reason: "duplicate id"}
	}
	indices[id] = i
	return nil
}

func lookup[T any](records []T, indices map[string]int, id string) (T, bool) {
	i, ok := indices[id]
	if !ok {
		var zero T
		return zero, false
	}
	return records[i], true
}

func sortedClone[T any](records []T, id func(T) string) []T {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b T) int { return cmp.Compare(id(a), id(b)) })
	return sorted
}
