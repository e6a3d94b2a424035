package model

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/limaJavier/scheduler/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntities(t *testing.T) {
	entities := csEntities(t)

	assert.Equal(t, []Key{{Course: "CS102", Component: catalog.Lecture}, {Course: "CS201", Component: catalog.Lecture}}, entities.Keys())
	assert.Equal(t, 40, entities.CapacityNeed("CS102"))
	assert.Equal(t, []RoomType{LectureHall, Seminar}, entities.RoomTypes(Key{Course: "CS102", Component: catalog.Lecture}))
	assert.Equal(t, []string{"F1"}, entities.TeachersOf(Key{Course: "CS102", Component: catalog.Lecture}))
	assert.False(t, entities.MayTeach("F2", Key{Course: "CS102", Component: catalog.Lecture}))
}

func TestEnrollmentIsTheUnionOfBothDirections(t *testing.T) {
	//** Arrange
	courses := []Course{
		{ID: "MA101", Components: []Component{{Type: catalog.Lecture, Sessions: 3}}, Groups: []string{"G1"}, MinCapacity: 100},
		{ID: "PH101", Components: []Component{{Type: catalog.Practical, Sessions: 1}, {Type: catalog.Lecture, Sessions: 2}}},
	}
	groups := []Group{{ID: "G1", Size: 25, Courses: []string{"PH101"}}, {ID: "G2", Size: 20, Courses: []string{"PH101", "MA101"}}}

	//** Act
	entities, err := NewEntities(courses, nil, nil, groups)

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"G1", "G2"}, entities.GroupsOf("MA101"))
	assert.Equal(t, []string{"G1", "G2"}, entities.GroupsOf("PH101"))
	assert.Equal(t, 100, entities.CapacityNeed("MA101"))
	assert.Equal(t, 45, entities.CapacityNeed("PH101"))
	assert.Equal(t, []RoomType{Lab}, entities.RoomTypes(Key{Course: "PH101", Component: catalog.Practical}))
	// Components are kept in canonical order
	course, _ := entities.Course("PH101")
	assert.Equal(t, catalog.Lecture, course.Components[0].Type)
}

func TestInvalidEntities(t *testing.T) {
	lecture := []Component{{Type: catalog.Lecture, Sessions: 3}}
	scenarios := map[string]func() error{
		"Duplicate course": func() error {
			_, err := NewEntities([]Course{{ID: "A", Components: lecture}, {ID: "A", Components: lecture}}, nil, nil, nil)
			return err
		},
		"Duplicate component": func() error {
			_, err := NewEntities([]Course{{ID: "A", Components: append(lecture, lecture...)}}, nil, nil, nil)
			return err
		},
		"Course without components": func() error {
			_, err := NewEntities([]Course{{ID: "A"}}, nil, nil, nil)
			return err
		},
		"Room without capacity": func() error {
			_, err := NewEntities(nil, []Room{{ID: "R", Type: LectureHall}}, nil, nil)
			return err
		},
		"Unknown room type": func() error {
			_, err := NewEntities(nil, []Room{{ID: "R", Capacity: 10, Type: "gym"}}, nil, nil)
			return err
		},
		"Faculty teaching an unknown course": func() error {
			_, err := NewEntities(nil, nil, []Faculty{{ID: "F", Teaches: []Teachable{{Course: "X"}}}}, nil)
			return err
		},
		"Faculty teaching an unknown component": func() error {
			_, err := NewEntities([]Course{{ID: "A", Components: lecture}}, nil, []Faculty{{ID: "F", Teaches: []Teachable{{Course: "A", Component: catalog.Practical}}}}, nil)
			return err
		},
		"Course referencing an unknown group": func() error {
			_, err := NewEntities([]Course{{ID: "A", Components: lecture, Groups: []string{"G"}}}, nil, nil, nil)
			return err
		},
		"Group enrolled in an unknown course": func() error {
			_, err := NewEntities(nil, nil, nil, []Group{{ID: "G", Courses: []string{"A"}}})
			return err
		},
	}

	for name, scenario := range scenarios {
		t.Run(name, func(t *testing.T) {
			var invalid *InvalidEntityError
			assert.True(t, errors.As(scenario(), &invalid))
		})
	}
}

func TestLoadEntities(t *testing.T) {
	//** Arrange
	path := filepath.Join(t.TempDir(), "entities.yaml")
	content := `
courses:
  - id: CS102
    title: Programming II
    credits: 3
    components:
      - type: lecture
        sessions: 3
      - type: Lab
        sessions: 1
    groups: [G1]
rooms:
  - id: R1
    capacity: 50
    type: lecture_hall
  - id: LAB1
    capacity: 45
    type: lab
    unavailable: [MWF_6_LAB/Fri]
faculty:
  - id: F1
    name: Ada
    teaches:
      - course: CS102
    maxDays: 3
groups:
  - id: G1
    size: 40
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	//** Act
	entities, err := LoadEntities(path)

	//** Assert
	require.NoError(t, err)
	assert.Equal(t, []Key{{Course: "CS102", Component: catalog.Lecture}, {Course: "CS102", Component: catalog.Practical}}, entities.Keys())
	member, ok := entities.FacultyMember("F1")
	require.True(t, ok)
	assert.Equal(t, 3, member.MaxDays)
	room, ok := entities.Room("LAB1")
	require.True(t, ok)
	assert.Equal(t, []string{"MWF_6_LAB/Fri"}, room.Unavailable)
}

func TestLoadEntitiesRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"courses": [], "teachers": []}`), 0o600))

	_, err := LoadEntities(path)

	assert.Error(t, err)
}
