package model

import (
	"testing"

	"github.com/limaJavier/scheduler/pkg/catalog"
	"github.com/stretchr/testify/require"
)

// twoBlockCatalog holds two lecture blocks on MWF and one tutorial block on TTH
func twoBlockCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(catalog.Grid{
		Families: []catalog.FamilySpec{
			{Name: "MWF", Days: []string{"Mon", "Wed", "Fri"}},
			{Name: "TTH", Days: []string{"Tue", "Thu"}},
		},
		Rows: []catalog.Row{
			{ID: "MWF_09", Family: "MWF", Start: "09:00", End: "10:00", Allowed: []string{"L"}},
			{ID: "MWF_11", Family: "MWF", Start: "11:00", End: "12:00", Allowed: []string{"L"}},
			{ID: "TTH_T", Family: "TTH", Start: "14:00", End: "15:00", Allowed: []string{"T"}},
		},
	})
	require.NoError(t, err)
	return cat
}

// csEntities returns CS102 (group G1, 40 students) and CS201 (group G2, 30 students), both three-session lectures
// sharing the single lecture room R1. CS201's teacher cannot teach on Monday morning
func csEntities(t *testing.T) *Entities {
	t.Helper()
	entities, err := NewEntities(
		[]Course{
			{ID: "CS102", Title: "Programming II", Credits: 3, Components: []Component{{Type: catalog.Lecture, Sessions: 3}}, Groups: []string{"G1"}},
			{ID: "CS201", Title: "Data Structures", Credits: 3, Components: []Component{{Type: catalog.Lecture, Sessions: 3}}, Groups: []string{"G2"}},
		},
		[]Room{{ID: "R1", Capacity: 50, Type: LectureHall}},
		[]Faculty{
			{ID: "F1", Name: "Ada", Teaches: []Teachable{{Course: "CS102"}}},
			{ID: "F2", Name: "Alan", Teaches: []Teachable{{Course: "CS201"}}, Unavailable: []string{"MWF_09/Mon"}},
		},
		[]Group{{ID: "G1", Size: 40}, {ID: "G2", Size: 30}},
	)
	require.NoError(t, err)
	return entities
}

func bundleSlots(t *testing.T, cat *catalog.Catalog, row string) []catalog.TimeSlot {
	t.Helper()
	for _, bundle := range cat.Bundles() {
		if bundle.Row == row {
			return bundle.Slots
		}
	}
	require.FailNow(t, "unknown row", row)
	return nil
}

func findAssignment(assignments []Assignment, key Key) (Assignment, bool) {
	for _, assignment := range assignments {
		if assignment.Key == key {
			return assignment, true
		}
	}
	return Assignment{}, false
}
