package conflict

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/limaJavier/scheduler/pkg/catalog"
	"github.com/limaJavier/scheduler/pkg/model"
	"github.com/limaJavier/scheduler/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cs102     = model.Key{Course: "CS102", Component: catalog.Lecture}
	cs102Tut  = model.Key{Course: "CS102", Component: catalog.Tutorial}
	cs201     = model.Key{Course: "CS201", Component: catalog.Lecture}
	officials = catalog.Default()
)

func entities(t *testing.T) *model.Entities {
	t.Helper()
	entities, err := model.NewEntities(
		[]model.Course{
			{ID: "CS102", Components: []model.Component{{Type: catalog.Lecture, Sessions: 3}, {Type: catalog.Tutorial, Sessions: 1}}, Groups: []string{"G1"}},
			{ID: "CS201", Components: []model.Component{{Type: catalog.Lecture, Sessions: 3}}, Groups: []string{"G2"}},
		},
		[]model.Room{{ID: "R1", Capacity: 50, Type: model.LectureHall}, {ID: "S1", Capacity: 20, Type: model.Seminar}},
		[]model.Faculty{
			{ID: "F1", Teaches: []model.Teachable{{Course: "CS102"}}, MaxDays: 1},
			{ID: "F2", Teaches: []model.Teachable{{Course: "CS201"}}},
		},
		[]model.Group{{ID: "G1", Size: 40}, {ID: "G2", Size: 30}},
	)
	require.NoError(t, err)
	return entities
}

func row(t *testing.T, id string) []catalog.TimeSlot {
	t.Helper()
	for _, bundle := range officials.Bundles() {
		if bundle.Row == id {
			return bundle.Slots
		}
	}
	require.FailNow(t, "unknown row", id)
	return nil
}

func state(t *testing.T, assignments ...model.Assignment) *schedule.State {
	t.Helper()
	return schedule.NewState(uuid.New(), 3, entities(t), model.Outcome{Assignments: assignments}, time.Now())
}

func TestForcedDoubleBooking(t *testing.T) {
	//** Arrange
	forced := model.Assignment{Key: cs102, Slots: row(t, "MWF_2_L"), Room: "R1", Faculty: "F1", Forced: true, Pin: 1}
	other := model.Assignment{Key: cs201, Slots: row(t, "MWF_2_L"), Room: "R1", Faculty: "F2"}
	detector := NewDetector(officials, DefaultConfig())

	//** Act
	report := detector.Inspect(state(t, forced, other))

	//** Assert
	require.True(t, report.HasViolations())
	require.Len(t, report.Violations, 1)
	violation := report.Violations[0]
	assert.Equal(t, model.RuleRoomDoubleBooking, violation.Rule)
	assert.Equal(t, SeverityError, violation.Severity)
	assert.Equal(t, []uint64{1}, violation.Pins)
	assert.Equal(t, []model.Key{cs102, cs201}, violation.Keys)
	assert.Equal(t, []string{"R1"}, violation.Rooms)
	assert.Equal(t, []string{"MWF_2_L/Mon", "MWF_2_L/Wed", "MWF_2_L/Fri"}, violation.Slots)
	assert.Contains(t, violation.Message, "CS201/L")
	assert.Equal(t, []model.Rule{model.RuleRoomDoubleBooking}, report.RulesFor(1))
	assert.Empty(t, report.ViolationsFor(2))
}

func TestForcedOffCatalogPin(t *testing.T) {
	//** Arrange
	slots := row(t, "MWF_2_L")
	slots[0] = catalog.AdHocSlot(catalog.Monday, 7*60, 7*60+55)
	forced := model.Assignment{Key: cs102, Slots: slots, Room: "S1", Faculty: "F2", Forced: true, Pin: 2}
	detector := NewDetector(officials, DefaultConfig())

	//** Act
	report := detector.Inspect(state(t, forced))

	//** Assert
	assert.Equal(t, []model.Rule{
		model.RuleCatalogMembership,
		model.RulePattern,
		model.RuleRoomCapacity,
		model.RuleFacultyEligibility,
	}, report.RulesFor(2))
}

func TestNonForcedAssignmentsAreNotViolations(t *testing.T) {
	a := model.Assignment{Key: cs102, Slots: row(t, "MWF_2_L"), Room: "R1", Faculty: "F1"}
	b := model.Assignment{Key: cs201, Slots: row(t, "MWF_3_L"), Room: "R1", Faculty: "F2"}

	report := NewDetector(officials, DefaultConfig()).Inspect(state(t, a, b))

	assert.False(t, report.HasViolations())
}

func TestConcerns(t *testing.T) {
	//** Arrange
	lecture := model.Assignment{Key: cs102, Slots: row(t, "MWF_1_L"), Room: "R1", Faculty: "F1"}
	tutorial := model.Assignment{Key: cs102Tut, Slots: row(t, "MWF_9_T")[:1], Room: "S1", Faculty: "F1"}
	config := DefaultConfig()
	config.MaxDailyPerGroup = 1
	config.LateAfter = 19 * 60
	config.ClusterSize = 1
	detector := NewDetector(officials, config)
	snapshot := state(t, lecture, tutorial)

	//** Act
	report := detector.Inspect(snapshot)

	//** Assert
	kinds := make(map[ConcernKind]Concern)
	for _, concern := range report.Concerns {
		kinds[concern.Kind] = concern
	}
	require.Contains(t, kinds, UnevenDays)
	assert.Equal(t, []string{"Mon"}, kinds[UnevenDays].Days)
	require.Contains(t, kinds, EarlyCluster)
	assert.Equal(t, []string{"Mon", "Wed", "Fri"}, kinds[EarlyCluster].Days)
	require.Contains(t, kinds, LateCluster)
	assert.Equal(t, []model.Key{cs102Tut}, kinds[LateCluster].Keys)
	require.Contains(t, kinds, FacultyMaxDays)
	assert.Equal(t, "F1", kinds[FacultyMaxDays].Subject)
	assert.NotContains(t, kinds, FacultyHeavyDay)

	// Inspection is deterministic
	assert.Equal(t, report, detector.Inspect(snapshot))
}
