package conflict

import (
	"fmt"
	"slices"
	"strings"

	"github.com/limaJavier/scheduler/pkg/model"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Violation is a hard rule knowingly broken by one or more forced pins
type Violation struct {
	Rule     model.Rule  `json:"rule"`
	Severity Severity    `json:"severity"`
	Pins     []uint64    `json:"pins"`
	Keys     []model.Key `json:"keys"`
	Slots    []string    `json:"slots"`
	Rooms    []string    `json:"rooms,omitempty"`
	Faculty  []string    `json:"faculty,omitempty"`
	Groups   []string    `json:"groups,omitempty"`
	Message  string      `json:"message"`
}

type ConcernKind string

const (
	UnevenDays      ConcernKind = "uneven-days"
	EarlyCluster    ConcernKind = "early-cluster"
	LateCluster     ConcernKind = "late-cluster"
	FacultyHeavyDay ConcernKind = "faculty-heavy-day"
	FacultyMaxDays  ConcernKind = "faculty-max-days"
)

// Concern is a soft observation about the shape of the schedule
type Concern struct {
	Kind     ConcernKind `json:"kind"`
	Severity Severity    `json:"severity"`
	Subject  string      `json:"subject"` // Group or faculty id
	Days     []string    `json:"days,omitempty"`
	Keys     []model.Key `json:"keys"`
	Message  string      `json:"message"`
}

type Report struct {
	Session       string      `json:"session"`
	LedgerVersion uint64      `json:"ledgerVersion"`
	Violations    []Violation `json:"violations"`
	Concerns      []Concern   `json:"concerns"`
}

func (report Report) HasViolations() bool {
	return len(report.Violations) > 0
}

// ViolationsFor returns the violations the pin with the given sequence number takes part in
func (report Report) ViolationsFor(seq uint64) []Violation {
	result := make([]Violation, 0)
	for _, violation := range report.Violations {
		if slices.Contains(violation.Pins, seq) {
			result = append(result, violation)
		}
	}
	return result
}

// Rules returns the distinct rules broken by the pin
func (report Report) RulesFor(seq uint64) []model.Rule {
	rules := make([]model.Rule, 0)
	for _, violation := range report.ViolationsFor(seq) {
		if !slices.Contains(rules, violation.Rule) {
			rules = append(rules, violation.Rule)
		}
	}
	return rules
}

func (report Report) String() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "%d violation(s), %d concern(s)\n", len(report.Violations), len(report.Concerns))
	for _, violation := range report.Violations {
		fmt.Fprintf(&builder, "  [%v] %v\n", violation.Severity, violation.Message)
	}
	for _, concern := range report.Concerns {
		fmt.Fprintf(&builder, "  [%v] %v\n", concern.Severity, concern.Message)
	}
	return builder.String()
}
