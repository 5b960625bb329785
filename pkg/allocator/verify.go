package allocator

import (
	"fmt"
	"sort"
)

// Violation kinds reported by Verify.
const (
	ViolationDoubleBooked = "DOUBLE_BOOKED"
	ViolationCredits      = "CREDIT_MISMATCH"
	ViolationInvalidSlot  = "INVALID_SLOT"
	ViolationUnknownCell  = "UNKNOWN_CELL"
)

// Violation describes one broken schedule invariant.
type Violation struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject,omitempty"`
	Cell    *Cell  `json:"cell,omitempty"`
	Message string `json:"message"`
}

// Verify checks a schedule against the input: no shared cells, every placement on the grid,
// no placement in its subject's invalid set and, when requireCredits is set, exact credit counts.
func Verify(in Input, schedule Schedule, requireCredits bool) []Violation {
	var violations []Violation

	days := make(map[string]bool)
	for _, d := range in.days() {
		days[d] = true
	}
	labels := make(map[string]bool)
	for _, t := range in.Timeslots {
		labels[t] = true
	}

	seen := make(map[Cell]string)
	for _, p := range schedule {
		cell := p.Cell()
		if !days[cell.Day] || !labels[cell.Timeslot] {
			violations = append(violations, Violation{
				Kind:    ViolationUnknownCell,
				Subject: p.Subject,
				Cell:    &cell,
				Message: fmt.Sprintf("%s %s is not part of the grid", cell.Day, cell.Timeslot),
			})
		}
		if other, ok := seen[cell]; ok {
			violations = append(violations, Violation{
				Kind:    ViolationDoubleBooked,
				Subject: p.Subject,
				Cell:    &cell,
				Message: fmt.Sprintf("%s %s already holds %s", cell.Day, cell.Timeslot, other),
			})
		} else {
			seen[cell] = p.Subject
		}
		if in.InvalidSlots[p.Subject].Has(cell) {
			violations = append(violations, Violation{
				Kind:    ViolationInvalidSlot,
				Subject: p.Subject,
				Cell:    &cell,
				Message: fmt.Sprintf("%s cannot be taught on %s %s", p.Subject, cell.Day, cell.Timeslot),
			})
		}
	}

	if requireCredits {
		counts := schedule.CountBySubject()
		subjects := make([]string, 0, len(in.Credits))
		for subject := range in.Credits {
			subjects = append(subjects, subject)
		}
		for subject := range counts {
			if _, ok := in.Credits[subject]; !ok {
				subjects = append(subjects, subject)
			}
		}
		sort.Strings(subjects)
		for _, subject := range subjects {
			want := max(0, in.Credits[subject])
			if counts[subject] != want {
				violations = append(violations, Violation{
					Kind:    ViolationCredits,
					Subject: subject,
					Message: fmt.Sprintf("%s has %d lectures, requires %d", subject, counts[subject], want),
				})
			}
		}
	}
	return violations
}
