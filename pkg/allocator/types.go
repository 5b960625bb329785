package allocator

// Weekdays is the default ordered day set used when Input.Days is empty.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// Cell is a (day, timeslot) grid position.
type Cell struct {
	Day      string `json:"day" yaml:"day"`
	Timeslot string `json:"timeslot" yaml:"timeslot"`
}

// CellSet is a set of cells.
type CellSet map[Cell]struct{}

// NewCellSet builds a set from the provided cells.
func NewCellSet(cells ...Cell) CellSet {
	set := make(CellSet, len(cells))
	for _, cell := range cells {
		set[cell] = struct{}{}
	}
	return set
}

// Add inserts a cell.
func (s CellSet) Add(cell Cell) {
	s[cell] = struct{}{}
}

// Has reports whether the cell is a member. A nil set has no members.
func (s CellSet) Has(cell Cell) bool {
	if s == nil {
		return false
	}
	_, ok := s[cell]
	return ok
}

// Placement assigns one subject to one cell.
type Placement struct {
	Day      string `json:"day"`
	Timeslot string `json:"timeslot"`
	Subject  string `json:"subject"`
}

// Cell returns the grid position of the placement.
func (p Placement) Cell() Cell {
	return Cell{Day: p.Day, Timeslot: p.Timeslot}
}

// Schedule is an ordered collection of placements.
type Schedule []Placement

// CountBySubject returns the number of placements per subject.
func (s Schedule) CountBySubject() map[string]int {
	counts := make(map[string]int)
	for _, p := range s {
		counts[p.Subject]++
	}
	return counts
}

// Input carries everything one allocation needs. Nothing is retained between calls.
type Input struct {
	Subjects     []string
	Timeslots    []string
	Credits      map[string]int
	Priorities   map[string]int
	InvalidSlots map[string]CellSet
	Days         []string
}

// TotalCredits sums the positive credit requirements.
func (in Input) TotalCredits() int {
	total := 0
	for _, c := range in.Credits {
		if c > 0 {
			total += c
		}
	}
	return total
}

// Capacity is the number of cells in the grid.
func (in Input) Capacity() int {
	return len(in.days()) * len(in.Timeslots)
}

func (in Input) days() []string {
	if len(in.Days) == 0 {
		return Weekdays
	}
	return in.Days
}

func (in Input) priority(subject string) int {
	if p, ok := in.Priorities[subject]; ok {
		return p
	}
	return 1
}

// Result is the outcome of an allocation run.
type Result struct {
	Schedule Schedule `json:"schedule"`
	Score    int      `json:"score"`
	// Attempts is how many attempts ran; Completed how many placed every credit.
	Attempts  int `json:"attempts"`
	Completed int `json:"completed"`
	// BestAttempt is the zero-based index of the winning attempt, -1 when none completed.
	BestAttempt  int      `json:"bestAttempt"`
	HighPriority []string `json:"highPriority"`
	Strategy     string   `json:"strategy"`
}

// Complete reports whether a full schedule was found.
func (r Result) Complete() bool {
	return r.BestAttempt >= 0
}
