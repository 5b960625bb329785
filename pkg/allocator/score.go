package allocator

import "sort"

const (
	placementReward       = 5
	consecutiveBonus      = 100
	overloadPenalty       = 50
	doubleLecturePenalty  = 20
	maxLecturesPerDayFree = 2
)

// Scorer evaluates the distribution quality of a schedule. It is a pure function of its
// construction arguments and the schedule passed to Score.
type Scorer struct {
	order    map[string]int
	priority func(string) int
	high     map[string]bool
}

// NewScorer builds a scorer for an input using the given number of high-priority tiers.
func NewScorer(in Input, tiers int) *Scorer {
	return newScorer(in.Timeslots, in.priority, HighPrioritySubjects(in, tiers))
}

func newScorer(timeslots []string, priority func(string) int, high map[string]bool) *Scorer {
	order := make(map[string]int, len(timeslots))
	for i, label := range timeslots {
		if _, seen := order[label]; !seen {
			order[label] = i
		}
	}
	return &Scorer{order: order, priority: priority, high: high}
}

// Score sums, per day: priority*5 per placement, 100*priority when a high-priority subject
// directly follows itself, minus 50 per lecture beyond two of one subject and minus 20 for
// exactly two lectures of a subject that is not high priority.
func (s *Scorer) Score(schedule Schedule) int {
	byDay := make(map[string][]Placement)
	for _, p := range schedule {
		byDay[p.Day] = append(byDay[p.Day], p)
	}

	score := 0
	for _, entries := range byDay {
		sort.SliceStable(entries, func(i, j int) bool {
			return s.order[entries[i].Timeslot] < s.order[entries[j].Timeslot]
		})

		counts := make(map[string]int)
		for i, entry := range entries {
			counts[entry.Subject]++
			if i > 0 && entries[i-1].Subject == entry.Subject && s.high[entry.Subject] {
				score += consecutiveBonus * s.priority(entry.Subject)
			}
			score += s.priority(entry.Subject) * placementReward
		}

		for subject, count := range counts {
			switch {
			case count > maxLecturesPerDayFree:
				score -= (count - maxLecturesPerDayFree) * overloadPenalty
			case count == maxLecturesPerDayFree && !s.high[subject]:
				score -= doubleLecturePenalty
			}
		}
	}
	return score
}
